package events

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// StreamName is the JetStream stream capturing every papertrade event.
const StreamName = "PAPERTRADE"

// NATSPublisher publishes events on papertrade.<type>.<stockID>. When the
// server has JetStream enabled the subjects are captured by StreamName;
// otherwise plain core NATS publishes are used.
type NATSPublisher struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	log *slog.Logger
}

// ConnectNATS dials url and makes sure the stream exists.
func ConnectNATS(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url, nats.Name("papertrade"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := &NATSPublisher{nc: nc, log: logger}

	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("jetstream unavailable, using core nats", "err", err)
		return p, nil
	}
	cfg := &nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"papertrade.>"},
	}
	if _, err := js.AddStream(cfg); err != nil {
		// The stream may already exist with an older config.
		if _, err := js.UpdateStream(cfg); err != nil {
			logger.Warn("failed to create or update stream, using core nats", "err", err)
			return p, nil
		}
	}
	p.js = js
	return p, nil
}

// Subject returns the subject an event is published on.
func Subject(e Event) string {
	return "papertrade." + e.Type + "." + e.StockID
}

// Publish sends e without waiting for acknowledgement.
func (p *NATSPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	subj := Subject(e)
	if p.js != nil {
		if _, err := p.js.PublishAsync(subj, data); err != nil {
			p.log.Warn("nats publish failed", "subject", subj, "err", err)
		}
		return
	}
	if err := p.nc.Publish(subj, data); err != nil {
		p.log.Warn("nats publish failed", "subject", subj, "err", err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
