// Package identity resolves which player an HTTP request acts for.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/papertrade/papertrade/internal/model"
)

// DefaultHeader carries the acting player's ID.
const DefaultHeader = "X-Player-ID"

// Resolver extracts the acting player ID from a request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// HeaderResolver reads the player ID from a request header.
type HeaderResolver struct {
	Header string
}

// NewHeaderResolver returns a resolver for header, or DefaultHeader when
// header is empty.
func NewHeaderResolver(header string) HeaderResolver {
	if header == "" {
		header = DefaultHeader
	}
	return HeaderResolver{Header: header}
}

func (h HeaderResolver) Resolve(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(h.Header))
	if id == "" {
		return "", fmt.Errorf("%w: missing %s header", model.ErrNotAuthenticated, h.Header)
	}
	return id, nil
}

// Headers lists the request headers h reads.
func (h HeaderResolver) Headers() []string {
	return []string{h.Header}
}

// RequestHeaders returns the headers res reads from a request, for
// resolvers that expose them through a Headers method.
func RequestHeaders(res Resolver) []string {
	if hr, ok := res.(interface{ Headers() []string }); ok {
		return hr.Headers()
	}
	return nil
}

type ctxKey struct{}

// WithPlayer returns a copy of ctx carrying playerID.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, playerID)
}

// PlayerFrom returns the player stored by Middleware, if any.
func PlayerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware resolves the player for every request and stores it in the
// request context. Unresolvable requests are answered by onError and never
// reach next.
func Middleware(res Resolver, onError func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(r)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), id)))
		})
	}
}
