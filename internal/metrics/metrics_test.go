package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papertrade/papertrade/internal/metrics"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/api/stocks/{stockID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/stocks/{stockID}", "418"))
	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/stocks/"+id, nil))
	}
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/stocks/{stockID}", "418"))
	if after-before != 3 {
		t.Errorf("expected 3 requests under one route label, got %v", after-before)
	}
}

func TestMiddleware_Unmatched(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope/123", nil))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	if after-before != 1 {
		t.Errorf("expected unmatched counter to grow by 1, got %v", after-before)
	}
}

func TestStatusWriter_Hijack(t *testing.T) {
	var hijackErr error
	h := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, hijackErr = http.NewResponseController(w).Hijack()
	}))
	// ResponseRecorder cannot hijack; the wrapper must report that instead of panicking.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if hijackErr == nil {
		t.Error("expected a hijack error from a recorder-backed writer")
	}
}
