package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePatternAndStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v1/documents/a", "/api/v1/documents/b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/documents/{id}", "404"))
	if got < 2 {
		t.Errorf("expected >= 2 requests for the route pattern, got %f", got)
	}
	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ok", "200")); v < 1 {
		t.Errorf("expected implicit 200 to be recorded, got %f", v)
	}
}

func TestObserveSince(t *testing.T) {
	ObserveSince("unit_test", time.Now().Add(-10*time.Millisecond))
	if n := testutil.CollectAndCount(StoreOperationDuration); n == 0 {
		t.Error("expected store_operation_duration_seconds observations")
	}
}
