package httpapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUseRoutePattern(t *testing.T) {
	_, srv := newTestServer(t)
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/models/{id}", http.MethodGet, "404"))
	do(t, http.MethodGet, srv.URL+"/models/a", "")
	do(t, http.MethodGet, srv.URL+"/models/b", "")
	if d := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/models/{id}", http.MethodGet, "404")) - before; d != 2 {
		t.Fatalf("route-pattern counter delta %v", d)
	}
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	_, srv := newTestServer(t)
	do(t, http.MethodGet, srv.URL+"/healthz", "")
	resp, b := do(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
	for _, name := range []string{"modelsync_http_requests_total", "modelsync_http_inflight_requests"} {
		if !strings.Contains(string(b), name) {
			t.Fatalf("metric %s missing", name)
		}
	}
}

func TestStatusRecorderCapturesCode(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: &nopWriter{h: http.Header{}}, status: 200}
	rec.WriteHeader(http.StatusTeapot)
	if rec.status != http.StatusTeapot {
		t.Fatalf("status = %d", rec.status)
	}
	if _, _, err := rec.Hijack(); err == nil {
		t.Fatalf("hijack on a non-hijacker must fail")
	}
}

type nopWriter struct{ h http.Header }

func (w *nopWriter) Header() http.Header         { return w.h }
func (w *nopWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *nopWriter) WriteHeader(int)             {}
