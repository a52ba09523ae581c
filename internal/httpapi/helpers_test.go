package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"modelsync/internal/document"
	"modelsync/internal/manager"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newTestServer(t *testing.T) (*manager.Manager, *httptest.Server) {
	t.Helper()
	m := manager.NewWithConfig(manager.ManagerConfig{Merger: document.Merger})
	srv := httptest.NewServer(NewMux(m))
	t.Cleanup(func() {
		srv.Close()
		_ = m.Close()
	})
	return m, srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(testCtx(t), method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

// waitFor polls cond until it holds or the test context expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	ctx := testCtx(t)
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func waitSubscribed(t *testing.T, m *manager.Manager, id manager.ID) *manager.Subscription {
	t.Helper()
	var sub *manager.Subscription
	waitFor(t, "subscription on "+string(id), func() bool {
		subs, err := m.Entries(testCtx(t), id)
		if err != nil || len(subs) == 0 {
			return false
		}
		sub = subs[0]
		return true
	})
	return sub
}
