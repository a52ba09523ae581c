package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"modelsync/internal/document"
	"modelsync/internal/httpapi"
	"modelsync/internal/manager"
	"modelsync/internal/seed"
	"modelsync/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// createSeedDir writes name -> content files into a temporary directory.
func createSeedDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for n, c := range files {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(c), 0o644); err != nil {
			t.Fatalf("write seed %s: %v", p, err)
		}
	}
	return dir
}

// newSeededServer builds the daemon stack in-process: manager, seed, HTTP.
func newSeededServer(t *testing.T, seedDir string) (*httptest.Server, *manager.Manager) {
	t.Helper()
	mgr := manager.NewWithConfig(manager.ManagerConfig{Merger: document.Merger, Debug: true})
	if seedDir != "" {
		models, err := seed.LoadDir(seedDir)
		if err != nil {
			t.Fatalf("load seed: %v", err)
		}
		if _, err := seed.Apply(testCtx(t), mgr, models); err != nil {
			t.Fatalf("apply seed: %v", err)
		}
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return srv, mgr
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(testCtx(t), method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func putModel(t *testing.T, base string, m types.Model) types.UpdateResponse {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, body := httpDo(t, http.MethodPut, base+"/models", b)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /models: %d %s", resp.StatusCode, body)
	}
	var ur types.UpdateResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ur
}

func subscribe(t *testing.T, base string, mgr *manager.Manager, ids ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/subscribe?id=" + strings.Join(ids, ",")
	conn, _, err := websocket.DefaultDialer.DialContext(testCtx(t), url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, "registration", func() bool {
		n, err := mgr.EntryCount(testCtx(t), manager.ID(ids[0]))
		return err == nil && n > 0
	})
	return conn
}

func next(t *testing.T, conn *websocket.Conn) types.NotificationMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg types.NotificationMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

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
