package httpapi

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{"": LevelOff, "off": LevelOff, "error": LevelError, "info": LevelInfo, "debug": LevelDebug, "weird": LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/models/x?log=1", nil)
	if requestLogLevel(r) != LevelDebug {
		t.Fatalf("?log=1 should enable debug")
	}
	r = httptest.NewRequest("GET", "/models/x?log=error", nil)
	r.Header.Set("X-Log-Level", "debug")
	if requestLogLevel(r) != LevelError {
		t.Fatalf("query must win over header")
	}
	r = httptest.NewRequest("GET", "/models/x", nil)
	r.Header.Set("X-Log-Level", "info")
	if requestLogLevel(r) != LevelInfo {
		t.Fatalf("header override ignored")
	}
}

func TestLogEndWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { zlog = nil })

	r := httptest.NewRequest("PUT", "/models?log=info", nil)
	logEnd(r, "update", 200, time.Now(), nil)
	if !strings.Contains(buf.String(), `"event":"update_end"`) {
		t.Fatalf("missing info line: %s", buf.String())
	}
	buf.Reset()
	r = httptest.NewRequest("PUT", "/models?log=error", nil)
	logEnd(r, "update", 200, time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("success logged at error level: %s", buf.String())
	}
	logEnd(r, "update", 409, time.Now(), errors.New("merge conflicts: a"))
	if !strings.Contains(buf.String(), `"status":409`) {
		t.Fatalf("missing error line: %s", buf.String())
	}
}
