package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggingMiddlewareEmitsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "conversation_id", "conv:log1")
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected start and completion lines, got %d: %s", len(lines), buf.String())
	}

	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("completion line is not JSON: %v", err)
	}
	if completed["msg"] != "request completed" {
		t.Errorf("msg = %v", completed["msg"])
	}
	if completed["status"] != float64(http.StatusBadRequest) {
		t.Errorf("status = %v, want 400", completed["status"])
	}
	if completed["conversation_id"] != "conv:log1" {
		t.Errorf("conversation_id = %v, want conv:log1", completed["conversation_id"])
	}
	if completed["method"] != "POST" {
		t.Errorf("method = %v", completed["method"])
	}
}

func TestAddLogFieldWithoutMiddleware(t *testing.T) {
	// Must not panic when the middleware never ran.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	AddLogField(req.Context(), "k", "v")
	AddError(req.Context(), nil)
}
