package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		check    Check
		wantCode int
		wantBody string
	}{
		{"no check", nil, http.StatusOK, "ready\n"},
		{"passing", func(context.Context) error { return nil }, http.StatusOK, "ready\n"},
		{"failing", func(context.Context) error { return errors.New("redis down") }, http.StatusServiceUnavailable, "not ready: redis down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Readyz(tt.check)(w, httptest.NewRequest("GET", "/readyz", nil))
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
