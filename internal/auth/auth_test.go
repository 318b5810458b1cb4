package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	protected := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	open := Middleware(Config{})(ok)

	tests := []struct {
		name    string
		handler http.Handler
		path    string
		header  string
		want    int
	}{
		{"disabled", open, "/api/v1/passes", "", http.StatusOK},
		{"public probe", protected, "/healthz", "", http.StatusOK},
		{"public metrics", protected, "/metrics", "", http.StatusOK},
		{"missing header", protected, "/api/v1/passes", "", http.StatusUnauthorized},
		{"wrong token", protected, "/api/v1/passes", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", protected, "/api/v1/passes", "Basic s3cret", http.StatusUnauthorized},
		{"bare token", protected, "/api/v1/passes", "s3cret", http.StatusUnauthorized},
		{"empty bearer", protected, "/api/v1/passes", "Bearer ", http.StatusUnauthorized},
		{"valid", protected, "/api/v1/passes", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", protected, "/api/v1/satellites/passes", "bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401")
			}
		})
	}
}
