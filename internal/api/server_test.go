package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jwcutler/passbot/internal/auth"
	"github.com/jwcutler/passbot/internal/config"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/tle"
	"github.com/jwcutler/passbot/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// Real ISS TLE (epoch Feb 2025).
var issEntry = tle.TLEEntry{
	NORADID: 25544,
	Name:    "ISS (ZARYA)",
	Line1:   "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
	Line2:   "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
}

const windowQuery = "start=2025-02-14T12:00:00Z&days=1"

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, input, nameHint string) (tle.TLEEntry, error) {
	if input == "25544" {
		return issEntry, nil
	}
	return tle.TLEEntry{}, fmt.Errorf("%w: unexpected status code 404", tle.ErrInputFetch)
}

func newTestServer(cfg Config) http.Handler {
	if cfg.DaysAhead == 0 {
		cfg.DaysAhead = 5
	}
	if cfg.MinElevation == 0 {
		cfg.MinElevation = 10
	}
	srv := NewServer(cfg, fakeResolver{}, tracker.NewPredictor(testLogger()), testLogger())
	return srv.HTTPServer().Handler
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func TestPassesEndpoint(t *testing.T) {
	h := newTestServer(Config{})

	w := get(t, h, "/api/v1/passes?norad_id=25544&lat=40.7128&lon=-74.006&alt=10&"+windowQuery)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp passesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NORADID != 25544 || resp.Satellite != "ISS (ZARYA)" {
		t.Errorf("satellite = %d %q", resp.NORADID, resp.Satellite)
	}
	if len(resp.Passes) == 0 {
		t.Fatal("expected at least one ISS pass over NYC in 24h")
	}
	for i, p := range resp.Passes {
		if !p.RiseTime.Before(p.CulminationTime) || !p.CulminationTime.Before(p.SetTime) {
			t.Errorf("pass %d not ordered", i)
		}
		if p.MaxElevation < 10 {
			t.Errorf("pass %d max elevation %.2f below threshold", i, p.MaxElevation)
		}
		if p.RiseTime.Before(resp.Start) || p.SetTime.After(resp.End) {
			t.Errorf("pass %d outside window", i)
		}
	}
}

func TestPassesEndpointValidation(t *testing.T) {
	h := newTestServer(Config{})

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"missing norad_id", "lat=1&lon=2", http.StatusBadRequest},
		{"bad norad_id", "norad_id=abc&lat=1&lon=2", http.StatusBadRequest},
		{"missing observer", "norad_id=25544", http.StatusBadRequest},
		{"half observer", "norad_id=25544&lat=1", http.StatusBadRequest},
		{"latitude out of range", "norad_id=25544&lat=91&lon=2", http.StatusBadRequest},
		{"bad alt", "norad_id=25544&lat=1&lon=2&alt=high", http.StatusBadRequest},
		{"zero days", "norad_id=25544&lat=1&lon=2&days=0", http.StatusBadRequest},
		{"too many days", "norad_id=25544&lat=1&lon=2&days=30", http.StatusBadRequest},
		{"bad min elevation", "norad_id=25544&lat=1&lon=2&min_elevation=95", http.StatusBadRequest},
		{"bad start", "norad_id=25544&lat=1&lon=2&start=tomorrow", http.StatusBadRequest},
		{"unknown satellite", "norad_id=1&lat=1&lon=2&" + windowQuery, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, "/api/v1/passes?"+tt.query)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
			if tt.name == "too many days" && resp["max_days"] == nil {
				t.Error("expected max_days field in response")
			}
		})
	}
}

func TestPassesEndpointDefaultObserver(t *testing.T) {
	obs := orbit.Observer{LatDeg: 40.7128, LonDeg: -74.006}
	h := newTestServer(Config{Observer: &obs})

	w := get(t, h, "/api/v1/passes?norad_id=25544&"+windowQuery)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp passesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Latitude != 40.7128 || resp.Longitude != -74.006 {
		t.Errorf("observer = %v, %v", resp.Latitude, resp.Longitude)
	}
}

func TestSatellitePassesEndpoint(t *testing.T) {
	obs := orbit.Observer{LatDeg: 40.7128, LonDeg: -74.006}
	h := newTestServer(Config{
		Observer: &obs,
		Satellites: []config.SatelliteConfig{
			{Name: "ISS", NORADID: 25544},
			{Name: "Lost", NORADID: 1},
		},
	})

	w := get(t, h, "/api/v1/satellites/passes?"+windowQuery)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp satellitePassesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Satellites) != 2 {
		t.Fatalf("expected 2 satellites, got %d", len(resp.Satellites))
	}
	if resp.Satellites[0].NORADID != 25544 || len(resp.Satellites[0].Passes) == 0 {
		t.Errorf("ISS = %+v", resp.Satellites[0])
	}
	if resp.Satellites[1].Satellite != "Lost" || resp.Satellites[1].Error == "" {
		t.Errorf("expected lookup failure for Lost, got %+v", resp.Satellites[1])
	}
}

func TestSatellitePassesKeepsConfigOrder(t *testing.T) {
	obs := orbit.Observer{LatDeg: 40.7128, LonDeg: -74.006}
	h := newTestServer(Config{
		Observer: &obs,
		Satellites: []config.SatelliteConfig{
			{Name: "Lost", NORADID: 1},
			{Name: "ISS", NORADID: 25544},
			{Name: "Gone", NORADID: 2},
		},
	})

	w := get(t, h, "/api/v1/satellites/passes?"+windowQuery)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp satellitePassesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var got []string
	for _, s := range resp.Satellites {
		got = append(got, s.Satellite)
	}
	want := []string{"Lost", "ISS (ZARYA)", "Gone"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("satellites = %v, want %v", got, want)
	}
	if resp.Satellites[0].Error == "" || resp.Satellites[2].Error == "" {
		t.Errorf("expected lookup failures in slots 0 and 2, got %+v", resp.Satellites)
	}
	if resp.Satellites[1].Error != "" || len(resp.Satellites[1].Passes) == 0 {
		t.Errorf("ISS = %+v", resp.Satellites[1])
	}
}

func TestAuthOnPasses(t *testing.T) {
	h := newTestServer(Config{Auth: auth.Config{Enabled: true, Token: "s3cret"}})

	if w := get(t, h, "/api/v1/passes?norad_id=25544&lat=1&lon=2"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if w := get(t, h, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}

func TestReadyzUsesCheck(t *testing.T) {
	h := newTestServer(Config{Ready: func(context.Context) error { return fmt.Errorf("cache unreachable") }})
	w := get(t, h, "/readyz")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "cache unreachable") {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{"direct", "203.0.113.5:4242", "", "", false, "203.0.113.5"},
		{"spoofed header ignored", "203.0.113.5:4242", "198.51.100.1", "", false, "203.0.113.5"},
		{"xff first entry", "10.0.0.1:80", "198.51.100.1, 10.0.0.2", "", true, "198.51.100.1"},
		{"x-real-ip", "10.0.0.1:80", "", "198.51.100.7", true, "198.51.100.7"},
		{"xff wins over x-real-ip", "10.0.0.1:80", "198.51.100.1", "198.51.100.7", true, "198.51.100.1"},
		{"no port", "203.0.113.5", "", "", false, "203.0.113.5"},
		{"ipv6", "[2001:db8::1]:443", "", "", false, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
