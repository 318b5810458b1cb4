package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/passes"
	"github.com/jwcutler/passbot/internal/tle"
	"github.com/jwcutler/passbot/internal/tracker"
)

// maxDays bounds the search window a single request may ask for.
const maxDays = 14

type handlers struct {
	cfg       Config
	resolver  tracker.Resolver
	predictor *tracker.Predictor
	logger    *slog.Logger
}

type passesResponse struct {
	NORADID      int           `json:"norad_id"`
	Satellite    string        `json:"satellite"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	Altitude     float64       `json:"altitude"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	MinElevation float64       `json:"min_elevation"`
	Passes       []passes.Pass `json:"passes"`
}

type satellitePassesResponse struct {
	Start        time.Time            `json:"start"`
	End          time.Time            `json:"end"`
	MinElevation float64              `json:"min_elevation"`
	Satellites   []tracker.Prediction `json:"satellites"`
}

// passes handles GET /api/v1/passes?norad_id=&lat=&lon=&alt=&days=&min_elevation=&start=
func (h *handlers) passes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	noradID, err := strconv.Atoi(q.Get("norad_id"))
	if err != nil || noradID <= 0 {
		writeError(w, http.StatusBadRequest, "norad_id must be a positive integer")
		return
	}
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.resolver.Resolve(r.Context(), strconv.Itoa(noradID), "")
	if err != nil {
		h.logger.Warn("TLE lookup failed", "norad_id", noradID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	found, _, err := h.predictor.Passes(r.Context(), entry, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orbit.ErrOrbitPropagation) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if found == nil {
		found = []passes.Pass{}
	}

	writeJSON(w, http.StatusOK, passesResponse{
		NORADID:      entry.NORADID,
		Satellite:    entry.Name,
		Latitude:     req.Observer.LatDeg,
		Longitude:    req.Observer.LonDeg,
		Altitude:     req.Observer.AltM,
		Start:        req.Start,
		End:          req.Start.Add(req.Window),
		MinElevation: req.MinElevation,
		Passes:       found,
	})
}

// satellitePasses handles GET /api/v1/satellites/passes for every configured
// satellite. Query parameters are as for passes, minus norad_id.
func (h *handlers) satellitePasses(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	// Resolve failures keep their configured slot; predictions fill the rest.
	results := make([]tracker.Prediction, len(h.cfg.Satellites))
	var (
		entries []tle.TLEEntry
		slots   []int
	)
	for i, s := range h.cfg.Satellites {
		entry, err := h.resolver.Resolve(r.Context(), s.Input(), s.Name)
		if err != nil {
			results[i] = tracker.Prediction{NORADID: s.NORADID, Satellite: s.Name, Error: err.Error()}
			continue
		}
		entries = append(entries, entry)
		slots = append(slots, i)
	}
	for j, pred := range h.predictor.Predict(r.Context(), entries, req) {
		results[slots[j]] = pred
	}

	for i := range results {
		if results[i].Passes == nil {
			results[i].Passes = []passes.Pass{}
		}
	}

	writeJSON(w, http.StatusOK, satellitePassesResponse{
		Start:        req.Start,
		End:          req.Start.Add(req.Window),
		MinElevation: req.MinElevation,
		Satellites:   results,
	})
}

// parseRequest reads the observer and window parameters. On failure it has
// already written a 400 response.
func (h *handlers) parseRequest(w http.ResponseWriter, r *http.Request) (tracker.PredictRequest, bool) {
	q := r.URL.Query()
	req := tracker.PredictRequest{
		Start:        time.Now().UTC().Truncate(time.Second),
		Window:       time.Duration(h.cfg.DaysAhead) * 24 * time.Hour,
		MinElevation: h.cfg.MinElevation,
	}

	var obs orbit.Observer
	switch {
	case q.Has("lat") || q.Has("lon"):
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			writeError(w, http.StatusBadRequest, "lat and lon must both be numbers")
			return req, false
		}
		obs = orbit.Observer{LatDeg: lat, LonDeg: lon}
	case h.cfg.Observer != nil:
		obs = *h.cfg.Observer
	default:
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return req, false
	}
	if v := q.Get("alt"); v != "" {
		alt, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "alt must be a number (metres)")
			return req, false
		}
		obs.AltM = alt
	}
	if err := obs.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	req.Observer = obs

	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return req, false
		}
		if days > maxDays {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    "days exceeds limit",
				"max_days": maxDays,
			})
			return req, false
		}
		req.Window = time.Duration(days) * 24 * time.Hour
	}
	if v := q.Get("min_elevation"); v != "" {
		minEl, err := strconv.ParseFloat(v, 64)
		if err != nil || minEl < 0 || minEl >= 90 {
			writeError(w, http.StatusBadRequest, "min_elevation must be in [0, 90)")
			return req, false
		}
		req.MinElevation = minEl
	}
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return req, false
		}
		req.Start = start.UTC().Truncate(time.Second)
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
