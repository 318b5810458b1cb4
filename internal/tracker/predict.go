package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/jwcutler/passbot/internal/metrics"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/passes"
	"github.com/jwcutler/passbot/internal/tle"
)

// PassFinder is the orbit sampler as seen by the tracker.
type PassFinder interface {
	ElevationAt(t time.Time) (float64, error)
	FindEvents(ctx context.Context, start, end time.Time, minEl float64) ([]passes.Event, error)
}

// SamplerFactory builds a PassFinder for one satellite and observer.
type SamplerFactory func(entry tle.TLEEntry, obs orbit.Observer) (PassFinder, error)

func defaultSampler(entry tle.TLEEntry, obs orbit.Observer) (PassFinder, error) {
	return orbit.NewSampler(entry, obs, orbit.Options{})
}

// PredictRequest holds the parameters for a pass prediction.
type PredictRequest struct {
	Observer     orbit.Observer
	Start        time.Time
	Window       time.Duration
	MinElevation float64 // degrees
}

// Prediction holds the predicted passes for one satellite.
type Prediction struct {
	NORADID   int           `json:"norad_id"`
	Satellite string        `json:"satellite"`
	Passes    []passes.Pass `json:"passes"`
	Error     string        `json:"error,omitempty"`
}

// Predictor runs the sampler and the extractor for one or many satellites.
type Predictor struct {
	newSampler SamplerFactory
	logger     *slog.Logger
}

// NewPredictor creates a Predictor backed by the SGP4 sampler.
func NewPredictor(logger *slog.Logger) *Predictor {
	return &Predictor{
		newSampler: defaultSampler,
		logger:     logger.With("component", "predict"),
	}
}

// Passes finds every complete pass of entry inside the request window.
// Errors wrap orbit.ErrOrbitPropagation or the context error.
func (p *Predictor) Passes(ctx context.Context, entry tle.TLEEntry, req PredictRequest) ([]passes.Pass, passes.Stats, error) {
	start := time.Now()

	sampler, err := p.newSampler(entry, req.Observer)
	if err != nil {
		return nil, passes.Stats{}, fmt.Errorf("%s: %w", entry.Name, err)
	}
	events, err := sampler.FindEvents(ctx, req.Start, req.Start.Add(req.Window), req.MinElevation)
	if err != nil {
		return nil, passes.Stats{}, fmt.Errorf("%s: %w", entry.Name, err)
	}

	found, stats := passes.ExtractWithStats(slices.Values(events), passes.Params{
		SatelliteName: entry.Name,
		Elevation:     sampler.ElevationAt,
		MinElevation:  req.MinElevation,
	})
	recordStats(stats)
	metrics.ObservePrediction(time.Since(start))

	p.logger.Debug("predicted passes",
		"satellite", entry.Name,
		"norad_id", entry.NORADID,
		"events", len(events),
		"passes", len(found),
		"truncated", stats.Truncated,
		"ignored", stats.Ignored,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return found, stats, nil
}

// Predict computes passes for every entry.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
// Per-satellite failures are reported in Prediction.Error.
func (p *Predictor) Predict(ctx context.Context, entries []tle.TLEEntry, req PredictRequest) []Prediction {
	results := make([]Prediction, len(entries))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		go func(idx int, e tle.TLEEntry) {
			defer wg.Done()

			results[idx] = Prediction{NORADID: e.NORADID, Satellite: e.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			found, _, err := p.Passes(ctx, e, req)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			results[idx].Passes = found
		}(i, entry)
	}

	wg.Wait()
	return results
}

func recordStats(s passes.Stats) {
	metrics.RecordPassesEmitted(s.Emitted)
	metrics.RecordPassesDropped(metrics.ReasonOrphaned, s.Orphaned)
	metrics.RecordPassesDropped(metrics.ReasonMalformed, s.Malformed)
	metrics.RecordPassesDropped(metrics.ReasonBelowThreshold, s.BelowThreshold)
	metrics.RecordPassesDropped(metrics.ReasonElevationError, s.ElevationErrors)
	metrics.RecordPassesDropped(metrics.ReasonTruncated, s.Truncated)
}
