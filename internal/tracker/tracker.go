// Package tracker drives the end-to-end flow for one satellite or a batch:
// resolve the element set, optionally clear old events, predict passes and
// publish one calendar event per pass.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwcutler/passbot/internal/metrics"
	"github.com/jwcutler/passbot/internal/orbit"
	"github.com/jwcutler/passbot/internal/passes"
	"github.com/jwcutler/passbot/internal/tle"
)

// Resolver turns user input into an element set.
type Resolver interface {
	Resolve(ctx context.Context, input, nameHint string) (tle.TLEEntry, error)
}

// Publisher writes passes somewhere a person will see them.
type Publisher interface {
	CreatePassEvent(ctx context.Context, p passes.Pass) (string, error)
	DeleteSatelliteEvents(ctx context.Context, satellite string, lookAhead time.Duration) (int, error)
}

// Options controls one tracking run.
type Options struct {
	Observer       orbit.Observer
	Window         time.Duration
	MinElevation   float64
	DeleteExisting bool
	Concurrency    int    // batch workers, default 1
	RunID          string // generated when empty
}

// Result describes the outcome for one satellite.
type Result struct {
	Satellite  string
	NORADID    int
	Passes     []passes.Pass
	EventLinks []string
	Deleted    int
	Stats      passes.Stats
}

// Tracker wires a Resolver, a Predictor and a Publisher together.
type Tracker struct {
	resolver  Resolver
	publisher Publisher
	predictor *Predictor
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Tracker.
func New(resolver Resolver, publisher Publisher, predictor *Predictor, logger *slog.Logger) *Tracker {
	if predictor == nil {
		predictor = NewPredictor(logger)
	}
	return &Tracker{
		resolver:  resolver,
		publisher: publisher,
		predictor: predictor,
		logger:    logger.With("component", "tracker"),
		now:       time.Now,
	}
}

// TrackSatellite resolves input, predicts passes over opts.Window starting
// now and creates one event per pass. A failed event creation does not stop
// the remaining ones; all creation failures are joined in the returned error
// alongside a Result that lists what did succeed.
func (t *Tracker) TrackSatellite(ctx context.Context, input, nameHint string, opts Options) (Result, error) {
	entry, res, err := t.prepare(ctx, input, nameHint, opts)
	if err != nil {
		return res, err
	}
	return t.publish(ctx, entry, res, opts)
}

// prepare resolves input and, with opts.DeleteExisting, clears the
// satellite's upcoming events.
func (t *Tracker) prepare(ctx context.Context, input, nameHint string, opts Options) (tle.TLEEntry, Result, error) {
	entry, err := t.resolver.Resolve(ctx, input, nameHint)
	if err != nil {
		return entry, Result{Satellite: nameHint}, err
	}
	res := Result{Satellite: entry.Name, NORADID: entry.NORADID}

	if opts.DeleteExisting {
		n, err := t.publisher.DeleteSatelliteEvents(ctx, entry.Name, opts.Window)
		if err != nil {
			return entry, res, err
		}
		res.Deleted = n
		t.logger.Info("deleted existing events", "satellite", entry.Name, "norad_id", entry.NORADID, "count", n)
	}
	return entry, res, nil
}

// publish predicts the passes of a prepared entry and creates their events.
func (t *Tracker) publish(ctx context.Context, entry tle.TLEEntry, res Result, opts Options) (Result, error) {
	logger := t.logger.With("satellite", entry.Name, "norad_id", entry.NORADID)

	found, stats, err := t.predictor.Passes(ctx, entry, PredictRequest{
		Observer:     opts.Observer,
		Start:        t.now().UTC().Truncate(time.Second),
		Window:       opts.Window,
		MinElevation: opts.MinElevation,
	})
	if err != nil {
		return res, err
	}
	res.Passes = found
	res.Stats = stats

	var errs []error
	for _, p := range found {
		link, err := t.publisher.CreatePassEvent(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		res.EventLinks = append(res.EventLinks, link)
	}

	logger.Info("tracked satellite",
		"passes", len(found),
		"events_created", len(res.EventLinks),
		"event_failures", len(errs),
	)
	if len(errs) > 0 {
		return res, fmt.Errorf("%d of %d events failed: %w", len(errs), len(found), errors.Join(errs...))
	}
	return res, nil
}

// Job is one satellite in a batch.
type Job struct {
	Name  string
	Input string // NORAD id, URL or TLE text
}

// Failure records why one satellite in a batch failed.
type Failure struct {
	Satellite string
	Err       error
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID         string
	Total         int
	Succeeded     int
	EventsCreated int
	Results       []Result
	Failures      []Failure
}

// ExitCode is 0 when every satellite succeeded and 1 otherwise.
func (s Summary) ExitCode() int {
	if len(s.Failures) > 0 {
		return 1
	}
	return 0
}

// RunBatch tracks every job. A failure of one satellite never stops the
// others. Results and failures keep the order of jobs.
//
// Deletion matches titles by substring, so every satellite is cleared before
// any event is created. "METEOR-M 2" must not remove the "METEOR-M 2-3"
// events published in the same run.
func (t *Tracker) RunBatch(ctx context.Context, jobs []Job, opts Options) Summary {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := t.logger.With("run_id", opts.RunID)
	logger.Info("starting batch",
		"satellites", len(jobs),
		"lat", opts.Observer.LatDeg,
		"lon", opts.Observer.LonDeg,
		"days_ahead", opts.Window.Hours()/24,
		"min_elevation", opts.MinElevation,
	)

	entries := make([]tle.TLEEntry, len(jobs))
	results := make([]Result, len(jobs))
	errs := make([]error, len(jobs))

	t.forEachJob(jobs, opts.Concurrency, func(i int) {
		if err := ctx.Err(); err != nil {
			results[i], errs[i] = Result{Satellite: jobs[i].Name}, err
			return
		}
		logger.Info("processing satellite", "satellite", jobs[i].Name)
		entries[i], results[i], errs[i] = t.prepare(ctx, jobs[i].Input, jobs[i].Name, opts)
	})
	t.forEachJob(jobs, opts.Concurrency, func(i int) {
		if errs[i] == nil {
			if err := ctx.Err(); err != nil {
				errs[i] = err
			} else {
				results[i], errs[i] = t.publish(ctx, entries[i], results[i], opts)
			}
		}
		metrics.RecordSatellite(errs[i])
		if errs[i] != nil {
			logger.Error("failed to process satellite", "satellite", jobs[i].Name, "error", errs[i])
		}
	})

	sum := Summary{RunID: opts.RunID, Total: len(jobs), Results: results}
	for i, res := range results {
		sum.EventsCreated += len(res.EventLinks)
		if errs[i] != nil {
			sum.Failures = append(sum.Failures, Failure{Satellite: jobs[i].Name, Err: errs[i]})
			continue
		}
		sum.Succeeded++
	}

	logger.Info("batch complete",
		"succeeded", sum.Succeeded,
		"total", sum.Total,
		"events_created", sum.EventsCreated,
	)
	for _, f := range sum.Failures {
		logger.Warn("failed satellite", "satellite", f.Satellite, "error", f.Err)
	}
	return sum
}

// forEachJob runs fn for every job index with at most limit in flight and
// waits for all of them.
func (t *Tracker) forEachJob(jobs []Job, limit int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range jobs {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// DeleteAll removes every passbot event up to lookAhead from now.
func (t *Tracker) DeleteAll(ctx context.Context, lookAhead time.Duration) (int, error) {
	n, err := t.publisher.DeleteSatelliteEvents(ctx, "", lookAhead)
	if err != nil {
		return n, err
	}
	t.logger.Info("deleted all pass events", "count", n)
	return n, nil
}
