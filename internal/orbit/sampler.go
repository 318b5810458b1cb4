package orbit

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jwcutler/passbot/internal/passes"
	"github.com/jwcutler/passbot/internal/tle"
	"github.com/jwcutler/passbot/internal/transform"
)

const (
	defaultCoarseStep = 30 * time.Second
	fineStep          = time.Second // propagation resolution
)

// Options tunes the event search.
type Options struct {
	// CoarseStep is the spacing of the initial elevation scan. Passes shorter
	// than this can be missed. Defaults to 30s.
	CoarseStep time.Duration
}

// Sampler finds rise/culmination/set events for one satellite over one
// observer. Not safe for concurrent use.
type Sampler struct {
	prop *propagator
	name string
	site transform.ObserverPosition
	step time.Duration
}

// NewSampler initializes SGP4 for entry. It returns ErrOrbitPropagation if
// the elements cannot be used.
func NewSampler(entry tle.TLEEntry, obs Observer, opts Options) (*Sampler, error) {
	prop, err := newPropagator(entry)
	if err != nil {
		return nil, err
	}

	step := opts.CoarseStep.Truncate(time.Second)
	if step < fineStep {
		step = defaultCoarseStep
	}

	return &Sampler{
		prop: prop,
		name: entry.Name,
		site: obs.position(),
		step: step,
	}, nil
}

// Name returns the satellite name from the TLE.
func (s *Sampler) Name() string {
	return s.name
}

// lookAt returns the satellite's look angles at t, truncated to the whole
// second, measured from the observer's local ellipsoid normal.
func (s *Sampler) lookAt(t time.Time) (transform.LookAngles, error) {
	pos, err := s.prop.ecef(t.Truncate(time.Second))
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.ECEFToLookAngles(s.site, pos), nil
}

// ElevationAt returns the satellite elevation in degrees at t, truncated to
// the whole second.
func (s *Sampler) ElevationAt(t time.Time) (float64, error) {
	la, err := s.lookAt(t)
	if err != nil {
		return 0, err
	}
	return la.ElevationDeg, nil
}

// FindEvents scans [start, end] and returns the threshold crossings and
// elevation maxima in ascending time order.
//
// Every upward crossing of minEl is reported as Rise, every downward one as
// Set, and every interior local maximum at or above minEl as Culmination.
// A window that opens mid-pass starts without a Rise; one that closes
// mid-pass ends without a Set.
func (s *Sampler) FindEvents(ctx context.Context, start, end time.Time, minEl float64) ([]passes.Event, error) {
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)
	if !end.After(start) {
		return nil, nil
	}

	prevT := start
	prevEl, err := s.ElevationAt(prevT)
	if err != nil {
		return nil, err
	}

	var (
		events   []passes.Event
		beforeT  time.Time // sample preceding prevT
		beforeEl float64
		haveBfr  bool
	)

	for prevT.Before(end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t := prevT.Add(s.step)
		if t.After(end) {
			t = end
		}
		el, err := s.ElevationAt(t)
		if err != nil {
			return nil, err
		}

		switch {
		case prevEl < minEl && el >= minEl:
			ct, err := s.bisect(prevT, t, minEl, true)
			if err != nil {
				return nil, err
			}
			events = append(events, passes.Event{Time: ct, Kind: passes.Rise})
		case prevEl >= minEl && el < minEl:
			ct, err := s.bisect(prevT, t, minEl, false)
			if err != nil {
				return nil, err
			}
			events = append(events, passes.Event{Time: ct, Kind: passes.Set})
		}

		if haveBfr && beforeEl < prevEl && prevEl >= el {
			mt, mel, err := s.maximize(beforeT, t)
			if err != nil {
				return nil, err
			}
			if mel >= minEl {
				events = append(events, passes.Event{Time: mt, Kind: passes.Culmination})
			}
		}

		beforeT, beforeEl, haveBfr = prevT, prevEl, true
		prevT, prevEl = t, el
	}

	// Crossings are appended when the sample after them is seen, maxima one
	// sample later, so the two can interleave.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events, nil
}

// bisect narrows a threshold crossing inside (lo, hi] to the first whole
// second on the far side of minEl.
func (s *Sampler) bisect(lo, hi time.Time, minEl float64, rising bool) (time.Time, error) {
	for hi.Sub(lo) > fineStep {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if !mid.After(lo) {
			mid = lo.Add(fineStep)
		}
		el, err := s.ElevationAt(mid)
		if err != nil {
			return time.Time{}, err
		}
		if (el >= minEl) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

// maximize locates the highest whole-second elevation in [lo, hi] with a
// ternary search. The bracket holds a single maximum at the coarse scale.
func (s *Sampler) maximize(lo, hi time.Time) (time.Time, float64, error) {
	for hi.Sub(lo) > 2*fineStep {
		third := (hi.Sub(lo) / 3).Truncate(time.Second)
		m1 := lo.Add(third)
		m2 := hi.Add(-third)
		e1, err := s.ElevationAt(m1)
		if err != nil {
			return time.Time{}, 0, err
		}
		e2, err := s.ElevationAt(m2)
		if err != nil {
			return time.Time{}, 0, err
		}
		if e1 < e2 {
			lo = m1
		} else {
			hi = m2
		}
	}

	bestT, bestEl := lo, math.Inf(-1)
	for t := lo; !t.After(hi); t = t.Add(fineStep) {
		el, err := s.ElevationAt(t)
		if err != nil {
			return time.Time{}, 0, err
		}
		if el > bestEl {
			bestT, bestEl = t, el
		}
	}
	return bestT, bestEl, nil
}
