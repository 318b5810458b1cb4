package passes

import (
	"iter"
	"math"
	"slices"
	"time"
)

// ElevationFunc reports the satellite elevation in degrees at t.
type ElevationFunc func(t time.Time) (float64, error)

// Params configures an extraction run.
type Params struct {
	SatelliteName string
	// Elevation is queried at every culmination instant. A nil func or a
	// failed lookup discards the open pass.
	Elevation ElevationFunc
	// MinElevation is the threshold the sampler searched with. A culmination
	// below it discards the open pass.
	MinElevation float64
}

// Stats counts what happened to the events of one run.
type Stats struct {
	Emitted         int
	Orphaned        int // culmination or set with no open pass
	Malformed       int // open pass discarded by an out-of-order event
	BelowThreshold  int
	ElevationErrors int // failed or non-finite culmination lookups
	Truncated       int // open pass still pending when the stream ended
	Ignored         int // culmination skipped while the open pass was kept
}

type state int

const (
	stateIdle state = iota
	stateHavingRise
	stateHavingCulmination
)

// Extractor is the incremental form of Extract. It holds only the pass
// currently being built. Not safe for concurrent use; one per stream.
type Extractor struct {
	params Params

	state        state
	riseTime     time.Time
	culmTime     time.Time
	maxElevation float64

	stats Stats
}

// NewExtractor returns an Extractor in the idle state.
func NewExtractor(p Params) *Extractor {
	return &Extractor{params: p}
}

// Observe feeds the next event. It returns a Pass when ev completes one.
func (x *Extractor) Observe(ev Event) (Pass, bool) {
	switch x.state {
	case stateIdle:
		switch ev.Kind {
		case Rise:
			x.open(ev.Time)
		default:
			x.stats.Orphaned++
		}

	case stateHavingRise:
		switch ev.Kind {
		case Rise:
			// Two rises in a row: the later one wins.
			x.stats.Malformed++
			x.open(ev.Time)
		case Culmination:
			if !ev.Time.After(x.riseTime) {
				x.stats.Ignored++
				return Pass{}, false
			}
			el, why := x.elevationAt(ev.Time)
			if why != usable {
				x.countDiscard(why)
				x.reset()
				return Pass{}, false
			}
			x.culmTime = ev.Time
			x.maxElevation = el
			x.state = stateHavingCulmination
		case Set:
			x.stats.Malformed++
			x.reset()
		}

	case stateHavingCulmination:
		switch ev.Kind {
		case Rise:
			x.stats.Malformed++
			x.open(ev.Time)
		case Culmination:
			// A second maximum inside the same pass; keep the higher one.
			if !ev.Time.After(x.culmTime) {
				x.stats.Ignored++
				return Pass{}, false
			}
			el, why := x.elevationAt(ev.Time)
			if why != usable {
				x.stats.Ignored++
				return Pass{}, false
			}
			if el > x.maxElevation {
				x.culmTime = ev.Time
				x.maxElevation = el
			}
		case Set:
			if !ev.Time.After(x.culmTime) {
				x.stats.Malformed++
				x.reset()
				return Pass{}, false
			}
			p := Pass{
				RiseTime:        x.riseTime,
				CulminationTime: x.culmTime,
				SetTime:         ev.Time,
				MaxElevation:    x.maxElevation,
				SatelliteName:   x.params.SatelliteName,
			}
			x.stats.Emitted++
			x.reset()
			return p, true
		}
	}
	return Pass{}, false
}

// Close marks the end of the stream. A pass still open is dropped.
func (x *Extractor) Close() {
	if x.state != stateIdle {
		x.stats.Truncated++
	}
	x.reset()
}

// Stats returns the counters accumulated so far.
func (x *Extractor) Stats() Stats {
	return x.stats
}

func (x *Extractor) open(t time.Time) {
	x.state = stateHavingRise
	x.riseTime = t
	x.culmTime = time.Time{}
	x.maxElevation = 0
}

func (x *Extractor) reset() {
	x.state = stateIdle
	x.riseTime = time.Time{}
	x.culmTime = time.Time{}
	x.maxElevation = 0
}

type verdict int

const (
	usable verdict = iota
	unavailable
	belowThreshold
)

// elevationAt looks up the culmination elevation. Only a finite value at or
// above the threshold is usable.
func (x *Extractor) elevationAt(t time.Time) (float64, verdict) {
	if x.params.Elevation == nil {
		return 0, unavailable
	}
	el, err := x.params.Elevation(t)
	if err != nil || math.IsNaN(el) || math.IsInf(el, 0) {
		return 0, unavailable
	}
	if el < x.params.MinElevation {
		return 0, belowThreshold
	}
	return el, usable
}

// countDiscard records why an open pass was dropped at its culmination.
func (x *Extractor) countDiscard(v verdict) {
	switch v {
	case unavailable:
		x.stats.ElevationErrors++
	case belowThreshold:
		x.stats.BelowThreshold++
	}
}

// Extract converts an ascending event sequence into complete passes.
// It never fails: malformed input degrades to dropped or recovered passes.
func Extract(events []Event, p Params) []Pass {
	passes, _ := ExtractWithStats(slices.Values(events), p)
	return passes
}

// ExtractWithStats is Extract over a lazily produced sequence, also
// returning the run's counters.
func ExtractWithStats(events iter.Seq[Event], p Params) ([]Pass, Stats) {
	x := NewExtractor(p)
	var out []Pass
	for ev := range events {
		if pass, ok := x.Observe(ev); ok {
			out = append(out, pass)
		}
	}
	x.Close()
	return out, x.Stats()
}
