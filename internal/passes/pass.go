// Package passes turns a time-ordered stream of rise/culmination/set events
// into complete satellite passes.
package passes

import (
	"fmt"
	"time"
)

// EventKind identifies what happened at an Event's instant.
type EventKind int

const (
	Rise        EventKind = iota // elevation crosses the threshold going up
	Culmination                  // local maximum of elevation
	Set                          // elevation crosses the threshold going down
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Culmination:
		return "culmination"
	case Set:
		return "set"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single sampler observation.
type Event struct {
	Time time.Time
	Kind EventKind
}

// Pass describes one observation opportunity, from rise to set.
type Pass struct {
	RiseTime        time.Time `json:"rise_time"`
	CulminationTime time.Time `json:"culmination_time"`
	SetTime         time.Time `json:"set_time"`
	MaxElevation    float64   `json:"max_elevation"` // degrees
	SatelliteName   string    `json:"satellite_name"`
}

// Duration returns the time between rise and set.
func (p Pass) Duration() time.Duration {
	return p.SetTime.Sub(p.RiseTime)
}
