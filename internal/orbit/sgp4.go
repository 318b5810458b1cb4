// Package orbit samples a satellite's elevation over a ground observer.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jwcutler/passbot/internal/tle"
	"github.com/jwcutler/passbot/internal/transform"
)

// ErrOrbitPropagation is returned when SGP4 cannot produce a usable state,
// e.g. for decayed or corrupt elements.
var ErrOrbitPropagation = errors.New("orbit: propagation failed")

// Observer is a fixed ground location.
type Observer struct {
	LatDeg float64
	LonDeg float64
	AltM   float64 // meters above the WGS-84 ellipsoid
}

// Validate checks that the coordinates are on the globe.
func (o Observer) Validate() error {
	if math.IsNaN(o.LatDeg) || o.LatDeg < -90 || o.LatDeg > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]", o.LatDeg)
	}
	if math.IsNaN(o.LonDeg) || o.LonDeg < -180 || o.LonDeg > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]", o.LonDeg)
	}
	return nil
}

// position places the observer on the WGS-84 ellipsoid.
func (o Observer) position() transform.ObserverPosition {
	return transform.NewObserverPosition(o.LatDeg, o.LonDeg, o.AltM)
}

// propagator wraps a go-satellite model for a single TLE.
//
// go-satellite's Propagate takes the Satellite by value, so SGP4 error codes
// are not visible after init. Failures are detected from the output instead.
type propagator struct {
	sat     satellite.Satellite
	noradID int
}

// newPropagator initializes SGP4 for entry. go-satellite calls log.Fatal on
// lines it cannot slice, so the layout is checked first.
func newPropagator(entry tle.TLEEntry) (*propagator, error) {
	if err := entry.CheckLines(); err != nil {
		return nil, fmt.Errorf("%w: NORAD %d: %w", ErrOrbitPropagation, entry.NORADID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(entry.Line1), strings.TrimSpace(entry.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: NORAD %d: sgp4 init code=%d %s", ErrOrbitPropagation, entry.NORADID, sat.Error, sat.ErrorStr)
	}
	return &propagator{sat: sat, noradID: entry.NORADID}, nil
}

// ecef propagates to t (whole seconds, UTC) and returns the Earth-fixed
// position in meters.
func (p *propagator) ecef(t time.Time) (transform.ECEF, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	teme, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	pos := transform.TEMEToECEFWithGMST(transform.TEME{X: teme.X, Y: teme.Y, Z: teme.Z}, transform.GMST(t))
	if err := transform.ValidateECEF(pos); err != nil {
		return transform.ECEF{}, fmt.Errorf("%w: NORAD %d at %s: %w",
			ErrOrbitPropagation, p.noradID, t.Format(time.RFC3339), err)
	}
	return pos, nil
}
