// Package transform rotates SGP4 output into the Earth-fixed frame and
// computes look angles from a ground site on the WGS-84 ellipsoid.
//
// TEME is taken to PEF with a GMST rotation only. Polar motion and the
// equation of the equinoxes are ignored; the resulting error is tens of
// meters, far below what pass timing can resolve.
package transform

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnphysical is returned by ValidateECEF for positions no Earth satellite
// can occupy.
var ErrUnphysical = errors.New("transform: unphysical position")

const (
	j2000         = 2451545.0 // JD of 2000-01-01 12:00 TT
	secondsPerDay = 86400.0

	minOrbitRadiusM = 6200e3
	maxOrbitRadiusM = 50000e3
)

// TEME is an SGP4 position in kilometers.
type TEME struct {
	X, Y, Z float64
}

// ECEF is an Earth-fixed position in meters.
type ECEF struct {
	X, Y, Z float64
}

// Norm returns the distance from the geocenter in meters.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// JulianDate returns the Julian Date of t (Meeus, ch. 7).
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	year, month := t.Year(), int(t.Month())
	if month <= 2 {
		year--
		month += 12
	}
	y, m := float64(year), float64(month)

	century := math.Floor(y / 100)
	gregorian := 2 - century + math.Floor(century/4)

	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600) / 24

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) +
		float64(t.Day()) + gregorian - 1524.5 + dayFrac
}

// GMST returns Greenwich Mean Sidereal Time at t in radians, in [0, 2π).
// IAU-82 model, Vallado eq. 3-47, with UT1 taken as UTC.
func GMST(t time.Time) float64 {
	c := (JulianDate(t) - j2000) / 36525.0

	sec := 67310.54841 +
		(876600*3600+8640184.812866)*c +
		0.093104*c*c -
		6.2e-6*c*c*c

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}

// TEMEToECEFWithGMST rotates p about the pole by gmst radians and converts
// to meters.
func TEMEToECEFWithGMST(p TEME, gmst float64) ECEF {
	sin, cos := math.Sincos(gmst)
	return ECEF{
		X: (p.X*cos + p.Y*sin) * 1000,
		Y: (p.Y*cos - p.X*sin) * 1000,
		Z: p.Z * 1000,
	}
}

// TEMEToECEF is TEMEToECEFWithGMST at the sidereal angle of t.
func TEMEToECEF(p TEME, t time.Time) ECEF {
	return TEMEToECEFWithGMST(p, GMST(t))
}

// ValidateECEF rejects NaN or infinite components and radii outside
// 6200-50000 km. Decayed or corrupt element sets produce both.
func ValidateECEF(p ECEF) error {
	for _, v := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite component", ErrUnphysical)
		}
	}
	if r := p.Norm(); r < minOrbitRadiusM || r > maxOrbitRadiusM {
		return fmt.Errorf("%w: radius %.1f km", ErrUnphysical, r/1000)
	}
	return nil
}
