package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const deg = 180 / math.Pi

// ObserverPosition is a ground site with its Earth-fixed position and the
// trigonometry of its geodetic coordinates precomputed, so repeated look
// angle evaluations only pay for the rotation.
type ObserverPosition struct {
	ECEF ECEF

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// NewObserverPosition places a site at geodetic latitude and longitude in
// degrees and altM meters above the WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	sinLat, cosLat := math.Sincos(latDeg / deg)
	sinLon, cosLon := math.Sincos(lonDeg / deg)

	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ObserverPosition{
		ECEF: ECEF{
			X: (n + altM) * cosLat * cosLon,
			Y: (n + altM) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + altM) * sinLat,
		},
		sinLat: sinLat, cosLat: cosLat,
		sinLon: sinLon, cosLon: cosLon,
	}
}

// LookAngles is a satellite's direction and distance from a site.
type LookAngles struct {
	AzimuthDeg   float64 // clockwise from north, [0, 360)
	ElevationDeg float64 // above the local horizon
	RangeKm      float64
}

// ECEFToLookAngles rotates the site-to-satellite vector into the
// south-east-zenith frame of obs (Vallado 4.4).
func ECEFToLookAngles(obs ObserverPosition, sat ECEF) LookAngles {
	dx := sat.X - obs.ECEF.X
	dy := sat.Y - obs.ECEF.Y
	dz := sat.Z - obs.ECEF.Z

	south := obs.sinLat*obs.cosLon*dx + obs.sinLat*obs.sinLon*dy - obs.cosLat*dz
	east := -obs.sinLon*dx + obs.cosLon*dy
	up := obs.cosLat*obs.cosLon*dx + obs.cosLat*obs.sinLon*dy + obs.sinLat*dz

	rng := math.Sqrt(south*south + east*east + up*up)

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az * deg,
		ElevationDeg: math.Asin(up/rng) * deg,
		RangeKm:      rng / 1000,
	}
}
