package field

import (
	"math"
	"math/rand"
)

// transform maps real coordinates into the normalized metric space the
// interpolator works in, and back.
type transform struct {
	minLat, scaleLat   float64
	minLon, scaleLon   float64
	minWind, scaleWind float64
}

// minSpan is the minimum coordinate span (degrees, roughly 500 m)
// below which the range is padded before normalizing. Narrow ranges
// (one boat sailing a small box) make the interpolation geometry
// degenerate.
const minSpan = 0.005

// minWindSpan is the minimum wind-speed span in m/s.
const minWindSpan = 1.0

// scaled is an observation expressed in the normalized space.
type scaled struct {
	Observation
	x, y, h float64 // normalized lon, lat, wind speed
}

// scaleObservations pads degenerate ranges, normalizes latitude,
// longitude and wind speed to [0, 1], and adds small Gaussian jitter
// to break exact collinearity and duplicate points. The random source
// is injected so tests can fix a seed.
func scaleObservations(obs []Observation, rng *rand.Rand) ([]scaled, transform) {
	if len(obs) == 0 {
		return nil, transform{}
	}

	minLat, maxLat := obs[0].Latlon.Lat, obs[0].Latlon.Lat
	minLon, maxLon := obs[0].Latlon.Lon, obs[0].Latlon.Lon
	minWind, maxWind := obs[0].SpeedMS, obs[0].SpeedMS
	for _, o := range obs[1:] {
		minLat = math.Min(minLat, o.Latlon.Lat)
		maxLat = math.Max(maxLat, o.Latlon.Lat)
		minLon = math.Min(minLon, o.Latlon.Lon)
		maxLon = math.Max(maxLon, o.Latlon.Lon)
		minWind = math.Min(minWind, o.SpeedMS)
		maxWind = math.Max(maxWind, o.SpeedMS)
	}

	latRange := maxLat - minLat
	if latRange < minSpan {
		padding := (minSpan-latRange)/2 + 0.001
		minLat -= padding
		latRange = minSpan + 0.002
	}
	lonRange := maxLon - minLon
	if lonRange < minSpan {
		padding := (minSpan-lonRange)/2 + 0.001
		minLon -= padding
		lonRange = minSpan + 0.002
	}
	windRange := maxWind - minWind
	if windRange < minWindSpan {
		padding := (minWindSpan-windRange)/2 + 0.2
		minWind = math.Max(0, minWind-padding)
		windRange = minWindSpan + 0.4
	}

	tr := transform{
		minLat: minLat, scaleLat: 1.0 / latRange,
		minLon: minLon, scaleLon: 1.0 / lonRange,
		minWind: minWind, scaleWind: 1.0 / windRange,
	}

	out := make([]scaled, len(obs))
	for i, o := range obs {
		out[i] = scaled{
			Observation: o,
			x:           (o.Latlon.Lon-tr.minLon)*tr.scaleLon + rng.NormFloat64()*0.002,
			y:           (o.Latlon.Lat-tr.minLat)*tr.scaleLat + rng.NormFloat64()*0.002,
			h:           (o.SpeedMS-tr.minWind)*tr.scaleWind + rng.NormFloat64()*0.005,
		}
	}

	return out, tr
}

// lat, lon and wind map normalized coordinates back to real units.
func (tr transform) lat(y float64) float64 { return tr.minLat + y/tr.scaleLat }
func (tr transform) lon(x float64) float64 { return tr.minLon + x/tr.scaleLon }
func (tr transform) wind(h float64) float64 { return tr.minWind + h/tr.scaleWind }
