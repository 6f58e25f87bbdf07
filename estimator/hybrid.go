package estimator

import (
	"math"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/track"
)

// Hybrid combines several independent direction estimators into one
// consensus estimate. Each sub-estimator returns a direction and its
// own confidence; zero-confidence estimators are left out.
type Hybrid struct {
	polars *polar.Table
}

// NewHybrid returns a hybrid direction estimator.
func NewHybrid(polars *polar.Table) *Hybrid {
	return &Hybrid{polars: polars}
}

// Direction estimates the wind-from direction by consensus across the
// speed-pattern, polar-matching and VMG-angle estimators, with the
// combined confidence scaled by a data-quality score.
func (h *Hybrid) Direction(points []track.Point, boatType string) (float64, float64) {
	type candidate struct {
		direction  float64
		confidence float64
	}

	var candidates []candidate
	if dir, conf, ok := directionFromSpeedPattern(points); ok && conf > 0 {
		candidates = append(candidates, candidate{dir, conf})
	}
	if dir, conf, ok := h.directionFromPolarMatch(points, boatType); ok && conf > 0 {
		candidates = append(candidates, candidate{dir, conf})
	}
	if dir, conf, ok := h.directionFromVMGAngle(points, boatType); ok && conf > 0 {
		candidates = append(candidates, candidate{dir, conf})
	}
	if len(candidates) == 0 {
		return 0, 0
	}

	dirs := make([]float64, len(candidates))
	confs := make([]float64, len(candidates))
	maxConf, sumConf := 0.0, 0.0
	for i, c := range candidates {
		dirs[i] = c.direction
		confs[i] = c.confidence
		sumConf += c.confidence
		maxConf = math.Max(maxConf, c.confidence)
	}

	direction := angles.WeightedMean(dirs, confs)
	confidence := (0.7*maxConf + 0.3*sumConf/float64(len(candidates))) * dataQuality(points)
	return direction, confidence
}

// directionFromPolarMatch scans candidate wind directions and keeps
// the one whose polar-predicted boat speeds best match the observed
// speeds.
func (h *Hybrid) directionFromPolarMatch(points []track.Point, boatType string) (float64, float64, bool) {
	if len(points) < 10 {
		return 0, 0, false
	}

	bestDir, bestErr := 0.0, math.Inf(1)
	for cand := 0.0; cand < 360; cand += 5 {
		tws := h.windSpeedGuess(points, cand, boatType)
		if tws <= 0 {
			continue
		}

		err := 0.0
		for _, p := range points {
			twa := angles.Difference(p.Bearing, cand)
			predicted := h.polars.Speed(boatType, twa, tws) / 1.94384
			err += (p.Speed - predicted) * (p.Speed - predicted)
		}
		err /= float64(len(points))

		if err < bestErr {
			bestErr = err
			bestDir = cand
		}
	}
	if math.IsInf(bestErr, 1) {
		return 0, 0, false
	}

	meanSpeed := meanOf(track.Speeds(points))
	if meanSpeed <= 0 {
		return 0, 0, false
	}
	// relative RMS error maps to confidence in (0, 0.7]
	rel := math.Sqrt(bestErr) / meanSpeed
	conf := 0.7 / (1 + 2*rel)

	return bestDir, conf, true
}

// windSpeedGuess backs a true wind speed (knots) out of the observed
// speeds for a hypothetical wind direction.
func (h *Hybrid) windSpeedGuess(points []track.Point, windDirection float64, boatType string) float64 {
	c := h.polars.ForBoat(boatType)

	var sum, n float64
	for _, p := range points {
		rel := math.Abs(angles.Difference(p.Bearing, windDirection))
		if rel < 60 {
			sum += p.Speed * c.Upwind
			n++
		} else if rel > 120 {
			sum += p.Speed * c.Downwind
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return (sum / n) * 1.94384
}

// directionFromVMGAngle assumes the two dominant headings are sailed
// at the boat's optimal upwind VMG angle on each tack, which puts the
// wind on their upwind bisector.
func (h *Hybrid) directionFromVMGAngle(points []track.Point, boatType string) (float64, float64, bool) {
	bearings := track.Bearings(points)
	speeds := track.Speeds(points)

	weights := make([]float64, len(bearings))
	for i := range weights {
		weights[i] = 1
	}
	peak1, peak2, ok := twoOpposingPeaks(bearings, weights)
	if !ok {
		return 0, 0, false
	}

	var s1, n1, s2, n2 float64
	for i, b := range bearings {
		if closerTo(b, peak1, peak2) {
			s1 += speeds[i]
			n1++
		} else {
			s2 += speeds[i]
			n2++
		}
	}
	if n1 == 0 || n2 == 0 {
		return 0, 0, false
	}

	upwind := peak1
	if s2/n2 < s1/n1 {
		upwind = peak2
	}

	// sanity check: the observed tack separation should roughly match
	// twice the optimal VMG angle
	separation := math.Abs(angles.Difference(peak1, peak2))
	expected := 2 * h.polars.OptimalVMGAngle(boatType, true)
	if math.Abs(separation-expected) > 40 {
		return 0, 0, false
	}

	return windFromTacks(peak1, peak2, upwind), 0.4, true
}

// dataQuality scores a track in [0, 1] from missing values, speed
// spread and bearing dispersion.
func dataQuality(points []track.Point) float64 {
	if len(points) == 0 {
		return 0
	}

	missing := 0
	for _, p := range points {
		if p.Time.IsZero() || (p.Latlon.Lat == 0 && p.Latlon.Lon == 0) {
			missing++
		}
	}
	missingRate := float64(missing) / float64(len(points))

	speeds := track.Speeds(points)
	mean := meanOf(speeds)
	cv := 0.0
	if mean > 0 {
		variance := 0.0
		for _, s := range speeds {
			variance += (s - mean) * (s - mean)
		}
		variance /= float64(len(speeds))
		cv = math.Sqrt(variance) / mean
	}

	dispersion := angles.StdDev(track.Bearings(points))

	q := 1.0 - 0.4*missingRate - 0.3*math.Min(cv, 1) - 0.3*math.Min(dispersion, 1)
	if q < 0 {
		q = 0
	}
	return q
}
