// Package estimator infers wind direction and speed from a single
// boat's GPS track: maneuvers reveal the wind axis, boat speed and
// polar ratios reveal the wind strength.
package estimator

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/track"
)

// Estimate is one windowed wind estimate along a track. Direction is
// the direction the wind blows from; speed is in knots.
type Estimate struct {
	Time       time.Time     `json:"timestamp"`
	Latlon     latlon.LatLon `json:"latlon"`
	Direction  float64       `json:"windDirection"`
	SpeedKnots float64       `json:"windSpeed"`
	Confidence float64       `json:"confidence"`
	BoatId     string        `json:"boatId"`
}

// Estimator derives wind estimates from boat tracks.
type Estimator struct {
	// MinValidPoints is the minimum track length.
	MinValidPoints int
	// MinValidDuration is the minimum track duration.
	MinValidDuration time.Duration
	// ManeuverAngle is the rolling bearing-change threshold, degrees.
	ManeuverAngle float64
	// WindowFraction sizes the sliding estimation window relative to
	// the track length.
	WindowFraction float64
	// BayesAlpha weights the newest window against the running
	// estimate when Bayesian smoothing is on.
	BayesAlpha float64
	// UseBayesian enables smoothing across windows.
	UseBayesian bool

	polars *polar.Table
}

// New returns an estimator with the standard tuning.
func New(polars *polar.Table) *Estimator {
	return &Estimator{
		MinValidPoints:   20,
		MinValidDuration: 60 * time.Second,
		ManeuverAngle:    30.0,
		WindowFraction:   0.1,
		BayesAlpha:       0.3,
		UseBayesian:      true,
		polars:           polars,
	}
}

// FromSingleBoat produces a windowed time series of wind estimates
// from one boat's track. Returns nil when the track is too short or
// too brief to support an estimate.
func (e *Estimator) FromSingleBoat(points []track.Point, boatType string) []Estimate {
	if len(points) < e.MinValidPoints {
		log.WithFields(log.Fields{
			"points":  len(points),
			"minimum": e.MinValidPoints,
		}).Warn("track too short for wind estimation")
		return nil
	}
	if track.Duration(points) < e.MinValidDuration.Seconds() {
		log.WithFields(log.Fields{
			"seconds": track.Duration(points),
			"minimum": e.MinValidDuration.Seconds(),
		}).Warn("track too brief for wind estimation")
		return nil
	}

	winSize := int(float64(len(points)) * e.WindowFraction)
	if winSize < e.MinValidPoints {
		winSize = e.MinValidPoints
	}
	if winSize > len(points) {
		winSize = len(points)
	}
	step := winSize / 2
	if step < 1 {
		step = 1
	}

	var out []Estimate
	var prior *Estimate

	for start := 0; start < len(points); start += step {
		end := start + winSize
		if end > len(points) {
			end = len(points)
		}
		window := points[start:end]
		if len(window) < e.MinValidPoints/2 {
			break
		}

		dir, conf, ok := e.estimateDirection(window)
		if !ok {
			continue
		}
		speed := e.estimateSpeed(window, dir, boatType)

		center := window[len(window)/2]
		est := Estimate{
			Time:       center.Time,
			Latlon:     center.Latlon,
			Direction:  dir,
			SpeedKnots: speed,
			Confidence: conf * edgeFactor(start+len(window)/2, len(points)),
			BoatId:     center.BoatId,
		}

		if e.UseBayesian && prior != nil {
			est = e.bayesianUpdate(*prior, est)
		}
		prior = &est
		out = append(out, est)

		if end == len(points) {
			break
		}
	}

	if len(out) == 0 {
		log.Warn("no window produced a wind estimate")
		return nil
	}
	return out
}

// edgeFactor decays confidence toward the ends of the track, where
// windows overlap less data.
func edgeFactor(center, total int) float64 {
	if total <= 1 {
		return 1
	}
	pos := float64(center) / float64(total-1)
	d := 2*pos - 1
	if d < 0 {
		d = -d
	}
	return 0.7 + 0.3*(1-d)
}

// bayesianUpdate blends the running estimate with the newest window in
// circular-mean form.
func (e *Estimator) bayesianUpdate(prior, current Estimate) Estimate {
	wPrior := prior.Confidence * (1 - e.BayesAlpha)
	wCurrent := current.Confidence * e.BayesAlpha
	if wPrior+wCurrent <= 0 {
		return current
	}

	out := current
	out.Direction = angles.WeightedMean(
		[]float64{prior.Direction, current.Direction},
		[]float64{wPrior, wCurrent},
	)
	out.SpeedKnots = (prior.SpeedKnots*wPrior + current.SpeedKnots*wCurrent) / (wPrior + wCurrent)
	out.Confidence = (prior.Confidence*wPrior + current.Confidence*wCurrent) / (wPrior + wCurrent)
	return out
}

// estimateDirection infers the wind-from direction for one window.
// Maneuver clustering is tried first; bearing-frequency analysis and
// max-speed reversal are the fallbacks.
func (e *Estimator) estimateDirection(points []track.Point) (float64, float64, bool) {
	maneuvers := track.DetectManeuvers(points, 0, e.ManeuverAngle, 3)

	if len(maneuvers) >= 2 {
		if dir, conf, ok := directionFromManeuvers(points, maneuvers); ok {
			return dir, conf, true
		}
	}

	if dir, conf, ok := directionFromSpeedPattern(points); ok {
		return dir, conf, true
	}

	return directionFromMaxSpeed(points)
}

// directionFromManeuvers clusters the stable segments between
// maneuvers into two tacks and takes the upwind bisector.
func directionFromManeuvers(points []track.Point, maneuvers []track.Maneuver) (float64, float64, bool) {
	type segment struct {
		bearing float64
		speed   float64
		weight  float64
	}

	bounds := []int{0}
	for _, m := range maneuvers {
		bounds = append(bounds, m.Index)
	}
	bounds = append(bounds, len(points))

	var segments []segment
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		if hi-lo < 3 {
			continue
		}
		part := points[lo:hi]
		segments = append(segments, segment{
			bearing: angles.Mean(track.Bearings(part)),
			speed:   meanOf(track.Speeds(part)),
			weight:  float64(len(part)),
		})
	}
	if len(segments) < 2 {
		return 0, 0, false
	}

	bearings := make([]float64, len(segments))
	weights := make([]float64, len(segments))
	for i, s := range segments {
		bearings[i] = s.bearing
		weights[i] = s.weight
	}

	peak1, peak2, ok := twoOpposingPeaks(bearings, weights)
	if !ok {
		return 0, 0, false
	}

	var b1, b2, w1, w2, s1, s2 float64
	var dirs1, dirs2, wts1, wts2 []float64
	for _, s := range segments {
		if closerTo(s.bearing, peak1, peak2) {
			dirs1 = append(dirs1, s.bearing)
			wts1 = append(wts1, s.weight)
			s1 += s.speed * s.weight
			w1 += s.weight
		} else {
			dirs2 = append(dirs2, s.bearing)
			wts2 = append(wts2, s.weight)
			s2 += s.speed * s.weight
			w2 += s.weight
		}
	}
	if w1 == 0 || w2 == 0 {
		return 0, 0, false
	}
	b1 = angles.WeightedMean(dirs1, wts1)
	b2 = angles.WeightedMean(dirs2, wts2)
	s1 /= w1
	s2 /= w2

	upwind := b1
	if s2 < s1 {
		upwind = b2
	}

	dir := windFromTacks(b1, b2, upwind)
	conf := 0.4 + 0.1*float64(len(maneuvers))
	if conf > 0.8 {
		conf = 0.8
	}
	return dir, conf, true
}

// windFromTacks turns two opposing tack bearings into the direction
// the wind blows from: the bisector, flipped onto the side of the
// slower (upwind) cluster.
func windFromTacks(b1, b2, upwindBearing float64) float64 {
	dir := angles.Bisector(b1, b2)
	if d := angles.Difference(upwindBearing, dir); d > 90 || d < -90 {
		dir = angles.Normalize(dir + 180)
	}
	return dir
}

// directionFromSpeedPattern histograms raw bearings, picks the two
// most sailed opposing headings, and treats the slower as upwind.
func directionFromSpeedPattern(points []track.Point) (float64, float64, bool) {
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

	var d1, d2, s1, s2, n1, n2 float64
	var dirs1, dirs2 []float64
	for i, b := range bearings {
		if closerTo(b, peak1, peak2) {
			dirs1 = append(dirs1, b)
			s1 += speeds[i]
			n1++
		} else {
			dirs2 = append(dirs2, b)
			s2 += speeds[i]
			n2++
		}
	}
	if n1 == 0 || n2 == 0 {
		return 0, 0, false
	}
	d1 = angles.Mean(dirs1)
	d2 = angles.Mean(dirs2)

	upwind := d1
	if s2/n2 < s1/n1 {
		upwind = d2
	}

	return windFromTacks(d1, d2, upwind), 0.5, true
}

// directionFromMaxSpeed reverses the mean bearing of the fastest
// points. Fast sailing is broad reaching, roughly away from the wind.
func directionFromMaxSpeed(points []track.Point) (float64, float64, bool) {
	speeds := track.Speeds(points)
	maxSpeed := 0.0
	for _, s := range speeds {
		if s > maxSpeed {
			maxSpeed = s
		}
	}
	if maxSpeed <= 0 {
		return 0, 0, false
	}

	var fast []float64
	for i, s := range speeds {
		if s >= maxSpeed*0.8 {
			fast = append(fast, points[i].Bearing)
		}
	}
	if len(fast) == 0 {
		return 0, 0, false
	}

	return angles.Normalize(angles.Mean(fast) + 180), 0.35, true
}

// histogramBins is the circular histogram resolution (10 degree bins).
const histogramBins = 36

// twoOpposingPeaks finds the two histogram peaks at least 90 degrees
// apart with the largest combined mass.
func twoOpposingPeaks(bearings, weights []float64) (float64, float64, bool) {
	var hist [histogramBins]float64
	for i, b := range bearings {
		bin := int(angles.Normalize(b) / (360.0 / histogramBins))
		if bin >= histogramBins {
			bin = histogramBins - 1
		}
		hist[bin] += weights[i]
	}

	binCenter := func(i int) float64 {
		return (float64(i) + 0.5) * (360.0 / histogramBins)
	}

	best1, best2 := -1, -1
	bestMass := 0.0
	for i := 0; i < histogramBins; i++ {
		if hist[i] == 0 {
			continue
		}
		for j := i + 1; j < histogramBins; j++ {
			if hist[j] == 0 {
				continue
			}
			d := angles.Difference(binCenter(i), binCenter(j))
			if d < 0 {
				d = -d
			}
			if d < 90 {
				continue
			}
			if mass := hist[i] + hist[j]; mass > bestMass {
				bestMass = mass
				best1, best2 = i, j
			}
		}
	}
	if best1 < 0 {
		return 0, 0, false
	}
	return binCenter(best1), binCenter(best2), true
}

// closerTo reports whether b is circularly closer to a than to c.
func closerTo(b, a, c float64) bool {
	da := angles.Difference(b, a)
	dc := angles.Difference(b, c)
	if da < 0 {
		da = -da
	}
	if dc < 0 {
		dc = -dc
	}
	return da <= dc
}

// estimateSpeed backs out true wind speed in knots from boat speed:
// points are bucketed by their angle to the wind, bucket means are
// scaled by the boat's polar ratios, and the upwind-derived estimate
// dominates the blend.
func (e *Estimator) estimateSpeed(points []track.Point, windDirection float64, boatType string) float64 {
	var upSum, upN, downSum, downN float64
	for _, p := range points {
		rel := angles.Difference(p.Bearing, windDirection)
		if rel < 0 {
			rel = -rel
		}
		switch {
		case rel < 60:
			upSum += p.Speed
			upN++
		case rel > 120:
			downSum += p.Speed
			downN++
		}
	}

	c := e.polars.ForBoat(boatType)

	var fromUp, fromDown float64
	if upN > 0 {
		fromUp = (upSum / upN) * c.Upwind
	}
	if downN > 0 {
		fromDown = (downSum / downN) * c.Downwind
	}

	var ms float64
	switch {
	case upN > 0 && downN > 0:
		ms = 0.7*fromUp + 0.3*fromDown
	case upN > 0:
		ms = fromUp
	case downN > 0:
		ms = fromDown
	default:
		ms = meanOf(track.Speeds(points)) * (c.Upwind + c.Downwind) / 2
	}

	return ms * 1.94384
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
