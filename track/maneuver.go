package track

import (
	"math"

	"github.com/sailtactics/windfield-server/angles"
)

type ManeuverType string

const (
	Tack     ManeuverType = "tack"
	Jibe     ManeuverType = "jibe"
	BearAway ManeuverType = "bear_away"
	HeadUp   ManeuverType = "head_up"
)

// Maneuver is one detected direction change, represented by the track
// point with the largest single-step bearing change of the group.
type Maneuver struct {
	Index         int
	Point         Point
	BeforeBearing float64
	AfterBearing  float64
	AngleChange   float64
	Type          ManeuverType
}

// Categorize classifies a direction change against the wind. A bearing
// whose relative angle to the wind lies within ±90° is upwind.
// upwind → upwind is a tack, downwind → downwind a jibe, upwind →
// downwind a bear-away and downwind → upwind a head-up.
func Categorize(beforeBearing, afterBearing, windDirection float64) ManeuverType {
	relBefore := angles.Normalize(beforeBearing - windDirection)
	relAfter := angles.Normalize(afterBearing - windDirection)

	upwindBefore := relBefore <= 90 || relBefore >= 270
	upwindAfter := relAfter <= 90 || relAfter >= 270

	switch {
	case upwindBefore && upwindAfter:
		return Tack
	case !upwindBefore && !upwindAfter:
		return Jibe
	case upwindBefore && !upwindAfter:
		return BearAway
	default:
		return HeadUp
	}
}

// DetectManeuvers finds direction changes where the rolling-window sum
// of bearing changes exceeds minAngleChange, groups contiguous
// qualifying samples into one event and classifies each event against
// the wind direction. Events whose net bearing change stays within
// minAngleChange are discarded as noise. windowSize is in samples.
func DetectManeuvers(points []Point, windDirection float64, minAngleChange float64, windowSize int) []Maneuver {
	if len(points) < windowSize*2 {
		return nil
	}
	if windDirection < 0 || windDirection >= 360 {
		windDirection = angles.Normalize(windDirection)
	}

	changes := BearingChanges(points)

	// centered rolling sum of bearing changes
	sums := make([]float64, len(changes))
	half := windowSize / 2
	for i := range changes {
		lo := i - half
		hi := lo + windowSize
		if lo < 0 {
			lo = 0
		}
		if hi > len(changes) {
			hi = len(changes)
		}
		for j := lo; j < hi; j++ {
			sums[i] += changes[j]
		}
	}

	var maneuvers []Maneuver
	inGroup := false
	groupStart := 0

	flush := func(start, end int) {
		// representative point: largest single-step change in the group
		best := start
		for i := start; i < end; i++ {
			if changes[i] > changes[best] {
				best = i
			}
		}

		beforeIdx := best - windowSize
		if beforeIdx < 0 {
			beforeIdx = 0
		}
		afterIdx := best + windowSize
		if afterIdx > len(points)-1 {
			afterIdx = len(points) - 1
		}

		before := points[beforeIdx].Bearing
		after := points[afterIdx].Bearing

		// an out-and-back wiggle qualifies on the rolling sum but has no
		// net direction change
		if math.Abs(angles.Difference(after, before)) <= minAngleChange {
			return
		}

		maneuvers = append(maneuvers, Maneuver{
			Index:         best,
			Point:         points[best],
			BeforeBearing: before,
			AfterBearing:  after,
			AngleChange:   angles.Difference(after, before),
			Type:          Categorize(before, after, windDirection),
		})
	}

	for i := range sums {
		qualifies := sums[i] > minAngleChange
		if qualifies && !inGroup {
			inGroup = true
			groupStart = i
		} else if !qualifies && inGroup {
			inGroup = false
			flush(groupStart, i)
		}
	}
	if inGroup {
		flush(groupStart, len(sums))
	}

	return maneuvers
}
