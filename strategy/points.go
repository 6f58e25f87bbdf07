// Package strategy detects tactical decision points along a race
// course from a wind field: wind shifts, favorable tack positions and
// layline approaches.
package strategy

import (
	"fmt"
	"time"

	"github.com/sailtactics/windfield-server/latlon"
)

// WindShiftPoint marks a place and time where the wind direction is
// trending or predicted to change.
type WindShiftPoint struct {
	Latlon         latlon.LatLon `json:"latlon"`
	Time           time.Time     `json:"time"`
	ShiftAngle     float64       `json:"shiftAngle"`
	Direction      float64       `json:"windDirection"`
	Probability    float64       `json:"probability"`
	Favorable      bool          `json:"favorable"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
}

func newWindShiftPoint(p PathPoint, shift, direction, probability float64, favorable bool) WindShiftPoint {
	side := "right"
	if shift < 0 {
		side = "left"
	}
	rec := "consider tacking to stay on the lifted side"
	if !favorable {
		rec = "expect a header, protect the favored side"
	}
	return WindShiftPoint{
		Latlon:         p.Latlon,
		Time:           p.Time,
		ShiftAngle:     shift,
		Direction:      direction,
		Probability:    probability,
		Favorable:      favorable,
		Description:    fmt.Sprintf("wind shifting %.0f° %s", abs(shift), side),
		Recommendation: rec,
	}
}

// TackPoint marks a position where tacking improves velocity made good
// toward the mark.
type TackPoint struct {
	Latlon         latlon.LatLon `json:"latlon"`
	Time           time.Time     `json:"time"`
	VMGGain        float64       `json:"vmgGain"`
	Confidence     float64       `json:"confidence"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
}

func newTackPoint(pos latlon.LatLon, t time.Time, gain, confidence float64) TackPoint {
	return TackPoint{
		Latlon:         pos,
		Time:           t,
		VMGGain:        gain,
		Confidence:     confidence,
		Description:    fmt.Sprintf("tack gains %.0f%% VMG", gain*100),
		Recommendation: "tack here for the better angle to the mark",
	}
}

// LaylinePoint marks a position on or near the port or starboard
// layline to the windward mark.
type LaylinePoint struct {
	Latlon         latlon.LatLon `json:"latlon"`
	Time           time.Time     `json:"time"`
	Side           string        `json:"side"`
	LaylineBearing float64       `json:"laylineBearing"`
	MarkDistance   float64       `json:"markDistance"`
	Confidence     float64       `json:"confidence"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
}

func newLaylinePoint(p PathPoint, side string, bearing, markDistance, confidence float64) LaylinePoint {
	return LaylinePoint{
		Latlon:         p.Latlon,
		Time:           p.Time,
		Side:           side,
		LaylineBearing: bearing,
		MarkDistance:   markDistance,
		Confidence:     confidence,
		Description:    fmt.Sprintf("%s layline, %.0f m to the mark", side, markDistance),
		Recommendation: "do not overstand, tack on the layline",
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
