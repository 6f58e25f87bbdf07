// Package vmg computes optimal velocity-made-good courses toward a
// mark from the wind and the boat's polar ratios.
package vmg

import (
	"math"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
)

// Result describes the best course toward a mark under a given wind.
type Result struct {
	OptimalCourse  float64 `json:"optimalCourse"`
	BoatSpeedKnots float64 `json:"boatSpeed"`
	VMGKnots       float64 `json:"vmg"`
	TackNeeded     bool    `json:"tackNeeded"`
	ETASeconds     float64 `json:"etaSeconds"`
}

// Calculator resolves optimal courses against a polar table.
type Calculator struct {
	polars *polar.Table
}

// NewCalculator returns a VMG calculator.
func NewCalculator(polars *polar.Table) *Calculator {
	return &Calculator{polars: polars}
}

// Optimal computes the best course from position to mark. When the
// mark lies inside the no-go zone (or too deep downwind), the course
// is the optimal VMG angle on the tack pointing closer to the mark,
// and TackNeeded reports whether the boat must change tacks to sail
// it.
func (c *Calculator) Optimal(boatType string, windDirection, windSpeedKnots float64, position, mark latlon.LatLon, currentCourse float64) Result {
	dist, bearingToMark := latlon.DistanceAndBearingTo(position, mark)

	relToMark := math.Abs(angles.Difference(bearingToMark, windDirection))
	upAngle := c.polars.OptimalVMGAngle(boatType, true)
	downAngle := c.polars.OptimalVMGAngle(boatType, false)

	course := bearingToMark
	switch {
	case relToMark < upAngle:
		course = c.bestOfTacks(boatType, windDirection, windSpeedKnots, bearingToMark, upAngle)
	case relToMark > downAngle:
		course = c.bestOfTacks(boatType, windDirection, windSpeedKnots, bearingToMark, downAngle)
	}

	twa := angles.Difference(course, windDirection)
	speed := c.polars.Speed(boatType, twa, windSpeedKnots)
	vmg := speed * math.Cos(angles.Difference(course, bearingToMark)*math.Pi/180)

	eta := math.Inf(1)
	if vmg > 0 {
		eta = dist / (vmg * 0.51444)
	}

	return Result{
		OptimalCourse:  course,
		BoatSpeedKnots: speed,
		VMGKnots:       vmg,
		TackNeeded:     tackNeeded(currentCourse, course, windDirection, relToMark < upAngle),
		ETASeconds:     eta,
	}
}

// CourseVMG returns the velocity made good toward the mark when
// holding a fixed course, in knots.
func (c *Calculator) CourseVMG(boatType string, windDirection, windSpeedKnots float64, position, mark latlon.LatLon, course float64) float64 {
	_, bearingToMark := latlon.DistanceAndBearingTo(position, mark)
	twa := angles.Difference(course, windDirection)
	speed := c.polars.Speed(boatType, twa, windSpeedKnots)
	return speed * math.Cos(angles.Difference(course, bearingToMark)*math.Pi/180)
}

// bestOfTacks picks the course at the given wind angle, on the tack
// with the better VMG toward the mark.
func (c *Calculator) bestOfTacks(boatType string, windDirection, windSpeedKnots, bearingToMark, angle float64) float64 {
	port := angles.Normalize(windDirection + angle)
	starboard := angles.Normalize(windDirection - angle)

	speed := c.polars.Speed(boatType, angle, windSpeedKnots)
	vmgPort := speed * math.Cos(angles.Difference(port, bearingToMark)*math.Pi/180)
	vmgStarboard := speed * math.Cos(angles.Difference(starboard, bearingToMark)*math.Pi/180)

	if vmgPort >= vmgStarboard {
		return port
	}
	return starboard
}

// tackNeeded reports whether sailing the optimal course requires
// putting the wind on the other side of the boat.
func tackNeeded(currentCourse, optimalCourse, windDirection float64, upwind bool) bool {
	if !upwind {
		return false
	}
	current := angles.Difference(currentCourse, windDirection)
	optimal := angles.Difference(optimalCourse, windDirection)
	return (current < 0) != (optimal < 0)
}
