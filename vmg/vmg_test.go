package vmg

import (
	"math"
	"testing"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
)

func TestOptimalDeadUpwind(t *testing.T) {
	c := NewCalculator(polar.NewTable())

	position := latlon.LatLon{Lat: 35.60, Lon: 139.76}
	mark := latlon.Destination(position, 0, 1000) // mark dead upwind

	// wind from north, boat on starboard tack (course 315)
	r := c.Optimal("default", 0, 12, position, mark, 315)

	rel := math.Abs(angles.Difference(r.OptimalCourse, 0))
	if math.Abs(rel-45) > 1 {
		t.Errorf("optimal course %f; want 45 off the wind", r.OptimalCourse)
	}
	if r.VMGKnots <= 0 {
		t.Errorf("VMG %f; want positive toward an upwind mark", r.VMGKnots)
	}
	if math.IsInf(r.ETASeconds, 1) {
		t.Error("ETA infinite with positive VMG")
	}
}

func TestOptimalDirectCourse(t *testing.T) {
	c := NewCalculator(polar.NewTable())

	position := latlon.LatLon{Lat: 35.60, Lon: 139.76}
	mark := latlon.Destination(position, 90, 1000) // beam reach under north wind

	r := c.Optimal("default", 0, 12, position, mark, 90)

	if math.Abs(angles.Difference(r.OptimalCourse, 90)) > 1 {
		t.Errorf("optimal course %f; want direct 90", r.OptimalCourse)
	}
	if r.TackNeeded {
		t.Error("TackNeeded on a fetchable course")
	}
}

func TestTackNeeded(t *testing.T) {
	c := NewCalculator(polar.NewTable())

	position := latlon.LatLon{Lat: 35.60, Lon: 139.76}

	// mark up and slightly to starboard of the wind, boat on starboard
	// tack: the better VMG is on port tack, so a tack is required
	mark := latlon.Destination(position, 10, 1000)
	r := c.Optimal("default", 0, 12, position, mark, 315)

	if math.Abs(angles.Difference(r.OptimalCourse, 315)) < 1 {
		t.Fatalf("optimal course %f stayed on the current tack", r.OptimalCourse)
	}
	if !r.TackNeeded {
		t.Error("TackNeeded = false; want true when the favored tack is the other one")
	}
}

func TestOptimalDownwind(t *testing.T) {
	c := NewCalculator(polar.NewTable())

	position := latlon.LatLon{Lat: 35.60, Lon: 139.76}
	mark := latlon.Destination(position, 180, 1000) // dead downwind under north wind

	r := c.Optimal("default", 0, 12, position, mark, 180)

	rel := math.Abs(angles.Difference(r.OptimalCourse, 0))
	if math.Abs(rel-150) > 1 {
		t.Errorf("optimal course %f; want 150 off the wind", r.OptimalCourse)
	}
	if r.TackNeeded {
		t.Error("TackNeeded on a downwind leg")
	}
}
