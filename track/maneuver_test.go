package track

import (
	"testing"
	"time"

	"github.com/sailtactics/windfield-server/latlon"
)

func TestCategorize(t *testing.T) {
	if m := Categorize(30, 330, 0); m != Tack {
		t.Errorf("Categorize(30, 330, 0) = %s; want tack", m)
	}

	if m := Categorize(150, 210, 0); m != Jibe {
		t.Errorf("Categorize(150, 210, 0) = %s; want jibe", m)
	}

	if m := Categorize(30, 150, 0); m != BearAway {
		t.Errorf("Categorize(30, 150, 0) = %s; want bear_away", m)
	}

	if m := Categorize(150, 30, 0); m != HeadUp {
		t.Errorf("Categorize(150, 30, 0) = %s; want head_up", m)
	}

	// same classification under a rotated wind
	if m := Categorize(120, 60, 90); m != Tack {
		t.Errorf("Categorize(120, 60, 90) = %s; want tack", m)
	}
}

func testTrack(bearings []float64) []Point {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	points := make([]Point, len(bearings))
	for i, b := range bearings {
		points[i] = Point{
			Time:    start.Add(time.Duration(i) * 5 * time.Second),
			Latlon:  latlon.LatLon{Lat: 35.6, Lon: 139.7},
			Speed:   3.0,
			Bearing: b,
			BoatId:  "boat1",
		}
	}
	return points
}

func TestDetectManeuvers(t *testing.T) {
	// steady port tack, one tack through the wind, steady starboard tack
	bearings := []float64{45, 45, 45, 45, 45, 45, 40, 10, 340, 315, 315, 315, 315, 315, 315}
	points := testTrack(bearings)

	maneuvers := DetectManeuvers(points, 0, 30, 3)
	if len(maneuvers) != 1 {
		t.Fatalf("DetectManeuvers = %d maneuvers; want 1", len(maneuvers))
	}

	m := maneuvers[0]
	if m.Type != Tack {
		t.Errorf("maneuver type = %s; want tack", m.Type)
	}
	if m.Index < 6 || m.Index > 9 {
		t.Errorf("maneuver index = %d; want within turn (6..9)", m.Index)
	}
}

func TestDetectManeuversOutAndBack(t *testing.T) {
	// luff up to 85 and straight back down: the rolling sums exceed the
	// threshold but the boat ends up on its original heading
	bearings := []float64{45, 45, 45, 45, 65, 85, 65, 45, 45, 45, 45, 45}
	points := testTrack(bearings)

	if maneuvers := DetectManeuvers(points, 0, 30, 3); len(maneuvers) != 0 {
		t.Errorf("DetectManeuvers on an out-and-back wiggle = %d maneuvers; want 0", len(maneuvers))
	}
}

func TestDetectManeuversStableTrack(t *testing.T) {
	bearings := make([]float64, 30)
	for i := range bearings {
		bearings[i] = 45 + float64(i%3) // GPS jitter only
	}
	points := testTrack(bearings)

	if maneuvers := DetectManeuvers(points, 0, 30, 3); len(maneuvers) != 0 {
		t.Errorf("DetectManeuvers on stable track = %d maneuvers; want 0", len(maneuvers))
	}
}

func TestDetectManeuversShortTrack(t *testing.T) {
	points := testTrack([]float64{45, 45, 45})
	if maneuvers := DetectManeuvers(points, 0, 30, 3); maneuvers != nil {
		t.Errorf("DetectManeuvers on short track = %v; want nil", maneuvers)
	}
}

func TestBearingChanges(t *testing.T) {
	points := testTrack([]float64{350, 10, 10})
	changes := BearingChanges(points)
	if changes[0] != 0 || changes[1] != 20 || changes[2] != 0 {
		t.Errorf("BearingChanges = %v; want [0 20 0]", changes)
	}
}
