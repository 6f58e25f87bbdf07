package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
)

var base = time.Date(2026, 7, 14, 13, 0, 0, 0, time.UTC)

// makeField builds a uniform wind field covering the test race area.
func makeField(direction, speedMS, confidence float64) *field.Field {
	const n = 20
	f := &field.Field{
		Lats:       make([][]float64, n),
		Lons:       make([][]float64, n),
		Direction:  make([][]float64, n),
		Speed:      make([][]float64, n),
		Confidence: make([][]float64, n),
		Time:       base,
	}
	for i := 0; i < n; i++ {
		f.Lats[i] = make([]float64, n)
		f.Lons[i] = make([]float64, n)
		f.Direction[i] = make([]float64, n)
		f.Speed[i] = make([]float64, n)
		f.Confidence[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			f.Lats[i][j] = 35.58 + float64(i)*0.004
			f.Lons[i][j] = 139.72 + float64(j)*0.005
			f.Direction[i][j] = direction
			f.Speed[i][j] = speedMS
			f.Confidence[i][j] = confidence
		}
	}
	return f
}

func TestDetectLaylinesOnStarboardLayline(t *testing.T) {
	f := makeField(0, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	mark := latlon.LatLon{Lat: 35.62, Lon: 139.77}

	half := polar.NewTable().TackingAngle("default", 5.0*field.MSToKnots) / 2
	laylineBearing := angles.Normalize(-half)

	onLayline := PathPoint{
		Latlon: latlon.Destination(mark, angles.Normalize(laylineBearing+180), 600),
		Time:   base,
		Course: laylineBearing,
		Upwind: true,
	}
	offLayline := PathPoint{
		Latlon: latlon.Destination(mark, 180, 700), // dead downwind of the mark
		Time:   base.Add(10 * time.Minute),
		Course: 315,
		Upwind: true,
	}

	course := &Course{
		BoatType: "default",
		Legs: []Leg{{
			Name:   "beat",
			Mark:   mark,
			Upwind: true,
			Path:   []PathPoint{offLayline, onLayline},
		}},
	}

	points := d.DetectLaylines(course)
	if len(points) != 1 {
		t.Fatalf("DetectLaylines found %d points; want 1", len(points))
	}
	if points[0].Side != "starboard" {
		t.Errorf("layline side = %q; want starboard", points[0].Side)
	}
	if math.Abs(points[0].MarkDistance-600) > 30 {
		t.Errorf("mark distance = %f; want about 600", points[0].MarkDistance)
	}
	if points[0].Confidence <= 0 || points[0].Confidence > 1 {
		t.Errorf("confidence %f out of (0, 1]", points[0].Confidence)
	}
}

func TestDetectLaylinesIgnoresDownwindLegs(t *testing.T) {
	f := makeField(0, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	mark := latlon.LatLon{Lat: 35.62, Lon: 139.77}
	course := &Course{
		BoatType: "default",
		Legs: []Leg{{
			Name:   "run",
			Mark:   mark,
			Upwind: false,
			Path: []PathPoint{{
				Latlon: latlon.Destination(mark, 350, 600),
				Time:   base,
				Course: 170,
			}},
		}},
	}

	if points := d.DetectLaylines(course); len(points) != 0 {
		t.Errorf("DetectLaylines on a downwind leg found %d points; want 0", len(points))
	}
}

func TestDetectOptimalTacks(t *testing.T) {
	f := makeField(0, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	start := latlon.LatLon{Lat: 35.60, Lon: 139.77}
	mark := latlon.Destination(start, 10, 800)

	// boat on starboard tack while the favored tack is port
	course := &Course{
		BoatType: "default",
		Legs: []Leg{{
			Name:   "beat",
			Mark:   mark,
			Upwind: true,
			Path: []PathPoint{{
				Latlon: start,
				Time:   base,
				Course: 315,
				Upwind: true,
			}},
		}},
	}

	points := d.DetectOptimalTacks(course)
	if len(points) == 0 {
		t.Fatal("DetectOptimalTacks found nothing on the unfavored tack")
	}
	for _, p := range points {
		if p.VMGGain < 0.05 {
			t.Errorf("VMGGain %f below the minimum improvement", p.VMGGain)
		}
	}
}

func TestDetectOptimalTacksNoneWhenFetching(t *testing.T) {
	f := makeField(0, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	start := latlon.LatLon{Lat: 35.60, Lon: 139.77}
	mark := latlon.Destination(start, 90, 800) // beam reach, no tacking

	course := &Course{
		BoatType: "default",
		Legs: []Leg{{
			Mark:   mark,
			Upwind: true,
			Path: []PathPoint{{
				Latlon: start,
				Time:   base,
				Course: 90,
				Upwind: true,
			}},
		}},
	}

	if points := d.DetectOptimalTacks(course); len(points) != 0 {
		t.Errorf("DetectOptimalTacks found %d points on a fetch; want 0", len(points))
	}
}

// veeringSource rotates the wind one degree per minute.
type veeringSource struct {
	speedMS    float64
	confidence float64
}

func (s veeringSource) FieldAt(t time.Time) *field.Field {
	minutes := t.Sub(base).Minutes()
	return makeField(angles.Normalize(180+minutes), s.speedMS, s.confidence)
}

func TestDetectWindShiftsPredicted(t *testing.T) {
	d := New(Config{}, polar.NewTable(), veeringSource{speedMS: 5.0, confidence: 0.9})

	var path []PathPoint
	for i := 0; i < 5; i++ {
		path = append(path, PathPoint{
			Latlon: latlon.LatLon{Lat: 35.60 + float64(i)*0.001, Lon: 139.77},
			Time:   base.Add(time.Duration(i) * time.Minute),
			Course: 135,
			Upwind: true,
		})
	}

	course := &Course{
		BoatType: "default",
		Legs: []Leg{{
			Mark:   latlon.LatLon{Lat: 35.63, Lon: 139.77},
			Upwind: true,
			Path:   path,
		}},
	}

	points := d.DetectWindShifts(course)
	if len(points) == 0 {
		t.Fatal("DetectWindShifts found nothing under a steadily veering wind")
	}
	for _, p := range points {
		if abs(p.ShiftAngle) < 5 {
			t.Errorf("reported shift %f below the minimum angle", p.ShiftAngle)
		}
		if p.Probability <= 0 || p.Probability > 1 {
			t.Errorf("probability %f out of (0, 1]", p.Probability)
		}
	}
}

func TestDetectWindShiftsSteadyWind(t *testing.T) {
	f := makeField(180, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	var path []PathPoint
	for i := 0; i < 5; i++ {
		path = append(path, PathPoint{
			Latlon: latlon.LatLon{Lat: 35.60 + float64(i)*0.001, Lon: 139.77},
			Time:   base.Add(time.Duration(i) * time.Minute),
			Course: 135,
			Upwind: true,
		})
	}
	course := &Course{
		BoatType: "default",
		Legs:     []Leg{{Mark: latlon.LatLon{Lat: 35.63, Lon: 139.77}, Upwind: true, Path: path}},
	}

	if points := d.DetectWindShifts(course); len(points) != 0 {
		t.Errorf("DetectWindShifts found %d points in steady wind; want 0", len(points))
	}
}

func TestSafetyMarginClamped(t *testing.T) {
	f := makeField(0, 5.0, 0.9)
	d := New(Config{}, polar.NewTable(), StaticField{F: f})

	shifty := field.Cell{Direction: 0, SpeedMS: 2, Confidence: 0.3, Variability: 1.0}
	if m := d.safetyMargin("finn", shifty, 3.0, 2000, 10); m != 25 {
		t.Errorf("safetyMargin in worst conditions = %f; want clamped to 25", m)
	}

	steady := field.Cell{Direction: 0, SpeedMS: 6, Confidence: 0.9, Variability: 0}
	m := d.safetyMargin("default", steady, 12.0, 500, 0)
	if m < 3 || m > 25 {
		t.Errorf("safetyMargin = %f; out of [3, 25]", m)
	}
}

func TestDedupShiftsKeepsHigherProbability(t *testing.T) {
	p := latlon.LatLon{Lat: 35.60, Lon: 139.77}
	a := WindShiftPoint{Latlon: p, Time: base, Probability: 0.4}
	b := WindShiftPoint{Latlon: latlon.Destination(p, 0, 100), Time: base.Add(time.Minute), Probability: 0.8}

	out := dedupShifts([]WindShiftPoint{a, b})
	if len(out) != 1 {
		t.Fatalf("dedupShifts kept %d points; want 1", len(out))
	}
	if out[0].Probability != 0.8 {
		t.Errorf("dedupShifts kept probability %f; want 0.8", out[0].Probability)
	}
}

// countingSource counts the field resolutions behind the cache.
type countingSource struct {
	f     *field.Field
	calls int
}

func (s *countingSource) FieldAt(time.Time) *field.Field {
	s.calls++
	return s.f
}

func TestWindLookupCaches(t *testing.T) {
	src := &countingSource{f: makeField(180, 5.0, 0.9)}
	l := newWindLookup(src)

	p := latlon.LatLon{Lat: 35.60, Lon: 139.77}
	if _, ok := l.at(p, base); !ok {
		t.Fatal("lookup inside the field failed")
	}
	if _, ok := l.at(p, base.Add(3*time.Second)); !ok {
		t.Fatal("second lookup failed")
	}
	if src.calls != 1 {
		t.Errorf("source resolved %d times; want 1 (cached)", src.calls)
	}
}
