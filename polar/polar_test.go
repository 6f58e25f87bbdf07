package polar

import (
	"math"
	"testing"
)

func TestForBoatFallback(t *testing.T) {
	table := NewTable()

	c := table.ForBoat("laser")
	if c.Upwind != 3.2 || c.Downwind != 1.6 {
		t.Errorf("ForBoat(laser) = %+v; want {3.2 1.6}", c)
	}

	c = table.ForBoat("trimaran-unknown")
	d := table.ForBoat("default")
	if c != d {
		t.Errorf("ForBoat(unknown) = %+v; want default %+v", c, d)
	}
}

func TestOptimalVMGAngle(t *testing.T) {
	table := NewTable()

	if a := table.OptimalVMGAngle("default", true); a != 45.0 {
		t.Errorf("OptimalVMGAngle(default, upwind) = %f; want 45", a)
	}

	if a := table.OptimalVMGAngle("default", false); a != 150.0 {
		t.Errorf("OptimalVMGAngle(default, downwind) = %f; want 150", a)
	}

	// clamped to [40, 50] / [135, 160]
	for _, boatType := range []string{"laser", "49er", "finn", "nacra17", "star"} {
		up := table.OptimalVMGAngle(boatType, true)
		if up < 40 || up > 50 {
			t.Errorf("OptimalVMGAngle(%s, upwind) = %f; out of [40, 50]", boatType, up)
		}
		down := table.OptimalVMGAngle(boatType, false)
		if down < 135 || down > 160 {
			t.Errorf("OptimalVMGAngle(%s, downwind) = %f; out of [135, 160]", boatType, down)
		}
	}
}

func TestTackingAngle(t *testing.T) {
	table := NewTable()

	if a := table.TackingAngle("default", 3); a != 100.0 {
		t.Errorf("TackingAngle(default, 3kt) = %f; want 100", a)
	}

	if a := table.TackingAngle("default", 20); a != 85.0 {
		t.Errorf("TackingAngle(default, 20kt) = %f; want 85", a)
	}

	if a := table.TackingAngle("default", 10); a != 92.5 {
		t.Errorf("TackingAngle(default, 10kt) = %f; want 92.5", a)
	}

	// mid-range stays between the light and heavy extremes
	light := table.TackingAngle("laser", 4)
	heavy := table.TackingAngle("laser", 18)
	mid := table.TackingAngle("laser", 10)
	if mid >= light || mid <= heavy {
		t.Errorf("TackingAngle(laser, 10kt) = %f; want in (%f, %f)", mid, heavy, light)
	}
}

func TestSpeed(t *testing.T) {
	table := NewTable()

	if s := table.Speed("default", 0, 10); s != 0.0 {
		t.Errorf("Speed(twa=0) = %f; want 0 (in irons)", s)
	}

	upwind := table.Speed("default", 45, 12)
	downwind := table.Speed("default", 135, 12)
	if upwind <= 0 || downwind <= 0 {
		t.Fatalf("Speed returned non-positive: upwind %f, downwind %f", upwind, downwind)
	}
	if downwind <= upwind {
		t.Errorf("Speed: downwind %f not faster than upwind %f", downwind, upwind)
	}

	// symmetric in sign of TWA
	if l, r := table.Speed("default", -60, 12), table.Speed("default", 60, 12); l != r {
		t.Errorf("Speed not symmetric: %f != %f", l, r)
	}

	// upwind speed consistent with the upwind ratio at the VMG angle
	tws := 12.0
	want := tws / 3.0
	got := table.Speed("default", 45, tws)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Speed(45, 12) = %f; want %f", got, want)
	}
}
