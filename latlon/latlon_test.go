package latlon

import (
	"math"
	"testing"
)

func TestWrap360(t *testing.T) {
	a := wrap360(-1.0)
	if a != 359.0 {
		t.Errorf("wrap360(-1) = %f; want 359.0", a)
	}
	b := wrap360(361.0)
	if b != 1.0 {
		t.Errorf("wrap360(361.0) = %f; want 1.0", b)
	}
}

func TestDistanceTo(t *testing.T) {
	p1 := LatLon{Lat: 51.127, Lon: 1.338}
	p2 := LatLon{Lat: 50.964, Lon: 1.853}
	d := DistanceTo(p1, p2)
	if math.Abs(d-40308) > 50 {
		t.Errorf("{%f,%f}.distanceTo({%f,%f}) = %f; want about 40308", p1.Lat, p1.Lon, p2.Lat, p2.Lon, d)
	}
}

func TestBearingTo(t *testing.T) {
	p1 := LatLon{Lat: -5, Lon: -5}
	p2 := LatLon{Lat: 5, Lon: 5}
	b := BearingTo(p1, p2)
	if math.Round(b) != 45.0 {
		t.Errorf("{%f,%f}.bearingTo({%f,%f}) = %f; want 45", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}

	p1 = LatLon{Lat: -5, Lon: 175}
	p2 = LatLon{Lat: 5, Lon: -175}
	b = BearingTo(p1, p2)
	if math.Round(b) != 45.0 {
		t.Errorf("{%f,%f}.bearingTo({%f,%f}) = %f; want 45 across the antimeridian", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}
}

func TestDestination(t *testing.T) {
	p1 := LatLon{Lat: 35.6, Lon: 139.77}
	p2 := Destination(p1, 45, 1000)

	d, bearing := DistanceAndBearingTo(p1, p2)
	if math.Abs(d-1000) > 1 {
		t.Errorf("destination round-trip distance = %f; want 1000", d)
	}
	if math.Abs(bearing-45) > 0.1 {
		t.Errorf("destination round-trip bearing = %f; want 45", bearing)
	}
}
