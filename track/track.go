// Package track holds GPS track points and the maneuver detection built
// on top of them.
package track

import (
	"math"
	"time"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
)

// Point is one resampled GPS fix. Speed is in m/s, Bearing in degrees
// clockwise from true north. Bearing is circular: use the angles
// package for any arithmetic on it.
type Point struct {
	Time    time.Time     `json:"timestamp"`
	Latlon  latlon.LatLon `json:"latlon"`
	Speed   float64       `json:"speed"`
	Bearing float64       `json:"bearing"`
	BoatId  string        `json:"boatId"`
}

// Duration returns the time span of the track in seconds, or an
// estimate of 5 s per point when timestamps are missing.
func Duration(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	if points[0].Time.IsZero() || points[len(points)-1].Time.IsZero() {
		return float64(len(points)) * 5.0
	}
	return points[len(points)-1].Time.Sub(points[0].Time).Seconds()
}

// BearingChanges returns the absolute minimal angular change between
// consecutive bearings. The first entry is 0.
func BearingChanges(points []Point) []float64 {
	changes := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		changes[i] = math.Abs(angles.Difference(points[i].Bearing, points[i-1].Bearing))
	}
	return changes
}

// Bearings extracts the bearing series of a track.
func Bearings(points []Point) []float64 {
	bs := make([]float64, len(points))
	for i, p := range points {
		bs[i] = p.Bearing
	}
	return bs
}

// Speeds extracts the speed series of a track.
func Speeds(points []Point) []float64 {
	ss := make([]float64, len(points))
	for i, p := range points {
		ss[i] = p.Speed
	}
	return ss
}
