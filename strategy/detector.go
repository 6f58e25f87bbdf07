package strategy

import (
	"time"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/vmg"
)

// Config tunes the strategy detectors. Zero values select the
// defaults.
type Config struct {
	// MinShiftAngle is the smallest wind shift worth reporting,
	// degrees.
	MinShiftAngle float64
	// TackSearchRadius bounds the search for a better tack position
	// along the current course, meters.
	TackSearchRadius float64
	// MinVMGImprovement is the smallest relative VMG gain that
	// justifies a tack recommendation.
	MinVMGImprovement float64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MinShiftAngle <= 0 {
		out.MinShiftAngle = 5.0
	}
	if out.TackSearchRadius <= 0 {
		out.TackSearchRadius = 500.0
	}
	if out.MinVMGImprovement <= 0 {
		out.MinVMGImprovement = 0.05
	}
	return out
}

// shiftHorizons are the lead times probed for predicted wind shifts.
var shiftHorizons = []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute}

// Detector finds strategic decision points along a course against a
// wind field.
type Detector struct {
	cfg    Config
	polars *polar.Table
	vmg    *vmg.Calculator
	lookup *windLookup
}

// New returns a detector reading wind from the given source.
func New(cfg Config, polars *polar.Table, source FieldSource) *Detector {
	return &Detector{
		cfg:    cfg.withDefaults(),
		polars: polars,
		vmg:    vmg.NewCalculator(polars),
		lookup: newWindLookup(source),
	}
}

// DetectWindShifts walks the course path and reports both observed
// direction trends and predicted future shifts at fixed horizons.
func (d *Detector) DetectWindShifts(course *Course) []WindShiftPoint {
	d.lookup.reset()

	var found []WindShiftPoint
	for _, leg := range course.Legs {
		var history []float64

		for _, p := range leg.Path {
			cell, ok := d.lookup.at(p.Latlon, p.Time)
			if !ok {
				continue
			}

			history = append(history, cell.Direction)
			if len(history) > 5 {
				history = history[1:]
			}

			if len(history) >= 3 && trendConsistent(history) {
				total := angles.Difference(history[len(history)-1], history[0])
				if abs(total) >= d.cfg.MinShiftAngle {
					prob := cell.Confidence * (1 - 0.5*cell.Variability)
					found = append(found, newWindShiftPoint(p, total, cell.Direction, prob, shiftFavorable(total, p, cell.Direction)))
				}
			}

			for _, horizon := range shiftHorizons {
				future, ok := d.lookup.at(p.Latlon, p.Time.Add(horizon))
				if !ok {
					continue
				}
				shift := angles.Difference(future.Direction, cell.Direction)
				if abs(shift) < d.cfg.MinShiftAngle {
					continue
				}

				decay := 1.0 / (1.0 + horizon.Minutes()/10.0)
				prob := cell.Confidence * future.Confidence * decay

				sp := newWindShiftPoint(p, shift, future.Direction, prob, shiftFavorable(shift, p, cell.Direction))
				sp.Time = p.Time.Add(horizon)
				found = append(found, sp)
			}
		}
	}

	return dedupShifts(found)
}

// trendConsistent reports whether consecutive direction samples all
// move the same way.
func trendConsistent(history []float64) bool {
	sign := 0
	for i := 1; i < len(history); i++ {
		step := angles.Difference(history[i], history[i-1])
		if step == 0 {
			continue
		}
		s := 1
		if step < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

// shiftFavorable decides whether a shift helps the boat: upwind a
// shift rotating the wind away from the bow is a lift; downwind the
// opposite.
func shiftFavorable(shift float64, p PathPoint, windDirection float64) bool {
	before := abs(angles.Difference(windDirection, p.Course))
	after := abs(angles.Difference(angles.Normalize(windDirection+shift), p.Course))
	if p.Upwind {
		return after > before
	}
	return after < before
}

func dedupShifts(points []WindShiftPoint) []WindShiftPoint {
	var out []WindShiftPoint
	for _, p := range points {
		dup := false
		for i, q := range out {
			if latlon.DistanceTo(p.Latlon, q.Latlon) < 500 && absDuration(p.Time.Sub(q.Time)) < 300*time.Second {
				dup = true
				if p.Probability > q.Probability {
					out[i] = p
				}
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// DetectOptimalTacks searches upwind legs for positions where tacking
// gains enough VMG toward the mark.
func (d *Detector) DetectOptimalTacks(course *Course) []TackPoint {
	d.lookup.reset()

	var found []TackPoint
	for _, leg := range course.Legs {
		if !leg.Upwind {
			continue
		}

		for _, p := range leg.Path {
			cell, ok := d.lookup.at(p.Latlon, p.Time)
			if !ok {
				continue
			}
			windKt := cell.SpeedMS * field.MSToKnots

			r := d.vmg.Optimal(course.BoatType, cell.Direction, windKt, p.Latlon, leg.Mark, p.Course)
			if !r.TackNeeded {
				continue
			}

			best, ok := d.bestTackAlongCourse(course.BoatType, leg, p)
			if !ok || best.VMGGain < d.cfg.MinVMGImprovement {
				continue
			}
			if nearExistingTack(best.Latlon, leg.TackPoints) {
				continue
			}
			found = append(found, best)
		}
	}

	return dedupTacks(found)
}

// bestTackAlongCourse scans positions along the current course and
// scores each by VMG gain, closeness to the mark and wind confidence.
func (d *Detector) bestTackAlongCourse(boatType string, leg Leg, p PathPoint) (TackPoint, bool) {
	bestScore := -1.0
	var best TackPoint

	for dist := 0.0; dist <= d.cfg.TackSearchRadius; dist += 50 {
		pos := latlon.Destination(p.Latlon, p.Course, dist)
		cell, ok := d.lookup.at(pos, p.Time)
		if !ok {
			continue
		}
		windKt := cell.SpeedMS * field.MSToKnots

		opt := d.vmg.Optimal(boatType, cell.Direction, windKt, pos, leg.Mark, p.Course)
		current := d.vmg.CourseVMG(boatType, cell.Direction, windKt, pos, leg.Mark, p.Course)

		var gain float64
		if current > 0.1 {
			gain = (opt.VMGKnots - current) / current
		} else if opt.VMGKnots > 0 {
			gain = 1.0
		} else {
			continue
		}

		markDist := latlon.DistanceTo(pos, leg.Mark)
		score := 0.5*gain + 0.3*(1000/(1000+markDist)) + 0.2*cell.Confidence

		if score > bestScore {
			bestScore = score
			best = newTackPoint(pos, p.Time, gain, cell.Confidence)
		}
	}

	return best, bestScore >= 0
}

func nearExistingTack(pos latlon.LatLon, existing []latlon.LatLon) bool {
	for _, t := range existing {
		if latlon.DistanceTo(pos, t) < 200 {
			return true
		}
	}
	return false
}

func dedupTacks(points []TackPoint) []TackPoint {
	var out []TackPoint
	for _, p := range points {
		dup := false
		for i, q := range out {
			if latlon.DistanceTo(p.Latlon, q.Latlon) < 500 && absDuration(p.Time.Sub(q.Time)) < 300*time.Second {
				dup = true
				if p.VMGGain > q.VMGGain {
					out[i] = p
				}
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// DetectLaylines flags path points on upwind legs whose bearing to the
// mark falls inside the safety margin around either layline.
func (d *Detector) DetectLaylines(course *Course) []LaylinePoint {
	d.lookup.reset()

	var found []LaylinePoint
	for _, leg := range course.Legs {
		if !leg.Upwind {
			continue
		}

		for _, p := range leg.Path {
			cell, ok := d.lookup.at(p.Latlon, p.Time)
			if !ok {
				continue
			}
			windKt := cell.SpeedMS * field.MSToKnots

			markDist, bearing := latlon.DistanceAndBearingTo(p.Latlon, leg.Mark)

			tacking := d.polars.TackingAngle(course.BoatType, windKt)
			margin := d.safetyMargin(course.BoatType, cell, windKt, markDist, d.predictedShift(p, cell.Direction))

			port := angles.Normalize(cell.Direction + tacking/2)
			starboard := angles.Normalize(cell.Direction - tacking/2)

			confidence := cell.Confidence * (1 - 0.5*cell.Variability)

			if abs(angles.Difference(bearing, port)) <= margin/2 {
				found = append(found, newLaylinePoint(p, "port", port, markDist, confidence))
			} else if abs(angles.Difference(bearing, starboard)) <= margin/2 {
				found = append(found, newLaylinePoint(p, "starboard", starboard, markDist, confidence))
			}
		}
	}

	return dedupLaylines(found)
}

// predictedShift estimates the direction change expected before the
// boat reaches the mark area.
func (d *Detector) predictedShift(p PathPoint, currentDirection float64) float64 {
	future, ok := d.lookup.at(p.Latlon, p.Time.Add(10*time.Minute))
	if !ok {
		return 0
	}
	return angles.Difference(future.Direction, currentDirection)
}

// safetyMargin widens the layline band when conditions make the
// layline call uncertain: shifty or light wind, low field confidence,
// a long way to the mark, or a predicted shift before arrival.
func (d *Detector) safetyMargin(boatType string, cell field.Cell, windKt, markDist, predictedShift float64) float64 {
	margin := d.polars.LaylineMarginBase(boatType)

	margin *= 1 + cell.Variability
	if windKt < 5 {
		margin *= 1.3
	}
	if cell.Confidence < 0.5 {
		margin *= 1.2
	}
	if markDist > 1000 {
		margin *= 1.2
	}
	if abs(predictedShift) > 5 {
		margin *= 1.3
	}

	if margin < 3 {
		margin = 3
	}
	if margin > 25 {
		margin = 25
	}
	return margin
}

func dedupLaylines(points []LaylinePoint) []LaylinePoint {
	var out []LaylinePoint
	for _, p := range points {
		dup := false
		for _, q := range out {
			if latlon.DistanceTo(p.Latlon, q.Latlon) < 300 &&
				absDuration(p.Time.Sub(q.Time)) < 300*time.Second &&
				abs(p.MarkDistance-q.MarkDistance) < 200 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
