package field

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
)

// PropagationVector describes how the wind pattern drifts over the race
// area: the direction the pattern moves toward and its ground speed.
type PropagationVector struct {
	Direction  float64 `json:"direction"`
	SpeedMS    float64 `json:"speed"`
	Confidence float64 `json:"confidence"`
}

// PropagationModel estimates the drift of wind features from the
// history of observations and projects observations forward in time.
type PropagationModel struct {
	// MinDataPoints is the minimum number of observation pairs needed
	// before a drift vector is trusted.
	MinDataPoints int
	// DecayRate controls how fast prediction confidence decays, per
	// hour of lead time.
	DecayRate float64
	// WindSpeedFactor scales the observed wind speed into a default
	// drift speed when no better estimate exists.
	WindSpeedFactor float64

	vector *PropagationVector
}

// NewPropagationModel returns a model with the standard tuning.
func NewPropagationModel() *PropagationModel {
	return &PropagationModel{
		MinDataPoints:   5,
		DecayRate:       0.1,
		WindSpeedFactor: 0.3,
	}
}

// Vector returns the current drift estimate, or nil when not enough
// data has been seen.
func (m *PropagationModel) Vector() *PropagationVector {
	return m.vector
}

// Update re-estimates the drift vector from the observation history.
// Pairs of observations with similar wind direction are treated as the
// same feature seen at two times; the displacement between them over
// the elapsed time gives one drift sample.
func (m *PropagationModel) Update(history []Observation) {
	if len(history) < m.MinDataPoints {
		return
	}

	var bearings, speeds, weights []float64

	for i := 0; i < len(history); i++ {
		for j := i + 1; j < len(history); j++ {
			a, b := history[i], history[j]
			if b.Time.Before(a.Time) {
				a, b = b, a
			}

			dt := b.Time.Sub(a.Time).Seconds()
			if dt < 30 || dt > 1800 {
				continue
			}
			if math.Abs(angles.Difference(a.Direction, b.Direction)) > 20 {
				continue
			}

			dist, bearing := latlon.DistanceAndBearingTo(a.Latlon, b.Latlon)
			if dist < 10 {
				continue
			}

			bearings = append(bearings, bearing)
			speeds = append(speeds, dist/dt)
			weights = append(weights, a.Confidence*b.Confidence)
		}
	}

	if len(bearings) < m.MinDataPoints {
		log.WithField("samples", len(bearings)).Debug("not enough drift samples to update propagation vector")
		return
	}

	speed := 0.0
	total := 0.0
	for i, s := range speeds {
		speed += s * weights[i]
		total += weights[i]
	}
	if total <= 0 {
		return
	}
	speed /= total

	m.vector = &PropagationVector{
		Direction:  angles.WeightedMean(bearings, weights),
		SpeedMS:    speed,
		Confidence: math.Min(1.0, float64(len(bearings))/20.0),
	}

	log.WithFields(log.Fields{
		"direction": m.vector.Direction,
		"speed":     m.vector.SpeedMS,
		"samples":   len(bearings),
	}).Debug("propagation vector updated")
}

// defaultVector derives a drift vector from the observations alone:
// wind features tend to move downwind at a fraction of the wind speed.
func (m *PropagationModel) defaultVector(obs []Observation) PropagationVector {
	if len(obs) == 0 {
		return PropagationVector{Confidence: 0}
	}

	dirs := make([]float64, len(obs))
	speed := 0.0
	for i, o := range obs {
		dirs[i] = o.Direction
		speed += o.SpeedMS
	}
	speed /= float64(len(obs))

	// wind direction is where the wind comes from; features drift the
	// opposite way
	return PropagationVector{
		Direction:  angles.Normalize(angles.Mean(dirs) + 180),
		SpeedMS:    speed * m.WindSpeedFactor,
		Confidence: 0.3,
	}
}

// Advect projects an observation to a future time along the drift
// vector, decaying its confidence with the lead time.
func (m *PropagationModel) Advect(o Observation, target time.Time) Observation {
	dt := target.Sub(o.Time).Seconds()
	if dt <= 0 {
		return o
	}

	v := m.vector
	if v == nil {
		def := m.defaultVector([]Observation{o})
		v = &def
	}

	moved := latlon.Destination(o.Latlon, v.Direction, v.SpeedMS*dt)

	hours := dt / 3600.0
	decay := math.Exp(-m.DecayRate * hours)

	out := o
	out.Latlon = moved
	out.Time = target
	out.Confidence = o.Confidence * decay * math.Max(v.Confidence, 0.3)
	return out
}
