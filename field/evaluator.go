package field

import (
	"math"
	"sync"
	"time"

	"github.com/sailtactics/windfield-server/angles"
	"github.com/sailtactics/windfield-server/latlon"
)

// QualityReport summarizes how well past predictions matched the
// observations that later arrived at the predicted place and time.
type QualityReport struct {
	Evaluated      int     `json:"evaluated"`
	Pending        int     `json:"pending"`
	MeanDirError   float64 `json:"meanDirectionError"`
	MeanSpeedError float64 `json:"meanSpeedError"`
}

type pendingPrediction struct {
	target    time.Time
	latlon    latlon.LatLon
	direction float64
	speedMS   float64
}

// evaluator records predicted wind values and scores them against
// observations that arrive later near the predicted point.
type evaluator struct {
	mu      sync.Mutex
	pending map[predictionKey]pendingPrediction
	dirErrs []float64
	spdErrs []float64
}

// predictionKey buckets predictions by rounded position and a 10 s
// time bucket, so repeated predictions for the same spot collapse.
type predictionKey struct {
	lat, lon int64
	bucket   int64
}

func keyFor(p latlon.LatLon, t time.Time) predictionKey {
	return predictionKey{
		lat:    int64(math.Round(p.Lat * 10000)),
		lon:    int64(math.Round(p.Lon * 10000)),
		bucket: t.Unix() / 10,
	}
}

func newEvaluator() *evaluator {
	return &evaluator{pending: make(map[predictionKey]pendingPrediction)}
}

// record stores a prediction for later scoring.
func (e *evaluator) record(p latlon.LatLon, target time.Time, direction, speedMS float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[keyFor(p, target)] = pendingPrediction{
		target:    target,
		latlon:    p,
		direction: direction,
		speedMS:   speedMS,
	}
}

// score matches an arriving observation against pending predictions
// within 60 s and 200 m, and retires anything older than two hours.
func (e *evaluator) score(o Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for k, p := range e.pending {
		if o.Time.Sub(p.target) < -60*time.Second {
			continue
		}
		if o.Time.Sub(p.target) > 2*time.Hour {
			delete(e.pending, k)
			continue
		}
		if math.Abs(o.Time.Sub(p.target).Seconds()) > 60 {
			continue
		}
		if latlon.DistanceTo(o.Latlon, p.latlon) > 200 {
			continue
		}

		e.dirErrs = append(e.dirErrs, math.Abs(angles.Difference(o.Direction, p.direction)))
		e.spdErrs = append(e.spdErrs, math.Abs(o.SpeedMS-p.speedMS))
		delete(e.pending, k)
	}
}

// report returns the accumulated quality statistics.
func (e *evaluator) report() QualityReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := QualityReport{
		Evaluated: len(e.dirErrs),
		Pending:   len(e.pending),
	}
	if len(e.dirErrs) == 0 {
		return r
	}

	for _, d := range e.dirErrs {
		r.MeanDirError += d
	}
	r.MeanDirError /= float64(len(e.dirErrs))

	for _, s := range e.spdErrs {
		r.MeanSpeedError += s
	}
	r.MeanSpeedError /= float64(len(e.spdErrs))

	return r
}
