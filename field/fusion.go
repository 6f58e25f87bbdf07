package field

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/estimator"
	"github.com/sailtactics/windfield-server/latlon"
)

// ReferenceSource supplies background wind (forecast model output) used
// to anchor the fused field where boat observations are sparse.
type ReferenceSource interface {
	WindAt(t time.Time, lat, lon float64) (direction, speedMS float64, ok bool)
}

// Config tunes the fusion system. Zero values select the defaults.
type Config struct {
	// Resolution is the side length of the output grid.
	Resolution int
	// RecencyWindow limits how old an observation may be, relative to
	// the newest one, to take part in a fusion.
	RecencyWindow time.Duration
	// FuseThreshold is the number of buffered observations that
	// triggers an automatic fusion.
	FuseThreshold int
	// HistorySize bounds the number of retained past fields.
	HistorySize int
	// Seed fixes the jitter source. Zero seeds from the clock.
	Seed int64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Resolution <= 0 {
		out.Resolution = 20
	}
	if out.RecencyWindow <= 0 {
		out.RecencyWindow = 30 * time.Minute
	}
	if out.FuseThreshold <= 0 {
		out.FuseThreshold = 5
	}
	if out.HistorySize <= 0 {
		out.HistorySize = 10
	}
	if out.Seed == 0 {
		out.Seed = time.Now().UnixNano()
	}
	return out
}

var (
	// ErrInsufficientData is returned when too few recent observations
	// exist to build a field.
	ErrInsufficientData = errors.New("not enough recent observations to fuse a wind field")
	// ErrNoField is returned when no field has been fused yet.
	ErrNoField = errors.New("no wind field available")
)

// FusionSystem combines wind observations from many boats into a
// single spatial wind field, keeps a short history of fields, and
// projects the field forward in time. Safe for concurrent use.
type FusionSystem struct {
	mu sync.Mutex

	cfg         Config
	buffer      []Observation
	sinceFuse   int
	current     *Field
	history     []*Field
	propagation *PropagationModel
	eval        *evaluator
	interp      Interpolator
	rng         *rand.Rand
	reference   ReferenceSource
}

// NewFusionSystem returns a fusion system with the given tuning.
func NewFusionSystem(cfg Config) *FusionSystem {
	c := cfg.withDefaults()
	return &FusionSystem{
		cfg:         c,
		propagation: NewPropagationModel(),
		eval:        newEvaluator(),
		rng:         rand.New(rand.NewSource(c.Seed)),
	}
}

// SetReference installs a background wind source.
func (s *FusionSystem) SetReference(r ReferenceSource) {
	s.mu.Lock()
	s.reference = r
	s.mu.Unlock()
}

// AddObservation buffers one observation and fuses a new field once
// enough observations have accumulated since the last fusion. The
// returned field is nil when no fusion was triggered.
func (s *FusionSystem) AddObservation(ctx context.Context, o Observation) (*Field, error) {
	if !o.valid() {
		return nil, errors.New("invalid observation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.eval.score(o)
	s.buffer = append(s.buffer, o)
	s.sinceFuse++

	if s.sinceFuse < s.cfg.FuseThreshold {
		return nil, nil
	}
	return s.fuseLocked(ctx)
}

// UpdateWithBoatData replaces the buffered observations of the listed
// boats with fresh estimates (in knots) and fuses a new field.
func (s *FusionSystem) UpdateWithBoatData(ctx context.Context, estimates map[string][]estimator.Estimate) (*Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.buffer[:0]
	for _, o := range s.buffer {
		if _, replaced := estimates[o.BoatId]; !replaced {
			kept = append(kept, o)
		}
	}
	s.buffer = kept

	for boatId, ests := range estimates {
		for _, e := range ests {
			o := Observation{
				Time:       e.Time,
				Latlon:     e.Latlon,
				Direction:  e.Direction,
				SpeedMS:    e.SpeedKnots * KnotsToMS,
				Confidence: e.Confidence,
				BoatId:     boatId,
			}
			if !o.valid() {
				log.WithField("boat", boatId).Warn("dropping invalid wind estimate")
				continue
			}
			s.eval.score(o)
			s.buffer = append(s.buffer, o)
		}
	}

	return s.fuseLocked(ctx)
}

// Fuse builds a new field from the buffered observations.
func (s *FusionSystem) Fuse(ctx context.Context) (*Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fuseLocked(ctx)
}

func (s *FusionSystem) fuseLocked(ctx context.Context) (*Field, error) {
	recent := s.recentLocked()
	if len(recent) < 3 {
		log.WithField("observations", len(recent)).Warn("wind field fusion skipped")
		return nil, ErrInsufficientData
	}

	obs := s.withReferenceLocked(recent)

	scaledObs, tr := scaleObservations(obs, s.rng)

	f, err := s.interp.interpolateGrid(ctx, scaledObs, tr, s.cfg.Resolution, IDW)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("IDW interpolation failed, falling back to nearest neighbor")
		f, err = s.interp.interpolateGrid(ctx, scaledObs, tr, s.cfg.Resolution, Nearest)
		if err != nil {
			return nil, err
		}
	}

	f.Time = recent[len(recent)-1].Time

	if s.current != nil {
		s.history = append(s.history, s.current)
		if len(s.history) > s.cfg.HistorySize {
			s.history = s.history[len(s.history)-s.cfg.HistorySize:]
		}
	}
	s.current = f
	s.sinceFuse = 0

	s.propagation.Update(recent)

	rows, cols := f.Shape()
	log.WithFields(log.Fields{
		"observations": len(recent),
		"grid":         rows * cols,
		"time":         f.Time,
	}).Info("wind field fused")

	return f, nil
}

// recentLocked returns the buffered observations within the recency
// window of the newest one, oldest first.
func (s *FusionSystem) recentLocked() []Observation {
	if len(s.buffer) == 0 {
		return nil
	}

	newest := s.buffer[0].Time
	for _, o := range s.buffer[1:] {
		if o.Time.After(newest) {
			newest = o.Time
		}
	}
	cutoff := newest.Add(-s.cfg.RecencyWindow)

	var out []Observation
	for _, o := range s.buffer {
		if !o.Time.Before(cutoff) {
			out = append(out, o)
		}
	}
	sortObservationsByTime(out)
	return out
}

func sortObservationsByTime(obs []Observation) {
	for i := 1; i < len(obs); i++ {
		for j := i; j > 0 && obs[j].Time.Before(obs[j-1].Time); j-- {
			obs[j], obs[j-1] = obs[j-1], obs[j]
		}
	}
}

// withReferenceLocked pads sparse coverage with low-confidence samples
// from the background wind source at the corners of the observed area.
func (s *FusionSystem) withReferenceLocked(recent []Observation) []Observation {
	if s.reference == nil {
		return recent
	}

	minLat, maxLat := recent[0].Latlon.Lat, recent[0].Latlon.Lat
	minLon, maxLon := recent[0].Latlon.Lon, recent[0].Latlon.Lon
	for _, o := range recent[1:] {
		if o.Latlon.Lat < minLat {
			minLat = o.Latlon.Lat
		}
		if o.Latlon.Lat > maxLat {
			maxLat = o.Latlon.Lat
		}
		if o.Latlon.Lon < minLon {
			minLon = o.Latlon.Lon
		}
		if o.Latlon.Lon > maxLon {
			maxLon = o.Latlon.Lon
		}
	}

	t := recent[len(recent)-1].Time
	out := recent
	for _, p := range []latlon.LatLon{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
		{Lat: maxLat, Lon: maxLon},
	} {
		dir, speed, ok := s.reference.WindAt(t, p.Lat, p.Lon)
		if !ok {
			continue
		}
		out = append(out, Observation{
			Time:       t,
			Latlon:     p,
			Direction:  dir,
			SpeedMS:    speed,
			Confidence: 0.2,
			BoatId:     "reference",
		})
	}
	return out
}

// Current returns the latest fused field, or nil.
func (s *FusionSystem) Current() *Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History returns the retained past fields, oldest first.
func (s *FusionSystem) History() []*Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Field, len(s.history))
	copy(out, s.history)
	return out
}

// PredictField projects the wind field to a future time. Short lead
// times reinterpolate the current observations; longer leads advect
// them along the propagation vector. When prediction fails, the
// current field is reused with reduced confidence. A resolution of 0
// selects the configured grid size.
func (s *FusionSystem) PredictField(ctx context.Context, target time.Time, resolution int) (*Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resolution <= 0 {
		resolution = s.cfg.Resolution
	}

	if s.current == nil {
		return nil, ErrNoField
	}

	lead := target.Sub(s.current.Time)
	if lead <= 0 {
		return s.current, nil
	}

	recent := s.recentLocked()
	if len(recent) < 3 {
		return s.degradedLocked(target), nil
	}

	obs := recent
	if lead > 5*time.Minute {
		advected := make([]Observation, len(recent))
		for i, o := range recent {
			advected[i] = s.propagation.Advect(o, target)
		}
		obs = advected
	}

	scaledObs, tr := scaleObservations(obs, s.rng)
	f, err := s.interp.interpolateGrid(ctx, scaledObs, tr, resolution, IDW)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("prediction interpolation failed, reusing current field")
		return s.degradedLocked(target), nil
	}
	f.Time = target

	for _, o := range obs {
		s.eval.record(o.Latlon, target, o.Direction, o.SpeedMS)
	}

	return f, nil
}

// degradedLocked clones the current field at the target time with
// confidence scaled down, used as the prediction fallback.
func (s *FusionSystem) degradedLocked(target time.Time) *Field {
	rows, cols := s.current.Shape()
	out := newField(rows, cols)
	out.Time = target
	for i := 0; i < rows; i++ {
		copy(out.Lats[i], s.current.Lats[i])
		copy(out.Lons[i], s.current.Lons[i])
		copy(out.Direction[i], s.current.Direction[i])
		copy(out.Speed[i], s.current.Speed[i])
		for j := 0; j < cols; j++ {
			out.Confidence[i][j] = s.current.Confidence[i][j] * 0.7
		}
	}
	return out
}

// PruneStale drops buffered observations older than twice the recency
// window. Run periodically.
func (s *FusionSystem) PruneStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-2 * s.cfg.RecencyWindow)
	kept := s.buffer[:0]
	dropped := 0
	for _, o := range s.buffer {
		if o.Time.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, o)
	}
	s.buffer = kept

	if dropped > 0 {
		log.WithField("dropped", dropped).Info("pruned stale wind observations")
	}
	return dropped
}

// Quality reports how past predictions compared with later
// observations.
func (s *FusionSystem) Quality() QualityReport {
	return s.eval.report()
}

// Propagation returns the current drift estimate, or nil.
func (s *FusionSystem) Propagation() *PropagationVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.propagation.Vector()
}
