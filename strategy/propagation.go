package strategy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/polar"
)

// propagationSource resolves fields through the fusion system's
// prediction, caching one predicted field per minute bucket.
type propagationSource struct {
	fusion *field.FusionSystem

	mu    sync.Mutex
	cache map[int64]*field.Field
}

func (s *propagationSource) FieldAt(t time.Time) *field.Field {
	bucket := t.Unix() / 60

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, found := s.cache[bucket]; found {
		return f
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f, err := s.fusion.PredictField(ctx, t, 0)
	if err != nil {
		log.WithError(err).WithField("time", t).Debug("no predicted field for strategy lookup")
		f = s.fusion.Current()
	}

	s.cache[bucket] = f
	return f
}

// NewDetectorWithPropagation returns a detector whose wind lookups
// follow the fused field as it evolves in time, instead of treating
// the latest fusion as frozen.
func NewDetectorWithPropagation(cfg Config, polars *polar.Table, fusion *field.FusionSystem) *Detector {
	return New(cfg, polars, &propagationSource{
		fusion: fusion,
		cache:  make(map[int64]*field.Field),
	})
}
