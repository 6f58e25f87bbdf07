package strategy

import (
	"math"
	"time"

	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/latlon"
)

// FieldSource resolves the wind field valid at a given time. A static
// source returns the same field for every time; the propagation-aware
// source predicts one per time bucket.
type FieldSource interface {
	FieldAt(t time.Time) *field.Field
}

// StaticField adapts a single fused field into a FieldSource.
type StaticField struct {
	F *field.Field
}

// FieldAt returns the wrapped field regardless of time.
func (s StaticField) FieldAt(time.Time) *field.Field {
	return s.F
}

type lookupKey struct {
	lat, lon int64
	bucket   int64
}

// windLookup answers point wind queries against a FieldSource, caching
// cells by rounded position and a 10 s time bucket. The cache is reset
// at the start of every detection pass, so a refreshed field never
// serves stale cells.
type windLookup struct {
	source FieldSource
	cache  map[lookupKey]field.Cell
}

func newWindLookup(source FieldSource) *windLookup {
	return &windLookup{
		source: source,
		cache:  make(map[lookupKey]field.Cell),
	}
}

func (l *windLookup) reset() {
	l.cache = make(map[lookupKey]field.Cell)
}

// at returns the wind cell for a position and time.
func (l *windLookup) at(p latlon.LatLon, t time.Time) (field.Cell, bool) {
	key := lookupKey{
		lat:    int64(math.Round(p.Lat * 10000)),
		lon:    int64(math.Round(p.Lon * 10000)),
		bucket: t.Unix() / 10,
	}
	if cell, found := l.cache[key]; found {
		return cell, true
	}

	f := l.source.FieldAt(t)
	if f == nil {
		return field.Cell{}, false
	}
	cell, ok := f.At(p.Lat, p.Lon)
	if !ok {
		return field.Cell{}, false
	}
	l.cache[key] = cell
	return cell, true
}
