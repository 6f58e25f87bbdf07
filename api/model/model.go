package model

import (
	"github.com/sailtactics/windfield-server/estimator"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/strategy"
	"github.com/sailtactics/windfield-server/track"
)

// EstimateRequest carries the GPS tracks of one or more boats.
type EstimateRequest struct {
	BoatType string                   `json:"boatType"`
	Tracks   map[string][]track.Point `json:"tracks"`
}

// EstimateResponse returns the per-boat wind estimates. Boats whose
// track could not support an estimate are absent.
type EstimateResponse struct {
	Estimates map[string][]estimator.Estimate `json:"estimates"`
}

// FieldResponse wraps a wind field with the propagation vector and the
// prediction-quality statistics.
type FieldResponse struct {
	Field       *field.Field             `json:"field"`
	Propagation *field.PropagationVector `json:"propagation,omitempty"`
	Quality     field.QualityReport      `json:"quality"`
}

// StrategyRequest carries the planned course to analyze.
type StrategyRequest struct {
	Course strategy.Course `json:"course"`
}

// StrategyResponse returns the detected decision points.
type StrategyResponse struct {
	WindShifts []strategy.WindShiftPoint `json:"windShifts"`
	Tacks      []strategy.TackPoint      `json:"tacks"`
	Laylines   []strategy.LaylinePoint   `json:"laylines"`
}
