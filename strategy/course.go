package strategy

import (
	"time"

	"github.com/sailtactics/windfield-server/latlon"
)

// PathPoint is one sampled position along a planned leg.
type PathPoint struct {
	Latlon latlon.LatLon `json:"latlon"`
	Time   time.Time     `json:"time"`
	Course float64       `json:"course"`
	Upwind bool          `json:"upwind"`
}

// Leg is one leg of the race course: the sampled path toward its mark,
// plus any tack positions already planned on it.
type Leg struct {
	Name       string          `json:"name"`
	Mark       latlon.LatLon   `json:"mark"`
	Upwind     bool            `json:"upwind"`
	Path       []PathPoint     `json:"path"`
	TackPoints []latlon.LatLon `json:"tackPoints,omitempty"`
}

// Course is the planned race course for one boat.
type Course struct {
	BoatType string `json:"boatType"`
	Legs     []Leg  `json:"legs"`
}
