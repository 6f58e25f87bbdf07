// Package polar holds the boat-type performance configuration: the
// upwind/downwind speed-ratio coefficients used to back out true wind
// speed from boat speed, the simplified polar curve derived from them,
// and the derived optimal VMG and tacking angles.
package polar

import (
	"encoding/json"
	"io/ioutil"
	"math"

	log "github.com/sirupsen/logrus"
)

// Coefficients are the wind-speed/boat-speed ratios of one hull class.
type Coefficients struct {
	Upwind   float64 `json:"upwind"`
	Downwind float64 `json:"downwind"`
}

// Table maps a boat type to its coefficients. Unknown boat types fall
// back to the "default" entry.
type Table struct {
	coefficients map[string]Coefficients
}

func defaultCoefficients() map[string]Coefficients {
	return map[string]Coefficients{
		"default": {Upwind: 3.0, Downwind: 1.5},
		"laser":   {Upwind: 3.2, Downwind: 1.6},
		"ilca":    {Upwind: 3.2, Downwind: 1.6},
		"470":     {Upwind: 3.0, Downwind: 1.5},
		"49er":    {Upwind: 2.8, Downwind: 1.3},
		"finn":    {Upwind: 3.3, Downwind: 1.7},
		"nacra17": {Upwind: 2.5, Downwind: 1.2},
		"star":    {Upwind: 3.4, Downwind: 1.7},
	}
}

// NewTable returns the compiled-in coefficient table.
func NewTable() *Table {
	return &Table{coefficients: defaultCoefficients()}
}

// Load reads a coefficient table from a JSON file. Entries complete the
// compiled-in defaults; a missing or unreadable file is not an error.
func Load(file string) *Table {
	t := NewTable()

	if file == "" {
		return t
	}

	data, err := ioutil.ReadFile(file)
	if err != nil {
		log.WithError(err).Warnf("Error reading coefficients file '%s', using defaults", file)
		return t
	}

	var loaded map[string]Coefficients
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.WithError(err).Warnf("Error parsing coefficients file '%s', using defaults", file)
		return t
	}

	for boatType, c := range loaded {
		if c.Upwind <= 0 || c.Downwind <= 0 {
			log.Warnf("Ignoring coefficients for '%s': ratios must be positive", boatType)
			continue
		}
		t.coefficients[boatType] = c
	}

	return t
}

// ForBoat returns the coefficients of a boat type, falling back to
// "default" when the type is unknown.
func (t *Table) ForBoat(boatType string) Coefficients {
	if c, found := t.coefficients[boatType]; found {
		return c
	}
	return t.coefficients["default"]
}

// OptimalVMGAngle returns the optimal VMG angle in degrees: the true
// wind angle at which the boat makes best progress toward (upwind) or
// away from (downwind) the wind.
func (t *Table) OptimalVMGAngle(boatType string, isUpwind bool) float64 {
	c := t.ForBoat(boatType)

	if isUpwind {
		a := 45.0 + (c.Upwind-3.0)*2.0
		return math.Min(50, math.Max(40, a))
	}
	a := 150.0 - (c.Downwind-1.5)*2.0
	return math.Min(160, math.Max(135, a))
}

// TackingAngle returns the full tack angle (twice the close-hauled
// angle) for a boat type at a given wind speed in knots. Light air
// widens the angle, heavy air narrows it.
func (t *Table) TackingAngle(boatType string, windSpeedKnots float64) float64 {
	base := map[string]float64{
		"default": 90.0,
		"laser":   84.0,
		"ilca":    84.0,
		"470":     90.0,
		"49er":    85.0,
		"finn":    88.0,
	}
	angle, found := base[boatType]
	if !found {
		angle = 90.0
	}

	switch {
	case windSpeedKnots < 5:
		return angle + 10.0
	case windSpeedKnots > 15:
		return angle - 5.0
	default:
		return angle + 10.0 - (windSpeedKnots-5)*1.5
	}
}

// LaylineMarginBase returns the boat-type base safety margin in degrees
// used by layline detection.
func (t *Table) LaylineMarginBase(boatType string) float64 {
	base := map[string]float64{
		"default": 5.0,
		"laser":   6.0,
		"ilca":    6.0,
		"470":     5.0,
		"49er":    4.0,
		"finn":    6.5,
	}
	if m, found := base[boatType]; found {
		return m
	}
	return 5.0
}

// Speed returns the expected boat speed in knots for a true wind angle
// (degrees) and true wind speed (knots), from the simplified polar
// curve derived from the ratio coefficients.
func (t *Table) Speed(boatType string, twa, tws float64) float64 {
	c := t.ForBoat(boatType)

	a := math.Abs(twa)
	if a > 180 {
		a = 360 - a
	}

	switch {
	case a == 0:
		return 0.0
	case a <= 45:
		// close hauled, tapering toward head to wind
		factor := 0.7 + 0.3*(a/45.0)
		return tws / c.Upwind * factor
	case a <= 90:
		// reaching: blend between upwind and downwind ratios
		blend := (a - 45) / 45.0
		return tws/c.Upwind*(1-blend) + tws/c.Downwind*blend
	default:
		// running, mildly superlinear in wind speed
		return tws / c.Downwind * math.Pow(tws/10.0, 0.1)
	}
}
