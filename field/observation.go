// Package field fuses geolocated wind observations from one or many
// boats into a spatial wind field, and projects that field forward in
// time with a propagation model.
package field

import (
	"time"

	"github.com/sailtactics/windfield-server/latlon"
)

// Observation is one timestamped wind measurement inferred from boat
// behavior. Direction is the direction the wind blows from, in degrees.
// Speed is in m/s inside the fusion pipeline.
type Observation struct {
	Time       time.Time     `json:"timestamp"`
	Latlon     latlon.LatLon `json:"latlon"`
	Direction  float64       `json:"windDirection"`
	SpeedMS    float64       `json:"windSpeed"`
	Confidence float64       `json:"confidence"`
	BoatId     string        `json:"boatId"`
}

// valid reports whether an observation carries the required fields.
func (o Observation) valid() bool {
	if o.Time.IsZero() {
		return false
	}
	if o.Latlon.Lat < -90 || o.Latlon.Lat > 90 || o.Latlon.Lon < -180 || o.Latlon.Lon > 180 {
		return false
	}
	if o.Direction < 0 || o.Direction >= 360 {
		return false
	}
	return o.SpeedMS >= 0
}

// KnotsToMS converts knots to m/s.
const KnotsToMS = 0.51444

// MSToKnots converts m/s to knots.
const MSToKnots = 1.94384
