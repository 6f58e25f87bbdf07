package field

import (
	"math"
	"time"

	"github.com/sailtactics/windfield-server/angles"
)

// Field is a fused wind field on a regular grid. All data grids share
// the shape of Lats.
type Field struct {
	Lats       [][]float64 `json:"latGrid"`
	Lons       [][]float64 `json:"lonGrid"`
	Direction  [][]float64 `json:"windDirection"`
	Speed      [][]float64 `json:"windSpeed"`
	Confidence [][]float64 `json:"confidence"`
	Time       time.Time   `json:"time"`
}

func newGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}

func newField(rows, cols int) *Field {
	return &Field{
		Lats:       newGrid(rows, cols),
		Lons:       newGrid(rows, cols),
		Direction:  newGrid(rows, cols),
		Speed:      newGrid(rows, cols),
		Confidence: newGrid(rows, cols),
	}
}

// Shape returns the grid dimensions.
func (f *Field) Shape() (rows, cols int) {
	if len(f.Lats) == 0 {
		return 0, 0
	}
	return len(f.Lats), len(f.Lats[0])
}

// Bounds returns the min/max latitude and longitude covered by the grid.
func (f *Field) Bounds() (minLat, maxLat, minLon, maxLon float64) {
	rows, cols := f.Shape()
	if rows == 0 {
		return
	}
	minLat, maxLat = f.Lats[0][0], f.Lats[0][0]
	minLon, maxLon = f.Lons[0][0], f.Lons[0][0]
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if f.Lats[i][j] < minLat {
				minLat = f.Lats[i][j]
			}
			if f.Lats[i][j] > maxLat {
				maxLat = f.Lats[i][j]
			}
			if f.Lons[i][j] < minLon {
				minLon = f.Lons[i][j]
			}
			if f.Lons[i][j] > maxLon {
				maxLon = f.Lons[i][j]
			}
		}
	}
	return
}

// Cell is the wind at one grid cell, with the local variability
// estimated from the 3x3 neighborhood.
type Cell struct {
	Direction   float64
	SpeedMS     float64
	Confidence  float64
	Variability float64
}

// At returns the wind at the grid cell nearest to (lat, lon), or false
// when the position lies outside the grid bounds.
func (f *Field) At(lat, lon float64) (Cell, bool) {
	rows, cols := f.Shape()
	if rows == 0 {
		return Cell{}, false
	}

	minLat, maxLat, minLon, maxLon := f.Bounds()
	if lat < minLat || lat > maxLat || lon < minLon || lon > maxLon {
		return Cell{}, false
	}

	bi, bj := 0, 0
	best := (f.Lats[0][0]-lat)*(f.Lats[0][0]-lat) + (f.Lons[0][0]-lon)*(f.Lons[0][0]-lon)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := (f.Lats[i][j]-lat)*(f.Lats[i][j]-lat) + (f.Lons[i][j]-lon)*(f.Lons[i][j]-lon)
			if d < best {
				best = d
				bi, bj = i, j
			}
		}
	}

	return Cell{
		Direction:   f.Direction[bi][bj],
		SpeedMS:     f.Speed[bi][bj],
		Confidence:  f.Confidence[bi][bj],
		Variability: f.variabilityAround(bi, bj),
	}, true
}

// variabilityAround estimates the local wind variability from the 3x3
// neighborhood of a cell: circular dispersion for direction, weighted
// with the coefficient of variation for speed.
func (f *Field) variabilityAround(i, j int) float64 {
	rows, cols := f.Shape()

	var dirs, speeds []float64
	for ni := i - 1; ni <= i+1; ni++ {
		for nj := j - 1; nj <= j+1; nj++ {
			if ni < 0 || ni >= rows || nj < 0 || nj >= cols {
				continue
			}
			dirs = append(dirs, f.Direction[ni][nj])
			speeds = append(speeds, f.Speed[ni][nj])
		}
	}

	dirVariability := angles.Variability(dirs)

	mean := 0.0
	for _, s := range speeds {
		mean += s
	}
	mean /= float64(len(speeds))

	speedVariability := 0.0
	if mean > 0 {
		variance := 0.0
		for _, s := range speeds {
			variance += (s - mean) * (s - mean)
		}
		variance /= float64(len(speeds))
		speedVariability = math.Sqrt(variance) / mean
	}
	if speedVariability > 1 {
		speedVariability = 1
	}

	v := 0.7*dirVariability + 0.3*speedVariability
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
