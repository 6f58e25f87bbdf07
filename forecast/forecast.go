// Package forecast loads 10 m wind grids from GRIB2 files and serves
// them as a background reference wind source.
package forecast

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/nilsmagnus/grib/griblib"
)

// Grid holds the 10 m U/V wind components of one forecast hour.
type Grid struct {
	Date time.Time
	File string
	Lat0 float64
	Lon0 float64
	ΔLat float64
	ΔLon float64
	NLat uint32
	NLon uint32
	U    [][]float64
	V    [][]float64
}

func (g Grid) buildGrid(data []float64) [][]float64 {

	isContinuous := math.Floor(float64(g.NLon)*g.ΔLon) >= 360

	nLon := g.NLon
	if isContinuous {
		nLon++
	}

	grid := make([][]float64, g.NLat)

	p := 0
	for j := uint32(0); j < g.NLat; j++ {
		grid[j] = make([]float64, nLon)
		for i := uint32(0); i < g.NLon; i++ {
			grid[j][i] = data[p]
			p++
		}
		if isContinuous {
			grid[j][g.NLon] = grid[j][0]
		}
	}
	return grid
}

// Load reads the 10 m U/V wind messages of one GRIB2 file.
func Load(dir string, date time.Time, file string) (Grid, error) {
	g := Grid{Date: date, File: file}
	gribfile, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		return g, err
	}
	defer gribfile.Close()

	messages, err := griblib.ReadMessages(gribfile)
	if err != nil {
		return g, err
	}
	for _, message := range messages {
		if message.Section0.Discipline != uint8(0) ||
			message.Section4.ProductDefinitionTemplate.ParameterCategory != uint8(2) ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Type != 103 ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Value != 10 {
			continue
		}
		grid0, _ := message.Section3.Definition.(*griblib.Grid0)
		g.Lat0 = float64(grid0.La1 / 1e6)
		g.Lon0 = float64(grid0.Lo1 / 1e6)
		g.ΔLat = float64(grid0.Di / 1e6)
		g.ΔLon = float64(grid0.Dj / 1e6)
		g.NLat = grid0.Nj
		g.NLon = grid0.Ni
		if message.Section4.ProductDefinitionTemplate.ParameterNumber == 2 {
			g.U = g.buildGrid(message.Section7.Data)
		} else if message.Section4.ProductDefinitionTemplate.ParameterNumber == 3 {
			g.V = g.buildGrid(message.Section7.Data)
		}
	}
	return g, nil
}

func floorMod(a float64, n float64) float64 {
	return a - n*math.Floor(a/n)
}

func bilinearInterpolate(x float64, y float64, g00 []float64, g10 []float64, g01 []float64, g11 []float64) (float64, float64) {

	rx := (1 - x)
	ry := (1 - y)

	a := rx * ry
	b := x * ry
	c := rx * y
	d := x * y

	u := g00[0]*a + g10[0]*b + g01[0]*c + g11[0]*d
	v := g00[1]*a + g10[1]*b + g01[1]*c + g11[1]*d

	return u, v
}

// vectorToDegrees converts a U/V wind vector into the direction the
// wind blows from.
func vectorToDegrees(u float64, v float64, d float64) float64 {
	velocityDir := math.Atan2(u/d, v/d)
	return velocityDir*180/math.Pi + 180
}

// interpolate returns the U/V components at (lat, lon) by bilinear
// interpolation between the four surrounding grid nodes. ok is false
// when the position falls outside the grid.
func (g Grid) interpolate(lat float64, lon float64) (float64, float64, bool) {
	if g.U == nil || g.V == nil || g.ΔLat == 0 || g.ΔLon == 0 {
		return 0, 0, false
	}

	i := math.Abs((lat - g.Lat0) / g.ΔLat)
	j := floorMod(lon-g.Lon0, 360.0) / g.ΔLon

	fi := uint32(i)
	fj := uint32(j)

	if fi+1 >= g.NLat || int(fj+1) >= len(g.U[fi]) {
		return 0, 0, false
	}

	u00 := g.U[fi][fj]
	v00 := g.V[fi][fj]

	u01 := g.U[fi+1][fj]
	v01 := g.V[fi+1][fj]

	u10 := g.U[fi][fj+1]
	v10 := g.V[fi][fj+1]

	u11 := g.U[fi+1][fj+1]
	v11 := g.V[fi+1][fj+1]

	u, v := bilinearInterpolate(j-float64(fj), i-float64(fi), []float64{u00, v00}, []float64{u10, v10}, []float64{u01, v01}, []float64{u11, v11})

	return u, v, true
}
