package field

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/sailtactics/windfield-server/angles"
)

// Method selects the spatial interpolation scheme.
type Method string

const (
	// IDW is inverse-distance weighting, the primary method.
	IDW Method = "idw"
	// Nearest assigns each cell the value of its nearest observation.
	// Cheapest and most robust, used as the fallback.
	Nearest Method = "nearest"
)

var errNoObservations = errors.New("no observations to interpolate")

// Interpolator builds wind-field grids from scaled observations. Grid
// rows are computed concurrently; cells are independent so the result
// does not depend on evaluation order.
type Interpolator struct{}

// interpolateGrid interpolates scaled observations onto a
// resolution x resolution grid in the normalized space, mapping grid
// coordinates back to degrees through the transform.
func (in Interpolator) interpolateGrid(ctx context.Context, obs []scaled, tr transform, resolution int, method Method) (*Field, error) {
	if len(obs) == 0 {
		return nil, errNoObservations
	}
	if resolution < 2 {
		resolution = 2
	}

	f := newField(resolution, resolution)
	step := 1.0 / float64(resolution-1)

	var wg sync.WaitGroup
	var failed int32
	var mu sync.Mutex

	for i := 0; i < resolution; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			y := float64(i) * step
			for j := 0; j < resolution; j++ {
				x := float64(j) * step

				f.Lats[i][j] = tr.lat(y)
				f.Lons[i][j] = tr.lon(x)

				var cell Cell
				var ok bool
				switch method {
				case Nearest:
					cell, ok = nearestCell(obs, x, y)
				default:
					cell, ok = idwCell(obs, tr, x, y)
				}
				if !ok {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}

				f.Direction[i][j] = cell.Direction
				f.Speed[i][j] = cell.SpeedMS
				f.Confidence[i][j] = cell.Confidence
			}
		}(i)
	}
	wg.Wait()

	if failed > 0 {
		return nil, errors.New("interpolation produced undefined cells")
	}

	return f, nil
}

// idwCell computes one cell by inverse-distance-squared weighting in
// the normalized space, restoring wind speed through the transform.
// Direction is interpolated through its sin/cos components to respect
// circularity. Confidence is absolute: the distance-weighted mean of
// the contributing observations' own confidences, attenuated with the
// distance to the nearest observation, so a cell never claims more
// confidence than the observations supporting it and does not depend
// on the rest of the grid.
func idwCell(obs []scaled, tr transform, x, y float64) (Cell, bool) {
	var u, v, h, weightSum float64
	var confSum, confWeight float64
	nearest := math.Inf(1)

	for _, o := range obs {
		dx := o.x - x
		dy := o.y - y
		d2 := dx*dx + dy*dy
		if d2 < nearest {
			nearest = d2
		}

		w := o.Confidence / (d2 + 1e-6)
		sw := 1.0 / (d2 + 1e-6)

		r := o.Direction * math.Pi / 180.0
		u += w * math.Sin(r)
		v += w * math.Cos(r)
		h += w * o.h
		weightSum += w
		confSum += sw * o.Confidence
		confWeight += sw
	}

	if weightSum <= 0 || math.IsNaN(weightSum) || math.IsInf(weightSum, 0) {
		return Cell{}, false
	}

	dir := angles.Normalize(math.Atan2(u/weightSum, v/weightSum) * 180.0 / math.Pi)
	if math.IsNaN(dir) {
		return Cell{}, false
	}

	speed := tr.wind(h / weightSum)
	if speed < 0 {
		speed = 0
	}

	support := 1.0 / (1.0 + 4.0*math.Sqrt(nearest))

	return Cell{
		Direction:  dir,
		SpeedMS:    speed,
		Confidence: confSum / confWeight * support,
	}, true
}

func nearestCell(obs []scaled, x, y float64) (Cell, bool) {
	best := -1
	bestD := math.Inf(1)
	for i, o := range obs {
		dx := o.x - x
		dy := o.y - y
		d := dx*dx + dy*dy
		if d < bestD {
			bestD = d
			best = i
		}
	}
	if best < 0 {
		return Cell{}, false
	}

	return Cell{
		Direction:  obs[best].Direction,
		SpeedMS:    obs[best].SpeedMS,
		Confidence: obs[best].Confidence * 0.7,
	}, true
}

// FieldToGrid interpolates an existing field onto new coordinate grids,
// keeping direction circular through its sin/cos components. Used when
// combining snapshots of different resolutions.
func (in Interpolator) FieldToGrid(src *Field, lats, lons [][]float64) *Field {
	srcRows, srcCols := src.Shape()
	if srcRows == 0 || len(lats) == 0 {
		return nil
	}

	out := &Field{
		Lats:       lats,
		Lons:       lons,
		Direction:  newGrid(len(lats), len(lats[0])),
		Speed:      newGrid(len(lats), len(lats[0])),
		Confidence: newGrid(len(lats), len(lats[0])),
		Time:       src.Time,
	}

	for i := range lats {
		for j := range lats[i] {
			var u, v, speed, conf, weightSum float64

			for si := 0; si < srcRows; si++ {
				for sj := 0; sj < srcCols; sj++ {
					dLat := src.Lats[si][sj] - lats[i][j]
					dLon := src.Lons[si][sj] - lons[i][j]
					w := 1.0 / (dLat*dLat + dLon*dLon + 1e-12)

					r := src.Direction[si][sj] * math.Pi / 180.0
					u += w * math.Sin(r)
					v += w * math.Cos(r)
					speed += w * src.Speed[si][sj]
					conf += w * src.Confidence[si][sj]
					weightSum += w
				}
			}

			out.Direction[i][j] = angles.Normalize(math.Atan2(u/weightSum, v/weightSum) * 180.0 / math.Pi)
			out.Speed[i][j] = speed / weightSum
			out.Confidence[i][j] = conf / weightSum
		}
	}

	return out
}
