// Package angles provides circular statistics for bearings and wind
// directions. All angles are degrees, clockwise from true north.
package angles

import "math"

// Normalize wraps an angle to [0, 360).
func Normalize(a float64) float64 {
	a = math.Mod(a, 360.0)
	if a < 0 {
		a += 360.0
	}
	// adding 360 to a tiny negative rounds to exactly 360.0
	if a >= 360.0 {
		a -= 360.0
	}
	return a
}

// Difference returns the signed minimal difference a-b in (-180, 180].
func Difference(a, b float64) float64 {
	d := math.Mod(a-b+180.0, 360.0)
	if d <= 0 {
		d += 360.0
	}
	return d - 180.0
}

// Mean returns the circular mean of angles, in [0, 360).
// Returns 0 for an empty input: callers must treat that as no data,
// not as wind from true north.
func Mean(as []float64) float64 {
	weights := make([]float64, len(as))
	for i := range weights {
		weights[i] = 1.0
	}
	return WeightedMean(as, weights)
}

// WeightedMean returns the weighted circular mean of angles, in [0, 360).
// Returns 0 when the total weight is 0.
func WeightedMean(as []float64, weights []float64) float64 {
	if len(as) == 0 || len(as) != len(weights) {
		return 0.0
	}

	sin := 0.0
	cos := 0.0
	total := 0.0
	for i, a := range as {
		r := a * math.Pi / 180.0
		sin += math.Sin(r) * weights[i]
		cos += math.Cos(r) * weights[i]
		total += weights[i]
	}
	if total <= 0 {
		return 0.0
	}

	return Normalize(math.Atan2(sin, cos) * 180.0 / math.Pi)
}

// Bisector returns the bisector of two angles. When the raw angular
// difference exceeds 90° the mean is flipped by 180° so the bisector
// lies between the inputs on the correct side: two tack bearings
// straddle the upwind axis, not the downwind one.
func Bisector(a1, a2 float64) float64 {
	b := Mean([]float64{a1, a2})
	if math.Abs(Difference(a1, a2)) > 90.0 {
		b = Normalize(b + 180.0)
	}
	return b
}

// Variability returns 1 minus the resultant vector length of the
// angles: 0 for perfectly consistent input, 1 for uniformly random.
func Variability(as []float64) float64 {
	if len(as) == 0 {
		return 0.0
	}

	sin := 0.0
	cos := 0.0
	for _, a := range as {
		r := a * math.Pi / 180.0
		sin += math.Sin(r)
		cos += math.Cos(r)
	}
	sin /= float64(len(as))
	cos /= float64(len(as))

	return 1.0 - math.Sqrt(sin*sin+cos*cos)
}

// StdDev returns the dispersion of angles as the combined standard
// deviation of their sin/cos embedding, in [0, sqrt(2)].
func StdDev(as []float64) float64 {
	if len(as) < 2 {
		return 0.0
	}

	sins := make([]float64, len(as))
	coss := make([]float64, len(as))
	for i, a := range as {
		r := a * math.Pi / 180.0
		sins[i] = math.Sin(r)
		coss[i] = math.Cos(r)
	}

	return math.Sqrt(variance(sins) + variance(coss))
}

func variance(vs []float64) float64 {
	mean := 0.0
	for _, v := range vs {
		mean += v
	}
	mean /= float64(len(vs))

	sum := 0.0
	for _, v := range vs {
		sum += (v - mean) * (v - mean)
	}
	return sum / float64(len(vs))
}
