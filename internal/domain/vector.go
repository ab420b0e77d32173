package domain

import "math"

// Normalize scales v in place to unit L2 length and returns it.
// A zero vector is returned unchanged (its norm is clamped to 1).
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Dot returns the inner product of a and b accumulated in float64.
// Callers are responsible for checking that the lengths match.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// CheckDimension returns a DimensionError when len(v) differs from dim.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return NewDimensionError(dim, len(v))
	}
	return nil
}
