package database

import (
	"fmt"
	"math"
)

// EuclideanDistance computes the L2 distance between two vectors in float64.
// Returns +Inf for vectors of different length.
func EuclideanDistance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CheckFinite returns ErrInvalidValue naming the first NaN or infinite value.
func CheckFinite(v Vector) error {
	for i, x := range v {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: value %d is %v", ErrInvalidValue, i+1, x)
		}
	}
	return nil
}
