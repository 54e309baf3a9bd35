// Package math provides float32 vector and matrix math for the renderer.
package math

import "math"

// Clamp limits v to the range [min, max].
func Clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampInt limits v to the range [min, max].
func ClampInt(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Min returns the smaller of a and b.
func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Abs returns the absolute value of v.
func Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Sqrt returns the square root of v.
func Sqrt(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// Sin returns the sine of v.
func Sin(v float32) float32 {
	return float32(math.Sin(float64(v)))
}

// Cos returns the cosine of v.
func Cos(v float32) float32 {
	return float32(math.Cos(float64(v)))
}

// FloorLog2 returns floor(log2(v)), or 0 for v == 0.
func FloorLog2(v uint32) int32 {
	n := int32(-1)
	for v != 0 {
		v >>= 1
		n++
	}
	if n < 0 {
		return 0
	}
	return n
}

// RoundUpPow2 returns the smallest power of two >= v.
func RoundUpPow2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// DivideRoundUp returns ceil(a / b) for positive divisors.
func DivideRoundUp(a, b int32) int32 {
	return (a + b - 1) / b
}
