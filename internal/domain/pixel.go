package domain

import (
	"fmt"
	"math"
	"strings"
)

// PixelFunc maps one pixel value to another.
type PixelFunc func(float64) float64

// DBToLinear converts a decibel value to linear scale: 10^(dB/10).
func DBToLinear(v float64) float64 {
	return math.Pow(10, v/10)
}

// LinearToDB converts a linear value to decibels: 10*log10(v).
func LinearToDB(v float64) float64 {
	return 10 * math.Log10(v)
}

// PixelOp names a built-in pixel transform.
type PixelOp string

// Built-in pixel transforms.
const (
	OpDBToLinear PixelOp = "db-to-linear"
	OpLinearToDB PixelOp = "linear-to-db"
)

// Func returns the transform for the operation.
func (o PixelOp) Func() (PixelFunc, error) {
	switch PixelOp(strings.ToLower(string(o))) {
	case OpDBToLinear:
		return DBToLinear, nil
	case OpLinearToDB:
		return LinearToDB, nil
	default:
		return nil, fmt.Errorf("pixel operation %q: %w", o, ErrUnsupported)
	}
}
