package similarity

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when the two inputs do not share a feature dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidArgument is returned for a non-positive batch size or malformed matrix data.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyMatrix is returned for matrices with no rows or no columns.
	ErrEmptyMatrix = fmt.Errorf("%w: empty matrix", ErrInvalidArgument)
)

// DimensionError describes a shape disagreement. It matches ErrDimensionMismatch with errors.Is.
type DimensionError struct {
	What string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s has %d columns, want %d", ErrDimensionMismatch, e.What, e.Got, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
