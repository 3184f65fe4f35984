package crowd

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by NewTracker for unusable parameters.
	ErrInvalidConfig = errors.New("invalid crowd tracker configuration")
	// ErrFrameOrder is returned when frame numbers do not strictly increase.
	ErrFrameOrder = errors.New("frame number out of order")
	// ErrInvalidPoint is returned for frames containing non-finite coordinates.
	ErrInvalidPoint = errors.New("invalid point")
)

// FrameOrderError reports a frame number that is not greater than the
// previously accepted one (or is below 1).
type FrameOrderError struct {
	Previous int
	Got      int
}

func (e *FrameOrderError) Error() string {
	if e.Got < 1 {
		return fmt.Sprintf("%v: frame %d is below 1", ErrFrameOrder, e.Got)
	}
	return fmt.Sprintf("%v: frame %d after frame %d", ErrFrameOrder, e.Got, e.Previous)
}

func (e *FrameOrderError) Unwrap() error { return ErrFrameOrder }

// PointError reports the first non-finite point of a rejected frame.
type PointError struct {
	Frame int
	Index int
	Point Point
}

func (e *PointError) Error() string {
	return fmt.Sprintf("%v: frame %d point %d %v is not finite", ErrInvalidPoint, e.Frame, e.Index, e.Point)
}

func (e *PointError) Unwrap() error { return ErrInvalidPoint }
