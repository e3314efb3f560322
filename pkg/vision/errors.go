package vision

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrEmptyFrame is returned when a frame has no data.
	ErrEmptyFrame = errors.New("vision: empty frame")

	// ErrFrameTooSmall is returned when a frame is too small to sample.
	ErrFrameTooSmall = errors.New("vision: frame too small to analyze")
)
