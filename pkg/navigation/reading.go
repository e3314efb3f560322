// Package navigation holds the obstacle-reading engine that powers the
// real-time channel: a demo simulator or a camera-frame analyzer produces
// readings, and the engine turns them into state updates and spoken
// instructions.
package navigation

import "time"

// Direction is the suggested way around an obstacle.
type Direction string

const (
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionStraight Direction = "straight"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionLeft, DirectionRight, DirectionStraight:
		return true
	}
	return false
}

// Reading is a single obstacle distance/direction estimate.
type Reading struct {
	// DistanceCM is the estimated distance to the nearest obstacle in
	// centimeters, clamped to the configured [min, max] range.
	DistanceCM float64

	// Direction is the suggested way around the obstacle.
	Direction Direction

	// Confidence is 0-1. Demo readings report 1; heuristic camera
	// estimates report how much frame structure backed the guess.
	Confidence float64

	// Source identifies the producer ("demo" or a camera source ID).
	Source string

	// At is when the reading was produced.
	At time.Time
}

// DistanceCategory returns a human-readable distance bucket for a reading.
func DistanceCategory(distanceCM float64) string {
	if distanceCM <= 0 {
		return "unknown"
	}
	if distanceCM < 30 {
		return "very close"
	}
	if distanceCM < 50 {
		return "close"
	}
	if distanceCM < 100 {
		return "nearby"
	}
	if distanceCM < 200 {
		return "moderate"
	}
	return "far"
}
