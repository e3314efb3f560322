package vision

// Config holds all tunable analyzer parameters.
// These can be modified via the config API at runtime.
type Config struct {
	// SampleGrid is the number of luma samples taken per axis.
	// Frames are never decoded at full density; 64x64 samples are
	// plenty for the coarse statistics this analyzer computes.
	SampleGrid int `json:"sample_grid"`

	// BottomWeight is extra weight (0-1) given to edges in the lower
	// half of the frame, where near obstacles appear.
	BottomWeight float64 `json:"bottom_weight"`

	// Smoothing is the exponential smoothing factor for successive
	// distance estimates (0-1, higher = more weight on new estimate).
	Smoothing float64 `json:"smoothing"`

	// DarkGain and EdgeGain weight how strongly darkness and edge
	// density pull the estimate closer. Their sum caps the closeness
	// score at 1 before clamping.
	DarkGain float64 `json:"dark_gain"`
	EdgeGain float64 `json:"edge_gain"`

	// DirectionMargin is the relative spread between the busiest and
	// calmest column required before a turn is suggested.
	DirectionMargin float64 `json:"direction_margin"`

	// MinDistanceCM and MaxDistanceCM bound the distance estimate.
	MinDistanceCM float64 `json:"min_distance_cm"`
	MaxDistanceCM float64 `json:"max_distance_cm"`
}

// DefaultConfig returns the recommended analyzer configuration.
func DefaultConfig() Config {
	return Config{
		SampleGrid:      64,
		BottomWeight:    0.6,
		Smoothing:       0.6, // 60% new, 40% old
		DarkGain:        0.5,
		EdgeGain:        0.5,
		DirectionMargin: 0.15,
		MinDistanceCM:   10,
		MaxDistanceCM:   200,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.SampleGrid < 8 || c.SampleGrid > 512 {
		errors = append(errors, "sample_grid must be between 8 and 512")
	}
	if c.BottomWeight < 0 || c.BottomWeight > 1 {
		errors = append(errors, "bottom_weight must be between 0 and 1")
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		errors = append(errors, "smoothing must be between 0 (exclusive) and 1")
	}
	if c.DarkGain < 0 || c.DarkGain > 1 {
		errors = append(errors, "dark_gain must be between 0 and 1")
	}
	if c.EdgeGain < 0 || c.EdgeGain > 1 {
		errors = append(errors, "edge_gain must be between 0 and 1")
	}
	if c.DirectionMargin < 0 || c.DirectionMargin > 1 {
		errors = append(errors, "direction_margin must be between 0 and 1")
	}
	if c.MinDistanceCM < 1 {
		errors = append(errors, "min_distance_cm must be at least 1")
	}
	if c.MaxDistanceCM <= c.MinDistanceCM {
		errors = append(errors, "max_distance_cm must be greater than min_distance_cm")
	}

	return errors
}
