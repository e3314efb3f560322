package navigation

import "time"

// Config holds all tunable engine parameters.
// These can be modified via the config API at runtime.
type Config struct {
	// === Timing ===
	// UpdateIntervalMS is how often demo readings are produced.
	UpdateIntervalMS int `json:"update_interval_ms"`

	// StaleAfterMS is how long camera mode tolerates silence from the
	// analyzer before reporting a low-confidence clear state.
	StaleAfterMS int `json:"stale_after_ms"`

	// === Obstacles ===
	// ObstacleThresholdCM: readings below this distance raise an obstacle.
	ObstacleThresholdCM float64 `json:"obstacle_threshold_cm"`

	// MinDistanceCM and MaxDistanceCM bound every accepted reading.
	MinDistanceCM float64 `json:"min_distance_cm"`
	MaxDistanceCM float64 `json:"max_distance_cm"`

	// === Speech ===
	// RepeatCooldownMS suppresses identical instructions issued within
	// this window so clients do not re-speak the same sentence.
	RepeatCooldownMS int `json:"repeat_cooldown_ms"`
}

// DefaultConfig returns the recommended engine configuration.
func DefaultConfig() Config {
	return Config{
		UpdateIntervalMS:    2000, // one reading every 2s, matches the demo cadence
		StaleAfterMS:        5000,
		ObstacleThresholdCM: 50,
		MinDistanceCM:       10,
		MaxDistanceCM:       200,
		RepeatCooldownMS:    4000,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.UpdateIntervalMS < 100 || c.UpdateIntervalMS > 60000 {
		errors = append(errors, "update_interval_ms must be between 100 and 60000")
	}
	if c.StaleAfterMS < 500 || c.StaleAfterMS > 120000 {
		errors = append(errors, "stale_after_ms must be between 500 and 120000")
	}
	if c.MinDistanceCM < 1 {
		errors = append(errors, "min_distance_cm must be at least 1")
	}
	if c.MaxDistanceCM <= c.MinDistanceCM {
		errors = append(errors, "max_distance_cm must be greater than min_distance_cm")
	}
	if c.ObstacleThresholdCM <= c.MinDistanceCM || c.ObstacleThresholdCM >= c.MaxDistanceCM {
		errors = append(errors, "obstacle_threshold_cm must be between min_distance_cm and max_distance_cm")
	}
	if c.RepeatCooldownMS < 0 || c.RepeatCooldownMS > 60000 {
		errors = append(errors, "repeat_cooldown_ms must be between 0 and 60000")
	}

	return errors
}

// UpdateInterval returns the demo tick interval as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

// StaleAfter returns the camera staleness window as a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMS) * time.Millisecond
}

// RepeatCooldown returns the instruction cooldown as a duration.
func (c *Config) RepeatCooldown() time.Duration {
	return time.Duration(c.RepeatCooldownMS) * time.Millisecond
}

// ClampDistance bounds a distance estimate to the configured range.
func (c *Config) ClampDistance(cm float64) float64 {
	if cm < c.MinDistanceCM {
		return c.MinDistanceCM
	}
	if cm > c.MaxDistanceCM {
		return c.MaxDistanceCM
	}
	return cm
}
