package navigation

import (
	"math/rand"
	"time"
)

// Simulator fabricates obstacle readings for demo mode.
// It needs no camera input and alternates randomly between obstacles
// and clear path, the same shape of data camera mode produces.
type Simulator struct {
	cfg Config
	rng *rand.Rand
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithRandSource sets a deterministic random source for tests.
func WithRandSource(src rand.Source) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rand.New(src)
	}
}

// NewSimulator creates a demo-mode reading source.
func NewSimulator(cfg Config, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next fabricates one reading: distance uniform over the configured range,
// direction random left/right. Simulated readings are fully confident.
func (s *Simulator) Next() Reading {
	span := s.cfg.MaxDistanceCM - s.cfg.MinDistanceCM
	distance := s.cfg.MinDistanceCM + s.rng.Float64()*span

	direction := DirectionLeft
	if s.rng.Intn(2) == 1 {
		direction = DirectionRight
	}

	return Reading{
		DistanceCM: distance,
		Direction:  direction,
		Confidence: 1,
		Source:     "demo",
		At:         time.Now(),
	}
}
