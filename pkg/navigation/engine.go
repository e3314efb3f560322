package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/pathsense/go-pathsense/internal/log"
)

// Mode selects the reading producer.
type Mode string

const (
	// ModeDemo fabricates readings on a timer without camera input.
	ModeDemo Mode = "demo"
	// ModeCamera consumes readings from the frame analyzer.
	ModeCamera Mode = "camera"
)

// ParseMode maps a wire string to a Mode, defaulting to demo.
func ParseMode(s string) Mode {
	if Mode(s) == ModeCamera {
		return ModeCamera
	}
	return ModeDemo
}

// State is the navigation system snapshot broadcast to clients.
// JSON field names match what the browser client renders and speaks.
type State struct {
	Running          bool    `json:"is_running"`
	Mode             string  `json:"mode"`
	DistanceCM       float64 `json:"distance"`
	Direction        string  `json:"direction"`
	ObstacleDetected bool    `json:"obstacle_detected"`
	Instruction      string  `json:"last_instruction"`
	Urgent           bool    `json:"urgent"`
	Speak            bool    `json:"speak"`
	Confidence       float64 `json:"confidence"`
	Category         string  `json:"category,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// Engine owns the navigation state machine: stopped or running in demo or
// camera mode. Every accepted reading becomes exactly one state update.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	sim       *Simulator
	announcer *Announcer
	cancel    context.CancelFunc

	// lastReading tracks analyzer liveness in camera mode.
	lastReading time.Time

	onUpdate  func(State)
	onReading func(Reading, State)
}

// NewEngine creates a stopped engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		sim:       NewSimulator(cfg),
		announcer: NewAnnouncer(cfg.RepeatCooldown()),
		state:     State{Mode: string(ModeDemo)},
	}
}

// OnUpdate registers the callback fired after every state change.
// Must be set before Start.
func (e *Engine) OnUpdate(fn func(State)) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

// OnReading registers the callback fired for every accepted reading,
// after the state it produced. Used for best-effort persistence.
func (e *Engine) OnReading(fn func(Reading, State)) {
	e.mu.Lock()
	e.onReading = fn
	e.mu.Unlock()
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig validates and applies a new configuration at runtime.
// Interval changes take effect on the next tick.
func (e *Engine) SetConfig(cfg Config) []string {
	if errs := cfg.Validate(); errs != nil {
		return errs
	}
	e.mu.Lock()
	e.cfg = cfg
	e.sim = NewSimulator(cfg)
	e.announcer = NewAnnouncer(cfg.RepeatCooldown())
	e.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins producing readings in the given mode.
// Returns the resulting state and whether this call started the engine;
// starting an already-running engine is a no-op.
func (e *Engine) Start(mode Mode) (State, bool) {
	e.mu.Lock()
	if e.state.Running {
		state := e.state
		e.mu.Unlock()
		return state, false
	}

	e.state.Running = true
	e.state.Mode = string(mode)
	e.state.Speak = false
	e.announcer.Reset()
	e.lastReading = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(ctx, mode)

	log.Info("navigation started", "mode", mode)
	return e.Snapshot(), true
}

// Stop halts reading production and announces the stop to clients.
// Stopping an already-stopped engine still records the instruction
// but produces no update.
func (e *Engine) Stop() State {
	e.mu.Lock()
	if !e.state.Running {
		e.state.Instruction = "Navigation stopped"
		e.state.Urgent = false
		e.state.Speak = false
		state := e.state
		e.mu.Unlock()
		return state
	}

	e.cancel()
	e.cancel = nil
	e.state.Running = false
	e.state.ObstacleDetected = false
	e.state.Instruction = "Navigation stopped"
	e.state.Urgent = false
	e.state.Speak = true
	state := e.state
	onUpdate := e.onUpdate
	e.mu.Unlock()

	log.Info("navigation stopped")
	if onUpdate != nil {
		onUpdate(state)
	}
	return state
}

// ApplyCamera feeds an analyzer reading into the engine.
// Rejected unless the engine is running in camera mode.
func (e *Engine) ApplyCamera(r Reading) (State, bool) {
	e.mu.Lock()
	if !e.state.Running || Mode(e.state.Mode) != ModeCamera {
		state := e.state
		e.mu.Unlock()
		return state, false
	}
	e.lastReading = r.At
	if e.lastReading.IsZero() {
		e.lastReading = time.Now()
	}
	e.mu.Unlock()

	return e.apply(r)
}

// run is the engine's single background loop. In demo mode each tick
// fabricates a reading; in camera mode each tick only checks that the
// analyzer is still feeding us.
func (e *Engine) run(ctx context.Context, mode Mode) {
	for {
		e.mu.Lock()
		interval := e.cfg.UpdateInterval()
		sim := e.sim
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		switch mode {
		case ModeDemo:
			e.apply(sim.Next())
		case ModeCamera:
			e.checkStale()
		}
	}
}

// checkStale reports a low-confidence clear state when camera frames
// stop arriving, instead of freezing on the last reading.
func (e *Engine) checkStale() {
	e.mu.Lock()
	stale := time.Since(e.lastReading) > e.cfg.StaleAfter()
	maxCM := e.cfg.MaxDistanceCM
	e.mu.Unlock()

	if !stale {
		return
	}

	e.apply(Reading{
		DistanceCM: maxCM,
		Direction:  DirectionStraight,
		Confidence: 0.1,
		Source:     "stale",
		At:         time.Now(),
	})
}

// apply turns one reading into one state update and fires the callbacks.
func (e *Engine) apply(r Reading) (State, bool) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	if !r.Direction.Valid() {
		r.Direction = DirectionStraight
	}

	e.mu.Lock()
	if !e.state.Running {
		state := e.state
		e.mu.Unlock()
		return state, false
	}

	r.DistanceCM = e.cfg.ClampDistance(r.DistanceCM)

	ins := BuildInstruction(r, e.cfg.ObstacleThresholdCM)
	speak := e.announcer.Announce(ins, r.At)

	e.state.DistanceCM = r.DistanceCM
	e.state.Direction = string(r.Direction)
	e.state.ObstacleDetected = r.DistanceCM < e.cfg.ObstacleThresholdCM
	e.state.Instruction = ins.Text
	e.state.Urgent = ins.Urgent
	e.state.Speak = speak
	e.state.Confidence = r.Confidence
	e.state.Category = DistanceCategory(r.DistanceCM)
	e.state.Source = r.Source

	state := e.state
	onUpdate := e.onUpdate
	onReading := e.onReading
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(state)
	}
	if onReading != nil {
		onReading(r, state)
	}
	return state, true
}
