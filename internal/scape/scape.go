package scape

import "errors"

var (
	ErrInvalidAction = errors.New("action out of range")
	ErrEpisodeOver   = errors.New("episode is over; reset required")
	ErrClosed        = errors.New("environment is closed")
)

// Trace carries free-form diagnostics attached to a transition.
type Trace map[string]any

// Transition is the outcome of a single environment step.
type Transition struct {
	Observation []float64
	Reward      float64
	Done        bool
	Info        Trace
}

// Environment is an episodic control task. Reset starts a fresh episode and
// returns its initial observation, Step advances one tick, and Close releases
// whatever the instance holds. After Close the instance is unusable.
type Environment interface {
	Reset() ([]float64, error)
	Step(action int) (Transition, error)
	Close() error
}

// Renderer is an optional capability for environments that can draw their
// current state.
type Renderer interface {
	Render() error
}

// Factory builds one fresh Environment per evaluation. ObservationSize and
// ActionCount describe the IO contract so callers can check policy
// compatibility before running anything.
type Factory interface {
	Name() string
	ObservationSize() int
	ActionCount() int
	New(seed int64) (Environment, error)
}
