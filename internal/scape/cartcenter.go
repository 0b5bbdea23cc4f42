package scape

import (
	"fmt"
	"math"
	"math/rand"
)

// Cart centering. A cart on a one-dimensional damped track starts away from
// the origin and the controller nudges it left, coasts, or nudges it right.
// A restoring spring term pulls toward the origin and a velocity term damps
// oscillation; the episode ends when the cart escapes the track bounds.
const (
	cartCenterDelta     = 0.1
	cartCenterSpring    = 0.45
	cartCenterDamping   = 0.15
	cartCenterForceGain = 1.25

	cartCenterBound      = 2.0
	cartCenterStartRange = 1.2
)

// CartCenteringFactory builds cart-centering environments with two
// observations (position, velocity) and three actions (push left, coast,
// push right).
type CartCenteringFactory struct{}

func (CartCenteringFactory) Name() string         { return "cart-centering" }
func (CartCenteringFactory) ObservationSize() int { return 2 }
func (CartCenteringFactory) ActionCount() int     { return 3 }

func (f CartCenteringFactory) New(seed int64) (Environment, error) {
	return &cartCentering{rng: rand.New(rand.NewSource(seed))}, nil
}

type cartCentering struct {
	rng      *rand.Rand
	position float64
	velocity float64
	active   bool
	closed   bool
}

func (e *cartCentering) Reset() ([]float64, error) {
	if e.closed {
		return nil, ErrClosed
	}
	e.position = (e.rng.Float64()*2 - 1) * cartCenterStartRange
	e.velocity = 0
	e.active = true
	return e.observation(), nil
}

func (e *cartCentering) Step(action int) (Transition, error) {
	if e.closed {
		return Transition{}, ErrClosed
	}
	if !e.active {
		return Transition{}, ErrEpisodeOver
	}
	if action < 0 || action >= 3 {
		return Transition{}, fmt.Errorf("cart-centering action %d: %w", action, ErrInvalidAction)
	}

	force := float64(action - 1)
	acceleration := cartCenterForceGain*force - cartCenterSpring*e.position - cartCenterDamping*e.velocity
	e.velocity += acceleration * cartCenterDelta
	e.position += e.velocity * cartCenterDelta

	done := math.Abs(e.position) > cartCenterBound
	if done {
		e.active = false
	}
	reward := 1.0 - math.Min(1.0, math.Abs(e.position)/cartCenterBound)
	return Transition{
		Observation: e.observation(),
		Reward:      reward,
		Done:        done,
	}, nil
}

func (e *cartCentering) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.active = false
	return nil
}

func (e *cartCentering) observation() []float64 {
	return []float64{e.position, e.velocity}
}
