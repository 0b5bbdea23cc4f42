package scape

import (
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Cart-pole balancing. A pole is hinged to a cart on a bounded track and the
// controller pushes the cart left or right each tick. The episode ends when
// the pole tips past the angle limit or the cart runs off the track.
const (
	cartPoleGravity   = 9.8
	cartMass          = 1.0
	poleMass          = 0.1
	cartPoleTotalMass = cartMass + poleMass
	halfPoleLength    = 0.5
	poleMassLength    = poleMass * halfPoleLength
	cartPoleForce     = 10.0
	cartPoleDelta     = 0.02

	cartPoleTrackLimit = 2.4
	cartPoleAngleLimit = 12.0 * math.Pi / 180.0

	cartPoleStartJitter = 0.05
)

// CartPoleFactory builds cart-pole environments with four observations
// (cart position, cart velocity, pole angle, pole angular velocity) and two
// actions (push left, push right).
type CartPoleFactory struct{}

func (CartPoleFactory) Name() string         { return "cart-pole" }
func (CartPoleFactory) ObservationSize() int { return 4 }
func (CartPoleFactory) ActionCount() int     { return 2 }

func (f CartPoleFactory) New(seed int64) (Environment, error) {
	return &cartPole{rng: rand.New(rand.NewSource(seed))}, nil
}

type cartPoleState struct {
	position        float64
	velocity        float64
	angle           float64
	angularVelocity float64
}

func (s cartPoleState) observation() []float64 {
	return []float64{s.position, s.velocity, s.angle, s.angularVelocity}
}

func (s cartPoleState) failed() bool {
	return math.Abs(s.position) > cartPoleTrackLimit || math.Abs(s.angle) > cartPoleAngleLimit
}

type cartPole struct {
	rng    *rand.Rand
	state  cartPoleState
	active bool
	closed bool
}

func (e *cartPole) Reset() ([]float64, error) {
	if e.closed {
		return nil, ErrClosed
	}
	e.state = cartPoleState{
		position:        e.jitter(),
		velocity:        e.jitter(),
		angle:           e.jitter(),
		angularVelocity: e.jitter(),
	}
	e.active = true
	return e.state.observation(), nil
}

func (e *cartPole) Step(action int) (Transition, error) {
	if e.closed {
		return Transition{}, ErrClosed
	}
	if !e.active {
		return Transition{}, ErrEpisodeOver
	}
	if action < 0 || action >= 2 {
		return Transition{}, fmt.Errorf("cart-pole action %d: %w", action, ErrInvalidAction)
	}

	force := cartPoleForce
	if action == 0 {
		force = -cartPoleForce
	}
	e.state = stepCartPole(e.state, force)

	done := e.state.failed()
	if done {
		e.active = false
	}
	return Transition{
		Observation: e.state.observation(),
		Reward:      1.0,
		Done:        done,
	}, nil
}

// stepCartPole advances the dynamics one tick of cartPoleDelta seconds under
// a constant force, using Euler integration.
func stepCartPole(s cartPoleState, force float64) cartPoleState {
	cosAngle := math.Cos(s.angle)
	sinAngle := math.Sin(s.angle)

	temp := (force + poleMassLength*s.angularVelocity*s.angularVelocity*sinAngle) / cartPoleTotalMass
	angularAcc := (cartPoleGravity*sinAngle - cosAngle*temp) /
		(halfPoleLength * (4.0/3.0 - poleMass*cosAngle*cosAngle/cartPoleTotalMass))
	linearAcc := temp - poleMassLength*angularAcc*cosAngle/cartPoleTotalMass

	return cartPoleState{
		position:        s.position + cartPoleDelta*s.velocity,
		velocity:        s.velocity + cartPoleDelta*linearAcc,
		angle:           s.angle + cartPoleDelta*s.angularVelocity,
		angularVelocity: s.angularVelocity + cartPoleDelta*angularAcc,
	}
}

func (e *cartPole) Render() error {
	_, err := fmt.Fprintf(os.Stdout, "cart-pole position=%+.3f velocity=%+.3f angle=%+.4f angular_velocity=%+.4f\n",
		e.state.position, e.state.velocity, e.state.angle, e.state.angularVelocity)
	return err
}

func (e *cartPole) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.active = false
	return nil
}

func (e *cartPole) jitter() float64 {
	return (e.rng.Float64()*2 - 1) * cartPoleStartJitter
}
