package scape

import (
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Double-pole balancing. Two poles of different lengths are hinged to the
// same cart and must be kept upright at once. The short pole reacts faster
// than the long one, so the controller cannot treat them as a single pole.
// The episode ends when either pole tips past the angle limit or the cart
// runs off the track.
const (
	doublePoleGravity       = -9.81
	doublePoleCartMass      = 1.0
	longPoleMass            = 0.1
	shortPoleMass           = 0.01
	longPoleHalfLength      = 0.5
	shortPoleHalfLength     = 0.05
	doublePoleCartFriction  = 0.0005
	doublePoleHingeFriction = 0.000002
	doublePoleForce         = 10.0
	doublePoleDelta         = 0.01
	doublePoleSubsteps      = 2

	doublePoleTrackLimit    = 2.4
	doublePoleAngleLimit    = 36.0 * math.Pi / 180.0
	doublePoleVelocityLimit = 10.0

	doublePoleStartAngle  = 3.6 * math.Pi / 180.0
	doublePoleStartJitter = 0.01
)

// DoublePoleFactory builds double-pole environments with six observations
// (cart position, cart velocity, long pole angle and angular velocity, short
// pole angle and angular velocity) and two actions (push left, push right).
// Positions and angles are scaled onto [-1, 1] by their limits.
type DoublePoleFactory struct{}

func (DoublePoleFactory) Name() string         { return "double-pole" }
func (DoublePoleFactory) ObservationSize() int { return 6 }
func (DoublePoleFactory) ActionCount() int     { return 2 }

func (f DoublePoleFactory) New(seed int64) (Environment, error) {
	return &doublePole{rng: rand.New(rand.NewSource(seed))}, nil
}

type doublePoleState struct {
	position      float64
	velocity      float64
	longAngle     float64
	longVelocity  float64
	shortAngle    float64
	shortVelocity float64
}

func (s doublePoleState) observation() []float64 {
	return []float64{
		scaleToUnit(s.position, doublePoleTrackLimit),
		scaleToUnit(s.velocity, doublePoleVelocityLimit),
		scaleToUnit(s.longAngle, doublePoleAngleLimit),
		s.longVelocity,
		scaleToUnit(s.shortAngle, doublePoleAngleLimit),
		s.shortVelocity,
	}
}

func (s doublePoleState) failed() bool {
	return math.Abs(s.position) > doublePoleTrackLimit ||
		math.Abs(s.longAngle) > doublePoleAngleLimit ||
		math.Abs(s.shortAngle) > doublePoleAngleLimit
}

type doublePole struct {
	rng    *rand.Rand
	state  doublePoleState
	active bool
	closed bool
}

func (e *doublePole) Reset() ([]float64, error) {
	if e.closed {
		return nil, ErrClosed
	}
	e.state = doublePoleState{
		position:      e.jitter(),
		velocity:      e.jitter(),
		longAngle:     doublePoleStartAngle + e.jitter(),
		longVelocity:  e.jitter(),
		shortAngle:    e.jitter(),
		shortVelocity: e.jitter(),
	}
	e.active = true
	return e.state.observation(), nil
}

func (e *doublePole) Step(action int) (Transition, error) {
	if e.closed {
		return Transition{}, ErrClosed
	}
	if !e.active {
		return Transition{}, ErrEpisodeOver
	}
	if action < 0 || action >= 2 {
		return Transition{}, fmt.Errorf("double-pole action %d: %w", action, ErrInvalidAction)
	}

	force := doublePoleForce
	if action == 0 {
		force = -doublePoleForce
	}
	for i := 0; i < doublePoleSubsteps; i++ {
		e.state = stepDoublePole(e.state, force)
	}

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

// stepDoublePole advances the dynamics one tick of doublePoleDelta seconds
// under a constant force, using the effective-mass formulation with cart and
// hinge friction.
func stepDoublePole(s doublePoleState, force float64) doublePoleState {
	cosLong := math.Cos(s.longAngle)
	sinLong := math.Sin(s.longAngle)
	cosShort := math.Cos(s.shortAngle)
	sinShort := math.Sin(s.shortAngle)

	longEffMass := longPoleMass * (1 - 0.75*cosLong*cosLong)
	shortEffMass := shortPoleMass * (1 - 0.75*cosShort*cosShort)

	longEffForce := longPoleMass*longPoleHalfLength*s.longVelocity*s.longVelocity*sinLong +
		0.75*longPoleMass*cosLong*(doublePoleHingeFriction*s.longVelocity/(longPoleMass*longPoleHalfLength)+doublePoleGravity*sinLong)
	shortEffForce := shortPoleMass*shortPoleHalfLength*s.shortVelocity*s.shortVelocity*sinShort +
		0.75*shortPoleMass*cosShort*(doublePoleHingeFriction*s.shortVelocity/(shortPoleMass*shortPoleHalfLength)+doublePoleGravity*sinShort)

	cartAcc := (force - doublePoleCartFriction*sign(s.velocity) + longEffForce + shortEffForce) /
		(doublePoleCartMass + longEffMass + shortEffMass)
	longAcc := -0.75 / longPoleHalfLength *
		(cartAcc*cosLong + doublePoleGravity*sinLong + doublePoleHingeFriction*s.longVelocity/(longPoleMass*longPoleHalfLength))
	shortAcc := -0.75 / shortPoleHalfLength *
		(cartAcc*cosShort + doublePoleGravity*sinShort + doublePoleHingeFriction*s.shortVelocity/(shortPoleMass*shortPoleHalfLength))

	longVelocity := s.longVelocity + doublePoleDelta*longAcc
	shortVelocity := s.shortVelocity + doublePoleDelta*shortAcc

	return doublePoleState{
		position:      s.position + doublePoleDelta*s.velocity,
		velocity:      s.velocity + doublePoleDelta*cartAcc,
		longAngle:     s.longAngle + doublePoleDelta*longVelocity,
		longVelocity:  longVelocity,
		shortAngle:    s.shortAngle + doublePoleDelta*shortVelocity,
		shortVelocity: shortVelocity,
	}
}

func (e *doublePole) Render() error {
	_, err := fmt.Fprintf(os.Stdout, "double-pole position=%+.3f velocity=%+.3f long_angle=%+.4f short_angle=%+.4f\n",
		e.state.position, e.state.velocity, e.state.longAngle, e.state.shortAngle)
	return err
}

func (e *doublePole) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.active = false
	return nil
}

func (e *doublePole) jitter() float64 {
	return (e.rng.Float64()*2 - 1) * doublePoleStartJitter
}

// scaleToUnit maps v from [-limit, limit] onto [-1, 1], clamping overshoot.
func scaleToUnit(v, limit float64) float64 {
	scaled := v / limit
	if scaled > 1 {
		return 1
	}
	if scaled < -1 {
		return -1
	}
	return scaled
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
