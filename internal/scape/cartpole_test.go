package scape

import (
	"errors"
	"math"
	"testing"
)

func TestCartPoleFactoryContract(t *testing.T) {
	factory := CartPoleFactory{}
	if factory.Name() != "cart-pole" {
		t.Fatalf("name = %q", factory.Name())
	}
	if factory.ObservationSize() != 4 {
		t.Fatalf("observation size = %d, want 4", factory.ObservationSize())
	}
	if factory.ActionCount() != 2 {
		t.Fatalf("action count = %d, want 2", factory.ActionCount())
	}
}

func TestCartPoleResetWithinJitterBounds(t *testing.T) {
	env, err := CartPoleFactory{}.New(7)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer env.Close()

	for i := 0; i < 20; i++ {
		observation, err := env.Reset()
		if err != nil {
			t.Fatalf("Reset error: %v", err)
		}
		if len(observation) != 4 {
			t.Fatalf("observation length = %d, want 4", len(observation))
		}
		for j, value := range observation {
			if math.Abs(value) > cartPoleStartJitter {
				t.Fatalf("reset %d observation[%d] = %v exceeds jitter bound", i, j, value)
			}
		}
	}
}

func TestCartPoleDeterministicForSeed(t *testing.T) {
	first, err := CartPoleFactory{}.New(11)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer first.Close()
	second, err := CartPoleFactory{}.New(11)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer second.Close()

	obsA, err := first.Reset()
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	obsB, err := second.Reset()
	if err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	for i := range obsA {
		if obsA[i] != obsB[i] {
			t.Fatalf("reset observations diverge at %d: %v vs %v", i, obsA[i], obsB[i])
		}
	}

	for step := 0; step < 50; step++ {
		action := step % 2
		trA, errA := first.Step(action)
		trB, errB := second.Step(action)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("step %d errors diverge: %v vs %v", step, errA, errB)
		}
		if errA != nil {
			break
		}
		for i := range trA.Observation {
			if trA.Observation[i] != trB.Observation[i] {
				t.Fatalf("step %d observations diverge at %d", step, i)
			}
		}
		if trA.Done != trB.Done {
			t.Fatalf("step %d done flags diverge", step)
		}
		if trA.Done {
			break
		}
	}
}

func TestCartPoleConstantPushFails(t *testing.T) {
	env, err := CartPoleFactory{}.New(3)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer env.Close()

	if _, err := env.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	done := false
	for step := 0; step < 500; step++ {
		transition, err := env.Step(1)
		if err != nil {
			t.Fatalf("Step error at %d: %v", step, err)
		}
		if transition.Reward != 1.0 {
			t.Fatalf("reward = %v, want 1.0 per surviving step", transition.Reward)
		}
		if transition.Done {
			done = true
			break
		}
	}
	if !done {
		t.Fatal("constant push never terminated the episode")
	}

	if _, err := env.Step(1); !errors.Is(err, ErrEpisodeOver) {
		t.Fatalf("step after done error = %v, want ErrEpisodeOver", err)
	}
}

func TestCartPoleStepGuards(t *testing.T) {
	env, err := CartPoleFactory{}.New(5)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if _, err := env.Step(0); !errors.Is(err, ErrEpisodeOver) {
		t.Fatalf("step before reset error = %v, want ErrEpisodeOver", err)
	}

	if _, err := env.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if _, err := env.Step(2); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("invalid action error = %v, want ErrInvalidAction", err)
	}
	if _, err := env.Step(-1); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("negative action error = %v, want ErrInvalidAction", err)
	}

	if err := env.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := env.Reset(); !errors.Is(err, ErrClosed) {
		t.Fatalf("reset after close error = %v, want ErrClosed", err)
	}
	if _, err := env.Step(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("step after close error = %v, want ErrClosed", err)
	}
	if err := env.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("double close error = %v, want ErrClosed", err)
	}
}

func TestCartPoleDynamicsPushMovesCart(t *testing.T) {
	state := cartPoleState{}
	next := stepCartPole(state, cartPoleForce)
	if next.velocity <= 0 {
		t.Fatalf("push right should accelerate cart right, velocity = %v", next.velocity)
	}
	next = stepCartPole(state, -cartPoleForce)
	if next.velocity >= 0 {
		t.Fatalf("push left should accelerate cart left, velocity = %v", next.velocity)
	}
}

func TestCartPoleFailurePredicates(t *testing.T) {
	cases := []struct {
		name  string
		state cartPoleState
		want  bool
	}{
		{name: "upright centered", state: cartPoleState{}, want: false},
		{name: "off track right", state: cartPoleState{position: 2.5}, want: true},
		{name: "off track left", state: cartPoleState{position: -2.5}, want: true},
		{name: "tipped", state: cartPoleState{angle: 0.3}, want: true},
		{name: "within limits", state: cartPoleState{position: 1.0, angle: 0.1}, want: false},
	}
	for _, tc := range cases {
		if got := tc.state.failed(); got != tc.want {
			t.Errorf("%s: failed() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
