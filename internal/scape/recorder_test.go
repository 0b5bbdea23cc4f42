package scape

import (
	"errors"
	"testing"
)

// scriptedEnv terminates every episode after doneAfter steps and counts
// lifecycle calls.
type scriptedEnv struct {
	doneAfter  int
	step       int
	resets     int
	closes     int
	renders    int
	renderable bool
	stepErr    error
}

func (e *scriptedEnv) Reset() ([]float64, error) {
	e.resets++
	e.step = 0
	return []float64{0}, nil
}

func (e *scriptedEnv) Step(action int) (Transition, error) {
	if e.stepErr != nil {
		return Transition{}, e.stepErr
	}
	e.step++
	return Transition{
		Observation: []float64{float64(e.step)},
		Reward:      1.0,
		Done:        e.step >= e.doneAfter,
	}, nil
}

func (e *scriptedEnv) Close() error {
	e.closes++
	return nil
}

type renderableEnv struct {
	scriptedEnv
}

func (e *renderableEnv) Render() error {
	e.renders++
	return nil
}

func TestRecorderCapturesEpisodes(t *testing.T) {
	inner := &scriptedEnv{doneAfter: 3}
	var episodes []Episode
	recorder := NewRecorder(inner, false, func(ep Episode) { episodes = append(episodes, ep) })

	for episode := 0; episode < 2; episode++ {
		if _, err := recorder.Reset(); err != nil {
			t.Fatalf("Reset error: %v", err)
		}
		for {
			transition, err := recorder.Step(0)
			if err != nil {
				t.Fatalf("Step error: %v", err)
			}
			if transition.Done {
				break
			}
		}
	}

	if len(episodes) != 2 {
		t.Fatalf("captured %d episodes, want 2", len(episodes))
	}
	for i, ep := range episodes {
		if ep.Length != 3 || len(ep.Steps) != 3 {
			t.Fatalf("episode %d length = %d steps = %d, want 3", i, ep.Length, len(ep.Steps))
		}
		if ep.Reward != 3.0 {
			t.Fatalf("episode %d reward = %v, want 3.0", i, ep.Reward)
		}
		if !ep.Steps[2].Done {
			t.Fatalf("episode %d final step not marked done", i)
		}
		if ep.Steps[1].Observation[0] != 2 {
			t.Fatalf("episode %d step 1 observation = %v", i, ep.Steps[1].Observation)
		}
	}
}

func TestRecorderFlushesTruncatedEpisodeOnClose(t *testing.T) {
	inner := &scriptedEnv{doneAfter: 100}
	var episodes []Episode
	recorder := NewRecorder(inner, false, func(ep Episode) { episodes = append(episodes, ep) })

	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	for step := 0; step < 4; step++ {
		if _, err := recorder.Step(0); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}
	if len(episodes) != 0 {
		t.Fatalf("sink called before episode finished: %d", len(episodes))
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Length != 4 {
		t.Fatalf("truncated episode not flushed on close: %+v", episodes)
	}
	if inner.closes != 1 {
		t.Fatalf("inner closed %d times, want 1", inner.closes)
	}
}

func TestRecorderFlushesTruncatedEpisodeOnReset(t *testing.T) {
	inner := &scriptedEnv{doneAfter: 100}
	var episodes []Episode
	recorder := NewRecorder(inner, false, func(ep Episode) { episodes = append(episodes, ep) })

	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if _, err := recorder.Step(0); err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("second Reset error: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Length != 1 {
		t.Fatalf("truncated episode not flushed on reset: %+v", episodes)
	}
}

func TestRecorderRendersWhenSupported(t *testing.T) {
	inner := &renderableEnv{scriptedEnv: scriptedEnv{doneAfter: 5}}
	recorder := NewRecorder(inner, true, nil)

	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	for step := 0; step < 3; step++ {
		if _, err := recorder.Step(0); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}
	if inner.renders != 3 {
		t.Fatalf("rendered %d times, want 3", inner.renders)
	}
}

func TestRecorderSkipsRenderWhenUnsupported(t *testing.T) {
	inner := &scriptedEnv{doneAfter: 5}
	recorder := NewRecorder(inner, true, nil)

	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if _, err := recorder.Step(0); err != nil {
		t.Fatalf("Step error: %v", err)
	}
}

func TestRecorderPassesThroughErrors(t *testing.T) {
	wantErr := errors.New("scripted failure")
	inner := &scriptedEnv{doneAfter: 5, stepErr: wantErr}
	var episodes []Episode
	recorder := NewRecorder(inner, false, func(ep Episode) { episodes = append(episodes, ep) })

	if _, err := recorder.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if _, err := recorder.Step(0); !errors.Is(err, wantErr) {
		t.Fatalf("Step error = %v, want scripted failure", err)
	}
	if len(episodes) != 0 {
		t.Fatalf("failed step must not be recorded: %+v", episodes)
	}
}
