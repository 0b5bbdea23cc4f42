package evo

import (
	"context"
	"fmt"

	"apomixis/internal/nn"
	"apomixis/internal/scape"
)

// Policy maps an observation to a discrete action.
type Policy interface {
	Act(observation []float64) (int, error)
}

// FitnessEvaluator scores a policy. Implementations must be safe for
// concurrent use by multiple goroutines.
type FitnessEvaluator interface {
	Evaluate(ctx context.Context, policy Policy) (float64, error)
}

// EvaluatorConfig configures episode rollouts against a scape.
type EvaluatorConfig struct {
	// Factory builds one fresh environment per Evaluate call.
	Factory scape.Factory

	// Episodes is the number of episodes averaged into one fitness value.
	Episodes int

	// MaxEpisodeLength caps each episode. An episode still running at the
	// cap counts toward fitness only when CountStalledAtCap is set;
	// otherwise it is excluded from the mean.
	MaxEpisodeLength int

	// CountStalledAtCap credits capped episodes with the cap length
	// instead of dropping them.
	CountStalledAtCap bool

	// Seed seeds every environment the evaluator builds, so all policies
	// face the same episode starts.
	Seed int64

	// Render draws each step when the environment supports it.
	Render bool

	// RecordSink, when set, receives every rolled-out episode.
	RecordSink func(scape.Episode)
}

// Evaluator rolls out episodes in a scape and scores a policy by its mean
// episode length. An episode ended by the environment contributes its step
// count; episodes still running at MaxEpisodeLength are excluded unless
// CountStalledAtCap is set. When no episode terminates, fitness is 0.
type Evaluator struct {
	cfg EvaluatorConfig
}

func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("scape factory is required")
	}
	if cfg.Episodes <= 0 {
		return nil, fmt.Errorf("episodes must be > 0, got %d", cfg.Episodes)
	}
	if cfg.MaxEpisodeLength <= 0 {
		return nil, fmt.Errorf("max episode length must be > 0, got %d", cfg.MaxEpisodeLength)
	}
	return &Evaluator{cfg: cfg}, nil
}

// Evaluate builds one environment, rolls out the configured number of
// episodes, and returns the mean episode length. The environment is closed
// on every exit path.
func (e *Evaluator) Evaluate(ctx context.Context, policy Policy) (fitness float64, err error) {
	if policy == nil {
		return 0, fmt.Errorf("policy is required")
	}

	raw, err := e.cfg.Factory.New(e.cfg.Seed)
	if err != nil {
		return 0, fmt.Errorf("create environment %s: %w", e.cfg.Factory.Name(), err)
	}
	var env scape.Environment = raw
	if e.cfg.Render || e.cfg.RecordSink != nil {
		env = scape.NewRecorder(raw, e.cfg.Render, e.cfg.RecordSink)
	}
	defer func() {
		if cerr := env.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close environment %s: %w", e.cfg.Factory.Name(), cerr)
		}
	}()

	lengths := make([]float64, 0, e.cfg.Episodes)
	for episode := 0; episode < e.cfg.Episodes; episode++ {
		length, terminated, rerr := e.rollout(ctx, env, policy)
		if rerr != nil {
			return 0, fmt.Errorf("episode %d: %w", episode, rerr)
		}
		if terminated {
			lengths = append(lengths, float64(length))
		} else if e.cfg.CountStalledAtCap {
			lengths = append(lengths, float64(e.cfg.MaxEpisodeLength))
		}
	}
	if len(lengths) == 0 {
		return 0, nil
	}
	mean, merr := nn.Avg(lengths)
	if merr != nil {
		return 0, merr
	}
	return mean, nil
}

// rollout runs one episode and reports how many steps it lasted and whether
// the environment ended it before the cap.
func (e *Evaluator) rollout(ctx context.Context, env scape.Environment, policy Policy) (int, bool, error) {
	observation, err := env.Reset()
	if err != nil {
		return 0, false, fmt.Errorf("reset: %w", err)
	}
	for step := 1; step <= e.cfg.MaxEpisodeLength; step++ {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		action, err := policy.Act(observation)
		if err != nil {
			return 0, false, fmt.Errorf("act: %w", err)
		}
		transition, err := env.Step(action)
		if err != nil {
			return 0, false, fmt.Errorf("step %d: %w", step, err)
		}
		if transition.Done {
			return step, true, nil
		}
		observation = transition.Observation
	}
	return e.cfg.MaxEpisodeLength, false, nil
}
