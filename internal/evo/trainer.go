package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"apomixis/internal/nn"
)

// ScoredNetwork pairs a network with its measured fitness.
type ScoredNetwork struct {
	Network *nn.Network
	Fitness float64
}

// TrainerConfig configures a training run.
type TrainerConfig struct {
	// Evaluator scores each network once per generation.
	Evaluator FitnessEvaluator

	// Topology is the layer layout shared by every network in the run.
	Topology nn.Topology

	// Activation names the hidden-layer activation. Empty selects the
	// default.
	Activation string

	// PopulationSize is the number of networks per generation, elite
	// included.
	PopulationSize int

	// Generations is the number of evaluate-select-mutate rounds. Zero is
	// legal and produces an empty run.
	Generations int

	// MutationSigma scales the Gaussian noise added when cloning the
	// elite.
	MutationSigma float64

	// Workers bounds concurrent evaluations. Values below 1 mean a single
	// worker.
	Workers int

	// Seed drives network initialization and mutation. Runs with equal
	// configuration and seed produce identical results for any worker
	// count.
	Seed int64

	// Logger receives generation progress. Nil selects slog.Default.
	Logger *slog.Logger

	// ProgressEvery logs every Nth generation. Values below 1 log every
	// generation.
	ProgressEvery int
}

// RunResult is the outcome of a training run.
type RunResult struct {
	// BestByGeneration holds the elite fitness of each generation in
	// order.
	BestByGeneration []float64

	// Champion is the elite of the final generation, nil when no
	// generation ran.
	Champion *nn.Network

	// FinalPopulation holds the last generation's scored networks in
	// population order.
	FinalPopulation []ScoredNetwork
}

// Trainer evolves a population of fixed-topology networks. Each generation
// every network is evaluated, the best one survives unchanged, and the rest
// of the next generation is filled with mutated clones of it.
type Trainer struct {
	cfg    TrainerConfig
	rng    *rand.Rand
	logger *slog.Logger
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if err := cfg.Topology.Validate(); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	if cfg.PopulationSize < 1 {
		return nil, fmt.Errorf("population size must be >= 1, got %d", cfg.PopulationSize)
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0, got %d", cfg.Generations)
	}
	if cfg.MutationSigma < 0 || math.IsNaN(cfg.MutationSigma) || math.IsInf(cfg.MutationSigma, 0) {
		return nil, fmt.Errorf("mutation sigma must be finite and >= 0, got %v", cfg.MutationSigma)
	}
	if cfg.Activation == "" {
		cfg.Activation = nn.DefaultActivation
	}
	if _, err := nn.GetActivation(cfg.Activation); err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}, nil
}

// Run executes the configured number of generations and returns the fitness
// history and final champion. With zero generations the result carries no
// history and a nil champion.
func (t *Trainer) Run(ctx context.Context) (RunResult, error) {
	population, err := t.seedPopulation()
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		BestByGeneration: make([]float64, 0, t.cfg.Generations),
	}
	for generation := 0; generation < t.cfg.Generations; generation++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		scored, err := t.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", generation, err)
		}

		elite := scored[0]
		for _, candidate := range scored[1:] {
			if candidate.Fitness > elite.Fitness {
				elite = candidate
			}
		}
		result.BestByGeneration = append(result.BestByGeneration, elite.Fitness)
		result.Champion = elite.Network
		result.FinalPopulation = scored

		if (generation+1)%t.cfg.ProgressEvery == 0 || generation == t.cfg.Generations-1 {
			t.logger.Info("generation complete",
				slog.Int("generation", generation+1),
				slog.Float64("best_fitness", elite.Fitness),
				slog.Float64("mean_fitness", meanFitness(scored)),
			)
		}

		if generation+1 < t.cfg.Generations {
			population, err = t.repopulate(elite.Network)
			if err != nil {
				return RunResult{}, fmt.Errorf("generation %d: %w", generation, err)
			}
		}
	}
	return result, nil
}

func (t *Trainer) seedPopulation() ([]*nn.Network, error) {
	population := make([]*nn.Network, t.cfg.PopulationSize)
	for i := range population {
		network, err := nn.NewNetworkWithActivation(t.cfg.Topology, t.cfg.Activation, t.rng)
		if err != nil {
			return nil, fmt.Errorf("seed population: %w", err)
		}
		population[i] = network
	}
	return population, nil
}

// repopulate builds the next generation: the elite itself in slot 0 and
// mutated clones of it everywhere else. Mutation runs on the trainer
// goroutine so the rng stream does not depend on worker scheduling.
func (t *Trainer) repopulate(elite *nn.Network) ([]*nn.Network, error) {
	next := make([]*nn.Network, t.cfg.PopulationSize)
	next[0] = elite
	for i := 1; i < t.cfg.PopulationSize; i++ {
		clone, err := elite.MutatedClone(t.cfg.MutationSigma, t.rng)
		if err != nil {
			return nil, fmt.Errorf("mutate clone: %w", err)
		}
		next[i] = clone
	}
	return next, nil
}

func (t *Trainer) evaluatePopulation(ctx context.Context, population []*nn.Network) ([]ScoredNetwork, error) {
	type job struct {
		idx     int
		network *nn.Network
	}
	type result struct {
		idx    int
		scored ScoredNetwork
		err    error
	}

	workerCount := t.cfg.Workers
	if workerCount > len(population) {
		workerCount = len(population)
	}
	jobs := make(chan job)
	results := make(chan result, len(population))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				fitness, err := t.cfg.Evaluator.Evaluate(ctx, j.network)
				if err != nil {
					results <- result{idx: j.idx, err: fmt.Errorf("evaluate network %d: %w", j.idx, err)}
					continue
				}
				results <- result{idx: j.idx, scored: ScoredNetwork{Network: j.network, Fitness: fitness}}
			}
		}()
	}
	for i := range population {
		jobs <- job{idx: i, network: population[i]}
	}
	close(jobs)
	wg.Wait()
	close(results)

	scored := make([]ScoredNetwork, len(population))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		scored[res.idx] = res.scored
	}
	return scored, nil
}

func meanFitness(scored []ScoredNetwork) float64 {
	total := 0.0
	for _, s := range scored {
		total += s.Fitness
	}
	return total / float64(len(scored))
}
