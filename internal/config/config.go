package config

import (
	"fmt"
	"math"
	"runtime"

	"gopkg.in/ini.v1"
)

// TrainConfig holds every knob of a training run.
type TrainConfig struct {
	Scape             string  `ini:"scape"`
	Topology          []int   `ini:"topology" delim:" "`
	Activation        string  `ini:"activation"`
	PopulationSize    int     `ini:"population_size"`
	Generations       int     `ini:"generations"`
	MutationSigma     float64 `ini:"mutation_sigma"`
	Episodes          int     `ini:"episodes"`
	MaxEpisodeLength  int     `ini:"max_episode_length"`
	CountStalledAtCap bool    `ini:"count_stalled_at_cap"`
	Render            bool    `ini:"render"`
	Workers           int     `ini:"workers"`
	Seed              int64   `ini:"seed"`
	PrintEvery        int     `ini:"print_every"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `ini:"backend"`
	Path    string `ini:"path"`
}

type Config struct {
	Train   TrainConfig
	Storage StorageConfig
}

// Default returns the configuration used when no file or flags override it.
func Default() Config {
	return Config{
		Train: TrainConfig{
			Scape:            "cart-pole",
			Topology:         []int{4, 16, 2},
			Activation:       "relu",
			PopulationSize:   50,
			Generations:      500,
			MutationSigma:    0.02,
			Episodes:         10,
			MaxEpisodeLength: 200,
			Workers:          runtime.NumCPU(),
			Seed:             42,
			PrintEvery:       10,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
	}
}

// Load reads an INI file and layers it over the defaults. Keys absent from
// the file keep their default values.
func Load(path string) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return Config{}, fmt.Errorf("load config file %s: %w", path, err)
	}

	config := Default()
	if err := file.Section("train").MapTo(&config.Train); err != nil {
		return Config{}, fmt.Errorf("map [train] section: %w", err)
	}
	if err := file.Section("storage").MapTo(&config.Storage); err != nil {
		return Config{}, fmt.Errorf("map [storage] section: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Train.Scape == "" {
		return fmt.Errorf("scape is required")
	}
	if len(c.Train.Topology) < 2 {
		return fmt.Errorf("topology requires at least input and output layers, got %d", len(c.Train.Topology))
	}
	for i, width := range c.Train.Topology {
		if width <= 0 {
			return fmt.Errorf("topology layer %d width must be > 0, got %d", i, width)
		}
	}
	if c.Train.Activation == "" {
		return fmt.Errorf("activation is required")
	}
	if c.Train.PopulationSize < 1 {
		return fmt.Errorf("population size must be >= 1, got %d", c.Train.PopulationSize)
	}
	if c.Train.Generations < 0 {
		return fmt.Errorf("generations must be >= 0, got %d", c.Train.Generations)
	}
	if c.Train.MutationSigma < 0 || math.IsNaN(c.Train.MutationSigma) || math.IsInf(c.Train.MutationSigma, 0) {
		return fmt.Errorf("mutation sigma must be finite and >= 0, got %v", c.Train.MutationSigma)
	}
	if c.Train.Episodes <= 0 {
		return fmt.Errorf("episodes must be > 0, got %d", c.Train.Episodes)
	}
	if c.Train.MaxEpisodeLength <= 0 {
		return fmt.Errorf("max episode length must be > 0, got %d", c.Train.MaxEpisodeLength)
	}
	if c.Train.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Train.Workers)
	}
	if c.Train.PrintEvery < 1 {
		return fmt.Errorf("print every must be >= 1, got %d", c.Train.PrintEvery)
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite backend requires a path")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Storage.Backend)
	}
	return nil
}
