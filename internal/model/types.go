package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NetworkRecord is the persistent form of a fixed-topology feedforward
// network together with the fitness it was saved at.
type NetworkRecord struct {
	VersionedRecord
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Topology   []int         `json:"topology"`
	Activation string        `json:"activation"`
	Weights    [][][]float64 `json:"weights"`
	Biases     [][]float64   `json:"biases"`
	Fitness    float64       `json:"fitness"`
}

// RunRecord summarizes one training run and the configuration that produced
// it.
type RunRecord struct {
	VersionedRecord
	ID                string    `json:"id"`
	Scape             string    `json:"scape"`
	Topology          []int     `json:"topology"`
	Activation        string    `json:"activation"`
	PopulationSize    int       `json:"population_size"`
	Generations       int       `json:"generations"`
	MutationSigma     float64   `json:"mutation_sigma"`
	Episodes          int       `json:"episodes"`
	MaxEpisodeLength  int       `json:"max_episode_length"`
	CountStalledAtCap bool      `json:"count_stalled_at_cap"`
	Seed              int64     `json:"seed"`
	BestFitness       float64   `json:"best_fitness"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// ScapeSummary aggregates results for one scape across runs.
type ScapeSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Runs        int     `json:"runs"`
	BestFitness float64 `json:"best_fitness"`
	BestRunID   string  `json:"best_run_id"`
}
