package apomixis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"apomixis/internal/config"
	"apomixis/internal/evo"
	"apomixis/internal/model"
	"apomixis/internal/nn"
	"apomixis/internal/scape"
	"apomixis/internal/stats"
	"apomixis/internal/storage"
)

const (
	defaultDBPath      = "apomixis.db"
	defaultHiddenUnits = 16
)

// ErrNoChampion reports that the requested run never produced a champion.
var ErrNoChampion = errors.New("no champion recorded")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store       storage.Store
	logger      *slog.Logger
	initialized bool
}

type RunRequest struct {
	RunID      string
	Scape      string
	Topology   []int
	Activation string

	PopulationSize int

	// Generations is taken as given: zero archives an empty run with no
	// champion.
	Generations int

	// MutationSigma is taken as given: zero evolves identical clones.
	MutationSigma float64

	Episodes          int
	MaxEpisodeLength  int
	CountStalledAtCap bool

	// Render draws every training rollout when the scape supports it. It
	// never changes fitness.
	Render bool

	Workers    int
	Seed       int64
	PrintEvery int
}

type RunSummary struct {
	RunID            string
	Scape            string
	Topology         []int
	Generations      int
	BestByGeneration []float64
	BestFitness      float64
	ChampionID       string
	Evaluations      int
	Elapsed          time.Duration
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ChampionRequest struct {
	RunID  string
	Latest bool
}

type ChampionItem struct {
	Record  model.NetworkRecord
	Network *nn.Network
}

type EvaluateChampionRequest struct {
	RunID            string
	Latest           bool
	Episodes         int
	MaxEpisodeLength int
	Seed             int64
	Render           bool
}

type EvaluateChampionSummary struct {
	RunID         string
	Scape         string
	Episodes      int
	Fitness       float64
	StoredFitness float64
}

type ScapeItem struct {
	Name         string
	Observations int
	Actions      int
	Runs         int
	BestFitness  float64
	BestRunID    string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	defaults := config.Default().Train
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Scape == "" {
		req.Scape = defaults.Scape
	}
	factory, err := scape.GetFactory(req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	if len(req.Topology) == 0 {
		req.Topology = []int{factory.ObservationSize(), defaultHiddenUnits, factory.ActionCount()}
	}
	if req.Activation == "" {
		req.Activation = defaults.Activation
	}
	if req.PopulationSize <= 0 {
		req.PopulationSize = defaults.PopulationSize
	}
	if req.Episodes <= 0 {
		req.Episodes = defaults.Episodes
	}
	if req.MaxEpisodeLength <= 0 {
		req.MaxEpisodeLength = defaults.MaxEpisodeLength
	}
	if req.Workers <= 0 {
		req.Workers = defaults.Workers
	}
	if req.Seed == 0 {
		req.Seed = defaults.Seed
	}
	if req.PrintEvery <= 0 {
		req.PrintEvery = defaults.PrintEvery
	}

	topology := nn.Topology(req.Topology)
	if err := topology.Validate(); err != nil {
		return RunSummary{}, fmt.Errorf("topology: %w", err)
	}
	if topology.In() != factory.ObservationSize() {
		return RunSummary{}, fmt.Errorf("scape %s emits %d observations, topology accepts %d", req.Scape, factory.ObservationSize(), topology.In())
	}
	if topology.Out() != factory.ActionCount() {
		return RunSummary{}, fmt.Errorf("scape %s accepts %d actions, topology emits %d", req.Scape, factory.ActionCount(), topology.Out())
	}

	evaluator, err := evo.NewEvaluator(evo.EvaluatorConfig{
		Factory:           factory,
		Episodes:          req.Episodes,
		MaxEpisodeLength:  req.MaxEpisodeLength,
		CountStalledAtCap: req.CountStalledAtCap,
		Seed:              req.Seed,
		Render:            req.Render,
	})
	if err != nil {
		return RunSummary{}, err
	}
	trainer, err := evo.NewTrainer(evo.TrainerConfig{
		Evaluator:      evaluator,
		Topology:       topology,
		Activation:     req.Activation,
		PopulationSize: req.PopulationSize,
		Generations:    req.Generations,
		MutationSigma:  req.MutationSigma,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Logger:         c.logger,
		ProgressEvery:  req.PrintEvery,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}

	startedAt := time.Now().UTC()
	result, err := trainer.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	finishedAt := time.Now().UTC()

	summary := RunSummary{
		RunID:            req.RunID,
		Scape:            req.Scape,
		Topology:         topology.Clone(),
		Generations:      req.Generations,
		BestByGeneration: result.BestByGeneration,
		Evaluations:      req.PopulationSize * req.Generations,
		Elapsed:          finishedAt.Sub(startedAt),
	}

	if result.Champion != nil {
		runStats, err := stats.Summarize(result.BestByGeneration)
		if err != nil {
			return RunSummary{}, err
		}
		summary.BestFitness = runStats.BestFitness
		summary.ChampionID = uuid.NewString()
		champion := model.NetworkRecord{
			VersionedRecord: storage.CurrentVersions(),
			ID:              summary.ChampionID,
			RunID:           req.RunID,
			Topology:        append([]int(nil), req.Topology...),
			Activation:      result.Champion.ActivationName(),
			Weights:         result.Champion.Weights(),
			Biases:          result.Champion.Biases(),
			Fitness:         result.BestByGeneration[len(result.BestByGeneration)-1],
		}
		if err := c.store.SaveChampion(ctx, champion); err != nil {
			return RunSummary{}, err
		}
	}

	if err := c.store.SaveFitnessHistory(ctx, req.RunID, result.BestByGeneration); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord:   storage.CurrentVersions(),
		ID:                req.RunID,
		Scape:             req.Scape,
		Topology:          append([]int(nil), req.Topology...),
		Activation:        req.Activation,
		PopulationSize:    req.PopulationSize,
		Generations:       req.Generations,
		MutationSigma:     req.MutationSigma,
		Episodes:          req.Episodes,
		MaxEpisodeLength:  req.MaxEpisodeLength,
		CountStalledAtCap: req.CountStalledAtCap,
		Seed:              req.Seed,
		BestFitness:       summary.BestFitness,
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
	}); err != nil {
		return RunSummary{}, err
	}

	scapeSummary, ok, err := c.store.GetScapeSummary(ctx, req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	if !ok {
		scapeSummary = model.ScapeSummary{
			Name:        req.Scape,
			Description: fmt.Sprintf("%d observations, %d actions", factory.ObservationSize(), factory.ActionCount()),
		}
	}
	scapeSummary.VersionedRecord = storage.CurrentVersions()
	scapeSummary.Runs++
	if summary.ChampionID != "" && (scapeSummary.BestRunID == "" || summary.BestFitness > scapeSummary.BestFitness) {
		scapeSummary.BestFitness = summary.BestFitness
		scapeSummary.BestRunID = req.RunID
	}
	if err := c.store.SaveScapeSummary(ctx, scapeSummary); err != nil {
		return RunSummary{}, err
	}

	return summary, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID(ctx)
		if err != nil {
			return nil, err
		}
		runID = latest
	}
	if runID == "" {
		return nil, errors.New("fitness history requires run id or latest")
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Champion(ctx context.Context, req ChampionRequest) (ChampionItem, error) {
	if req.RunID != "" && req.Latest {
		return ChampionItem{}, errors.New("use either run id or latest")
	}
	if err := c.ensureInit(ctx); err != nil {
		return ChampionItem{}, err
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID(ctx)
		if err != nil {
			return ChampionItem{}, err
		}
		runID = latest
	}
	if runID == "" {
		return ChampionItem{}, errors.New("champion requires run id or latest")
	}

	record, ok, err := c.store.GetChampion(ctx, runID)
	if err != nil {
		return ChampionItem{}, err
	}
	if !ok {
		return ChampionItem{}, fmt.Errorf("%w for run id: %s", ErrNoChampion, runID)
	}
	network, err := nn.NewNetworkFromParameters(nn.Topology(record.Topology), record.Activation, record.Weights, record.Biases)
	if err != nil {
		return ChampionItem{}, fmt.Errorf("rebuild champion %s: %w", record.ID, err)
	}
	return ChampionItem{Record: record, Network: network}, nil
}

func (c *Client) EvaluateChampion(ctx context.Context, req EvaluateChampionRequest) (EvaluateChampionSummary, error) {
	if req.RunID != "" && req.Latest {
		return EvaluateChampionSummary{}, errors.New("use either run id or latest")
	}
	if err := c.ensureInit(ctx); err != nil {
		return EvaluateChampionSummary{}, err
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID(ctx)
		if err != nil {
			return EvaluateChampionSummary{}, err
		}
		runID = latest
	}
	if runID == "" {
		return EvaluateChampionSummary{}, errors.New("evaluate requires run id or latest")
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return EvaluateChampionSummary{}, err
	}
	if !ok {
		return EvaluateChampionSummary{}, fmt.Errorf("run not found for run id: %s", runID)
	}
	champion, err := c.Champion(ctx, ChampionRequest{RunID: runID})
	if err != nil {
		return EvaluateChampionSummary{}, err
	}
	factory, err := scape.GetFactory(run.Scape)
	if err != nil {
		return EvaluateChampionSummary{}, err
	}

	episodes := req.Episodes
	if episodes <= 0 {
		episodes = run.Episodes
	}
	maxLength := req.MaxEpisodeLength
	if maxLength <= 0 {
		maxLength = run.MaxEpisodeLength
	}
	seed := req.Seed
	if seed == 0 {
		seed = run.Seed
	}

	evaluator, err := evo.NewEvaluator(evo.EvaluatorConfig{
		Factory:           factory,
		Episodes:          episodes,
		MaxEpisodeLength:  maxLength,
		CountStalledAtCap: run.CountStalledAtCap,
		Seed:              seed,
		Render:            req.Render,
	})
	if err != nil {
		return EvaluateChampionSummary{}, err
	}
	fitness, err := evaluator.Evaluate(ctx, champion.Network)
	if err != nil {
		return EvaluateChampionSummary{}, err
	}
	return EvaluateChampionSummary{
		RunID:         runID,
		Scape:         run.Scape,
		Episodes:      episodes,
		Fitness:       fitness,
		StoredFitness: champion.Record.Fitness,
	}, nil
}

func (c *Client) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx)
}

func (c *Client) Scapes(ctx context.Context) ([]ScapeItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	names := scape.ListScapes()
	registered := make(map[string]bool, len(names))
	items := make([]ScapeItem, 0, len(names))
	for _, name := range names {
		registered[name] = true
		factory, err := scape.GetFactory(name)
		if err != nil {
			return nil, err
		}
		item := ScapeItem{
			Name:         name,
			Observations: factory.ObservationSize(),
			Actions:      factory.ActionCount(),
		}
		summary, ok, err := c.store.GetScapeSummary(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			item.Runs = summary.Runs
			item.BestFitness = summary.BestFitness
			item.BestRunID = summary.BestRunID
		}
		items = append(items, item)
	}

	// Summaries archived under names with no registered factory (a store
	// written by another build) are still listed, without IO sizes.
	summaries, err := c.store.ListScapeSummaries(ctx)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if registered[summary.Name] {
			continue
		}
		items = append(items, ScapeItem{
			Name:        summary.Name,
			Runs:        summary.Runs,
			BestFitness: summary.BestFitness,
			BestRunID:   summary.BestRunID,
		})
	}
	return items, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) latestRunID(ctx context.Context) (string, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}
