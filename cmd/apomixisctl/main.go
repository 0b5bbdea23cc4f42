package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"apomixis/internal/config"
	"apomixis/internal/stats"
	"apomixis/internal/storage"
	api "apomixis/pkg/apomixis"
)

const defaultDBPath = "apomixis.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "scapes":
		return runScapes(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *storeKind {
	case "", "memory":
		fmt.Println("reset store=memory")
		return nil
	case "sqlite":
		info, err := os.Stat(*dbPath)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("reset store=sqlite db=%s (no database file)\n", *dbPath)
			return nil
		}
		if err != nil {
			return err
		}
		if err := os.Remove(*dbPath); err != nil {
			return err
		}
		fmt.Printf("reset store=sqlite db=%s freed=%s\n", *dbPath, humanize.Bytes(uint64(info.Size())))
		return nil
	default:
		return fmt.Errorf("unsupported store backend: %s", *storeKind)
	}
}

func runRun(ctx context.Context, args []string) error {
	defaults := config.Default().Train

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional INI profile path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	scapeName := fs.String("scape", defaults.Scape, "scape name")
	topologySpec := fs.String("topology", "", "layer widths, e.g. 4,16,2 (empty derives io from the scape)")
	activation := fs.String("activation", defaults.Activation, "hidden-layer activation")
	population := fs.Int("pop", defaults.PopulationSize, "population size")
	generations := fs.Int("gens", defaults.Generations, "generation count")
	sigma := fs.Float64("sigma", defaults.MutationSigma, "mutation sigma")
	episodes := fs.Int("episodes", defaults.Episodes, "episodes per evaluation")
	maxSteps := fs.Int("max-steps", defaults.MaxEpisodeLength, "step cap per episode")
	countStalled := fs.Bool("count-stalled", defaults.CountStalledAtCap, "credit capped episodes with the cap length")
	render := fs.Bool("render", defaults.Render, "render training rollouts when the scape supports it")
	workers := fs.Int("workers", defaults.Workers, "worker count")
	seed := fs.Int64("seed", defaults.Seed, "rng seed")
	printEvery := fs.Int("print-every", defaults.PrintEvery, "log every Nth generation")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress generation progress logs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var req api.RunRequest
	backend := *storeKind
	path := *dbPath
	if *configPath == "" {
		topology, err := parseTopology(*topologySpec)
		if err != nil {
			return err
		}
		req = api.RunRequest{
			RunID:             *runID,
			Scape:             *scapeName,
			Topology:          topology,
			Activation:        *activation,
			PopulationSize:    *population,
			Generations:       *generations,
			MutationSigma:     *sigma,
			Episodes:          *episodes,
			MaxEpisodeLength:  *maxSteps,
			CountStalledAtCap: *countStalled,
			Render:            *render,
			Workers:           *workers,
			Seed:              *seed,
			PrintEvery:        *printEvery,
		}
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		req = api.RunRequest{
			RunID:             *runID,
			Scape:             cfg.Train.Scape,
			Topology:          cfg.Train.Topology,
			Activation:        cfg.Train.Activation,
			PopulationSize:    cfg.Train.PopulationSize,
			Generations:       cfg.Train.Generations,
			MutationSigma:     cfg.Train.MutationSigma,
			Episodes:          cfg.Train.Episodes,
			MaxEpisodeLength:  cfg.Train.MaxEpisodeLength,
			CountStalledAtCap: cfg.Train.CountStalledAtCap,
			Render:            cfg.Train.Render,
			Workers:           cfg.Train.Workers,
			Seed:              cfg.Train.Seed,
			PrintEvery:        cfg.Train.PrintEvery,
		}
		if set["scape"] {
			req.Scape = *scapeName
		}
		if set["topology"] {
			topology, err := parseTopology(*topologySpec)
			if err != nil {
				return err
			}
			req.Topology = topology
		}
		if set["activation"] {
			req.Activation = *activation
		}
		if set["pop"] {
			req.PopulationSize = *population
		}
		if set["gens"] {
			req.Generations = *generations
		}
		if set["sigma"] {
			req.MutationSigma = *sigma
		}
		if set["episodes"] {
			req.Episodes = *episodes
		}
		if set["max-steps"] {
			req.MaxEpisodeLength = *maxSteps
		}
		if set["count-stalled"] {
			req.CountStalledAtCap = *countStalled
		}
		if set["render"] {
			req.Render = *render
		}
		if set["workers"] {
			req.Workers = *workers
		}
		if set["seed"] {
			req.Seed = *seed
		}
		if set["print-every"] {
			req.PrintEvery = *printEvery
		}
		if !set["store"] && cfg.Storage.Backend != "" {
			backend = cfg.Storage.Backend
		}
		if !set["db-path"] && cfg.Storage.Path != "" {
			path = cfg.Storage.Path
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *quiet {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client, err := api.New(api.Options{StoreKind: backend, DBPath: path, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run completed run_id=%s scape=%s topology=%s pop=%d gens=%d seed=%d\n",
		summary.RunID, summary.Scape, formatTopology(summary.Topology), req.PopulationSize, summary.Generations, req.Seed)
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	if len(summary.BestByGeneration) > 0 {
		runStats, err := stats.Summarize(summary.BestByGeneration)
		if err != nil {
			return err
		}
		fmt.Printf("best_fitness=%.6f best_generation=%d improvement=%.6f\n",
			runStats.BestFitness, runStats.BestGeneration, runStats.Improvement)
	}
	if summary.ChampionID != "" {
		fmt.Printf("champion_id=%s\n", summary.ChampionID)
	} else {
		fmt.Println("no champion recorded")
	}
	fmt.Printf("evaluations=%s elapsed=%s\n",
		humanize.Comma(int64(summary.Evaluations)), summary.Elapsed.Round(time.Millisecond))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(runs) > *limit {
		runs = runs[len(runs)-*limit:]
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s finished=%s scape=%s seed=%d pop=%d gens=%d sigma=%.4f best_fitness=%.6f\n",
			r.ID, humanize.Time(r.FinishedAt), r.Scape, r.Seed, r.PopulationSize, r.Generations, r.MutationSigma, r.BestFitness)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run")
	limit := fs.Int("limit", 0, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id or --latest")
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, api.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	summary, err := stats.Summarize(history)
	if err != nil {
		return err
	}
	fmt.Printf("generations=%d first=%.6f final=%.6f best=%.6f best_generation=%d mean=%.6f std=%.6f improvement=%.6f\n",
		summary.Generations,
		summary.FirstFitness,
		summary.FinalFitness,
		summary.BestFitness,
		summary.BestGeneration,
		summary.MeanFitness,
		summary.StdFitness,
		summary.Improvement,
	)
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the champion of the most recent run")
	episodes := fs.Int("episodes", 0, "re-evaluate over N episodes (0 skips)")
	maxSteps := fs.Int("max-steps", 0, "step cap per episode during re-evaluation (0 keeps the run's cap)")
	seed := fs.Int64("seed", 0, "environment seed for re-evaluation (0 keeps the run's seed)")
	render := fs.Bool("render", false, "render re-evaluation steps when the scape supports it")
	jsonOut := fs.Bool("json", false, "emit the champion record as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("champion requires --run-id or --latest")
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	champion, err := client.Champion(ctx, api.ChampionRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(champion.Record); err != nil {
			return err
		}
	} else {
		fmt.Printf("champion_id=%s run_id=%s topology=%s activation=%s fitness=%.6f\n",
			champion.Record.ID,
			champion.Record.RunID,
			formatTopology(champion.Record.Topology),
			champion.Record.Activation,
			champion.Record.Fitness,
		)
	}

	if *episodes > 0 {
		evaluation, err := client.EvaluateChampion(ctx, api.EvaluateChampionRequest{
			RunID:            *runID,
			Latest:           *latest,
			Episodes:         *episodes,
			MaxEpisodeLength: *maxSteps,
			Seed:             *seed,
			Render:           *render,
		})
		if err != nil {
			return err
		}
		fmt.Printf("re_evaluated episodes=%d fitness=%.6f stored_fitness=%.6f\n",
			evaluation.Episodes, evaluation.Fitness, evaluation.StoredFitness)
	}
	return nil
}

func runScapes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scapes", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit scapes as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	scapes, err := client.Scapes(ctx)
	if err != nil {
		return err
	}

	if *jsonOut {
		type scapeItem struct {
			Name         string  `json:"name"`
			Observations int     `json:"observations"`
			Actions      int     `json:"actions"`
			Runs         int     `json:"runs"`
			BestFitness  float64 `json:"best_fitness"`
			BestRunID    string  `json:"best_run_id,omitempty"`
		}
		items := make([]scapeItem, 0, len(scapes))
		for _, s := range scapes {
			items = append(items, scapeItem{
				Name:         s.Name,
				Observations: s.Observations,
				Actions:      s.Actions,
				Runs:         s.Runs,
				BestFitness:  s.BestFitness,
				BestRunID:    s.BestRunID,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, s := range scapes {
		bestRun := s.BestRunID
		if bestRun == "" {
			bestRun = "n/a"
		}
		fmt.Printf("scape=%s observations=%d actions=%d runs=%d best_fitness=%.6f best_run_id=%s\n",
			s.Name, s.Observations, s.Actions, s.Runs, s.BestFitness, bestRun)
	}
	return nil
}

func parseTopology(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == 'x' || r == ' '
	})
	layers := make([]int, 0, len(fields))
	for _, field := range fields {
		width, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid topology %q: %w", spec, err)
		}
		layers = append(layers, width)
	}
	return layers, nil
}

func formatTopology(layers []int) string {
	parts := make([]string, len(layers))
	for i, width := range layers {
		parts[i] = strconv.Itoa(width)
	}
	return strings.Join(parts, "x")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: apomixisctl <init|reset|run|runs|fitness|champion|scapes> [flags]", msg)
}
