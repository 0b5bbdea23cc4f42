package storage

import (
	"context"
	"testing"
	"time"

	"apomixis/internal/model"
)

func TestMemoryStoreChampionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.NetworkRecord{
		VersionedRecord: CurrentVersions(),
		ID:              "c1",
		RunID:           "run-1",
		Topology:        []int{2, 2},
		Activation:      "relu",
		Weights:         [][][]float64{{{0.5, -0.5}, {1.0, -1.0}}},
		Biases:          [][]float64{{0, 0}},
		Fitness:         88,
	}
	if err := store.SaveChampion(ctx, input); err != nil {
		t.Fatalf("save champion: %v", err)
	}

	output, ok, err := store.GetChampion(ctx, "run-1")
	if err != nil {
		t.Fatalf("get champion: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted champion")
	}
	if output.ID != "c1" || output.Fitness != 88 {
		t.Fatalf("unexpected champion: %+v", output)
	}

	_, ok, err = store.GetChampion(ctx, "run-missing")
	if err != nil {
		t.Fatalf("get missing champion: %v", err)
	}
	if ok {
		t.Fatal("expected missing champion to report absence")
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{10, 25, 60}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreFitnessHistoryIsolatesCaller(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{1, 2, 3}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	input[0] = 999

	output, _, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if output[0] != 1 {
		t.Fatalf("stored history shares backing array with caller: %+v", output)
	}

	output[1] = 999
	again, _, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history again: %v", err)
	}
	if again[1] != 2 {
		t.Fatalf("returned history shares backing array with store: %+v", again)
	}
}

func TestMemoryStoreRunRoundTripAndListOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	second := model.RunRecord{VersionedRecord: CurrentVersions(), ID: "run-b", Scape: "cart-pole", StartedAt: base.Add(time.Minute)}
	first := model.RunRecord{VersionedRecord: CurrentVersions(), ID: "run-a", Scape: "cart-pole", StartedAt: base}
	for _, run := range []model.RunRecord{second, first} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-a")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || loaded.ID != "run-a" {
		t.Fatalf("unexpected run: ok=%t %+v", ok, loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("runs out of order: %+v", runs)
	}
}

func TestMemoryStoreScapeSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.ScapeSummary{
		VersionedRecord: CurrentVersions(),
		Name:            "cart-pole",
		Description:     "4 observations, 2 actions",
		Runs:            1,
		BestFitness:     180,
		BestRunID:       "run-1",
	}
	if err := store.SaveScapeSummary(ctx, input); err != nil {
		t.Fatalf("save scape summary: %v", err)
	}

	output, ok, err := store.GetScapeSummary(ctx, "cart-pole")
	if err != nil {
		t.Fatalf("get scape summary: %v", err)
	}
	if !ok || output.BestFitness != 180 {
		t.Fatalf("unexpected summary: ok=%t %+v", ok, output)
	}

	other := input
	other.Name = "cart-centering"
	if err := store.SaveScapeSummary(ctx, other); err != nil {
		t.Fatalf("save second summary: %v", err)
	}
	summaries, err := store.ListScapeSummaries(ctx)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(summaries) != 2 || summaries[0].Name != "cart-centering" || summaries[1].Name != "cart-pole" {
		t.Fatalf("summaries out of order: %+v", summaries)
	}
}
