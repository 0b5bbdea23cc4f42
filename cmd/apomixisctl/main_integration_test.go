//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandsShareSQLiteArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apomixis.db")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"-store", "sqlite",
			"-db-path", dbPath,
			"-run-id", "run-it",
			"-scape", "cart-pole",
			"-pop", "4",
			"-gens", "2",
			"-episodes", "2",
			"-max-steps", "15",
			"-workers", "2",
			"-seed", "11",
			"-print-every", "1",
			"-quiet",
		})
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out, "run completed run_id=run-it") {
		t.Fatalf("unexpected run output:\n%s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"runs", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(out, "run_id=run-it") {
		t.Fatalf("archived run missing from listing:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"fitness", "-run-id", "run-it", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if !strings.Contains(out, "generation=1 best_fitness=") || !strings.Contains(out, "generations=2 first=") {
		t.Fatalf("unexpected fitness output:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"champion", "-latest", "-episodes", "2", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("champion command: %v", err)
	}
	if !strings.Contains(out, "champion_id=") || !strings.Contains(out, "run_id=run-it") {
		t.Fatalf("unexpected champion output:\n%s", out)
	}
	if !strings.Contains(out, "re_evaluated episodes=2") || !strings.Contains(out, "stored_fitness=") {
		t.Fatalf("expected re-evaluation line:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"scapes", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("scapes command: %v", err)
	}
	if !strings.Contains(out, "scape=cart-pole") || !strings.Contains(out, "runs=1") {
		t.Fatalf("unexpected scapes output:\n%s", out)
	}
	if !strings.Contains(out, "best_run_id=run-it") {
		t.Fatalf("best run missing from scapes output:\n%s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"reset", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if !strings.Contains(out, "freed=") {
		t.Fatalf("expected freed size in reset output:\n%s", out)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("expected database file removed, stat err=%v", err)
	}
}

func TestInitCommandCreatesSQLiteDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apomixis.db")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"init", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("init command: %v", err)
	}
	if !strings.Contains(out, "initialized store=sqlite") {
		t.Fatalf("unexpected init output:\n%s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}
}
