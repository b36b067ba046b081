package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lingotask/internal/model"
)

func sampleEpisodes() []model.EpisodeRecord {
	return []model.EpisodeRecord{
		{ID: "ep-1", RunID: "run-123", Index: 0, Goal: "touch the red", Selection: []int{0, 1}, Success: true, Steps: 4, Return: -3},
		{ID: "ep-2", RunID: "run-123", Index: 1, Goal: "reach the blue, please", Selection: []int{1, 0}, Hindsight: true, HindsightInstruction: "touch the green", Steps: 6, Return: -6},
		{ID: "ep-3", RunID: "run-123", Index: 2, Goal: "push the green", Selection: []int{2, 0}, Timeout: true, Repaired: true, Steps: 50, Return: -50},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	episodes := sampleEpisodes()
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:    runID,
			Seed:     1,
			Episodes: len(episodes),
			Settings: model.TaskSettings{Kind: "reach", Mode: "color", NumObj: 2},
		},
		Episodes: episodes,
		Metrics:  map[string]float64{"ep_ctr": 3, "vocab_discovery_rate": 0.25},
		Summary:  Summarize(episodes),
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "episodes.json", "episodes.csv", "metrics.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "episodes.json", "episodes.csv", "metrics.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(artifacts.Config, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	gotEpisodes, ok, err := ReadEpisodes(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read episodes: ok=%t err=%v", ok, err)
	}
	if diff := cmp.Diff(episodes, gotEpisodes); diff != "" {
		t.Fatalf("episodes mismatch (-want +got):\n%s", diff)
	}

	metrics, ok, err := ReadMetrics(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read metrics: ok=%t err=%v", ok, err)
	}
	if metrics["ep_ctr"] != 3 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}

	summary, ok, err := ReadSummary(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read summary: ok=%t err=%v", ok, err)
	}
	if summary.Successes != 1 || summary.Episodes != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestEpisodesCSVRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	episodes := sampleEpisodes()
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{Config: RunConfig{RunID: "run-csv"}, Episodes: episodes}); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	rows, ok, err := ReadEpisodesCSV(baseDir, "run-csv")
	if err != nil || !ok {
		t.Fatalf("read csv: ok=%t err=%v", ok, err)
	}
	want := []EpisodeRow{
		{Index: 0, Goal: "touch the red", Success: true, Steps: 4, Return: -3},
		{Index: 1, Goal: "reach the blue, please", Hindsight: true, HindsightInstruction: "touch the green", Steps: 6, Return: -6},
		{Index: 2, Goal: "push the green", Repaired: true, Timeout: true, Steps: 50, Return: -50},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadEpisodesCSV(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing csv, ok=%t err=%v", ok, err)
	}
	if _, err := ExportRunArtifacts(baseDir, "missing", t.TempDir()); err == nil {
		t.Fatal("expected export of missing run to fail")
	}
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	baseDir := t.TempDir()

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list empty index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v", entries)
	}

	for _, entry := range []RunIndexEntry{
		{RunID: "run-1", Kind: "reach", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "run-2", Kind: "lift", CreatedAtUTC: "2026-01-03T00:00:00Z"},
		{RunID: "run-3", Kind: "push", CreatedAtUTC: "2026-01-01T00:00:00Z"},
	} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-1", Kind: "grasp", CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("replace run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	var ids []string
	for _, entry := range entries {
		ids = append(ids, entry.RunID)
	}
	if diff := cmp.Diff([]string{"run-2", "run-1", "run-3"}, ids); diff != "" {
		t.Fatalf("index order mismatch (-want +got):\n%s", diff)
	}
	if entries[1].Kind != "grasp" {
		t.Fatalf("expected replaced entry, got %+v", entries[1])
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestWriteRunConfigMismatch(t *testing.T) {
	baseDir := t.TempDir()
	if err := WriteRunConfig(baseDir, "run-a", RunConfig{RunID: "run-b"}); err == nil {
		t.Fatal("expected run id mismatch")
	}
	if err := WriteRunConfig(baseDir, " run-a ", RunConfig{Seed: 9}); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, ok, err := ReadRunConfig(baseDir, "run-a")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.RunID != "run-a" || cfg.Seed != 9 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
