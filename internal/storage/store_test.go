package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lingotask/internal/model"
)

func newInitializedStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	mem := NewMemoryStore()
	if err := mem.Init(ctx); err != nil {
		t.Fatalf("init memory: %v", err)
	}

	sqlite := NewSQLiteStore(filepath.Join(t.TempDir(), "lingotask.db"))
	if err := sqlite.Init(ctx); err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{KindMemory: mem, KindSQLite: sqlite}
}

func testRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Seed:            3,
		Settings:        model.TaskSettings{Kind: "reach", Mode: "color", Layout: "product", NumObj: 2},
		Episodes:        1,
		CreatedAt:       createdAt,
	}
}

func TestStoreRunsOrdering(t *testing.T) {
	ctx := context.Background()
	for name, store := range newInitializedStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, run := range []model.RunRecord{
				testRun("run-b", "2026-01-02T00:00:00Z"),
				testRun("run-c", "2026-01-01T00:00:00Z"),
				testRun("run-a", "2026-01-02T00:00:00Z"),
			} {
				if err := store.SaveRun(ctx, run); err != nil {
					t.Fatalf("save run: %v", err)
				}
			}
			runs, err := store.ListRuns(ctx)
			if err != nil {
				t.Fatalf("list runs: %v", err)
			}
			var ids []string
			for _, run := range runs {
				ids = append(ids, run.ID)
			}
			if diff := cmp.Diff([]string{"run-c", "run-a", "run-b"}, ids); diff != "" {
				t.Fatalf("run order mismatch (-want +got):\n%s", diff)
			}

			got, ok, err := store.GetRun(ctx, "run-a")
			if err != nil || !ok {
				t.Fatalf("get run: ok=%t err=%v", ok, err)
			}
			if diff := cmp.Diff(testRun("run-a", "2026-01-02T00:00:00Z"), got); diff != "" {
				t.Fatalf("run mismatch (-want +got):\n%s", diff)
			}

			if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
				t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
			}
		})
	}
}

func TestStoreRunUpsert(t *testing.T) {
	ctx := context.Background()
	for name, store := range newInitializedStores(t) {
		t.Run(name, func(t *testing.T) {
			run := testRun("run-1", "2026-01-01T00:00:00Z")
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}
			run.Episodes = 9
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("resave run: %v", err)
			}
			runs, err := store.ListRuns(ctx)
			if err != nil {
				t.Fatalf("list runs: %v", err)
			}
			if len(runs) != 1 || runs[0].Episodes != 9 {
				t.Fatalf("expected one updated run, got %+v", runs)
			}
		})
	}
}

func TestStoreEpisodesRoundTrip(t *testing.T) {
	ctx := context.Background()
	episodes := []model.EpisodeRecord{
		{VersionedRecord: CurrentVersion(), ID: "ep-1", RunID: "run-1", Goal: "touch the red", Selection: []int{0, 2}, Success: true, Steps: 3, Return: -2},
		{VersionedRecord: CurrentVersion(), ID: "ep-2", RunID: "run-1", Index: 1, Goal: "push the blue", Selection: []int{2, 0}, Timeout: true, Steps: 50, Return: -50},
	}
	for name, store := range newInitializedStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveEpisodes(ctx, "run-1", episodes); err != nil {
				t.Fatalf("save episodes: %v", err)
			}
			got, ok, err := store.GetEpisodes(ctx, "run-1")
			if err != nil || !ok {
				t.Fatalf("get episodes: ok=%t err=%v", ok, err)
			}
			if diff := cmp.Diff(episodes, got); diff != "" {
				t.Fatalf("episodes mismatch (-want +got):\n%s", diff)
			}
			if _, ok, err := store.GetEpisodes(ctx, "run-2"); err != nil || ok {
				t.Fatalf("expected no episodes for unknown run, ok=%t err=%v", ok, err)
			}
		})
	}
}

func TestStoreMetricsRoundTrip(t *testing.T) {
	ctx := context.Background()
	snapshot := model.MetricsSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Values:          map[string]float64{"ep_ctr": 4, "vocab_discovery_rate": 0.5},
	}
	for name, store := range newInitializedStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveMetrics(ctx, snapshot); err != nil {
				t.Fatalf("save metrics: %v", err)
			}
			got, ok, err := store.GetMetrics(ctx, "run-1")
			if err != nil || !ok {
				t.Fatalf("get metrics: ok=%t err=%v", ok, err)
			}
			if diff := cmp.Diff(snapshot, got); diff != "" {
				t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreVocabularyRoundTrip(t *testing.T) {
	ctx := context.Background()
	record := model.VocabularyRecord{
		VersionedRecord: CurrentVersion(),
		Fingerprint:     "f00d",
		Words:           []string{"<pad>", "blue", "the", "touch"},
		MaxLen:          4,
	}
	for name, store := range newInitializedStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveVocabulary(ctx, record); err != nil {
				t.Fatalf("save vocabulary: %v", err)
			}
			got, ok, err := store.GetVocabulary(ctx, "f00d")
			if err != nil || !ok {
				t.Fatalf("get vocabulary: ok=%t err=%v", ok, err)
			}
			if diff := cmp.Diff(record, got); diff != "" {
				t.Fatalf("vocabulary mismatch (-want +got):\n%s", diff)
			}
			if _, ok, err := store.GetVocabulary(ctx, "beef"); err != nil || ok {
				t.Fatalf("expected missing vocabulary, ok=%t err=%v", ok, err)
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	in := []model.EpisodeRecord{{ID: "ep-1", Selection: []int{1, 2}}}
	if err := store.SaveEpisodes(ctx, "run-1", in); err != nil {
		t.Fatalf("save episodes: %v", err)
	}
	in[0].Selection[0] = 9

	got, _, err := store.GetEpisodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("get episodes: %v", err)
	}
	got[0].Selection[1] = 7

	again, _, err := store.GetEpisodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("get episodes: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, again[0].Selection); diff != "" {
		t.Fatalf("stored selection was mutated (-want +got):\n%s", diff)
	}
}

func TestStoresRequireInit(t *testing.T) {
	ctx := context.Background()
	if err := NewMemoryStore().SaveRun(ctx, testRun("r", "t")); err == nil {
		t.Fatal("expected memory store to require init")
	}
	if err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db")).SaveRun(ctx, testRun("r", "t")); err == nil {
		t.Fatal("expected sqlite store to require init")
	}
	if err := NewSQLiteStore("").Init(ctx); err == nil {
		t.Fatal("expected sqlite init without path to fail")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveRun(ctx, testRun("run-keep", "2026-01-01T00:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reinit: %v", err)
	}
	defer second.Close()
	if _, ok, err := second.GetRun(ctx, "run-keep"); err != nil || !ok {
		t.Fatalf("expected persisted run, ok=%t err=%v", ok, err)
	}
}
