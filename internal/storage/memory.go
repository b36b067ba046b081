package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"lingotask/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	episodes    map[string][]model.EpisodeRecord
	metrics     map[string]model.MetricsSnapshot
	vocabs      map[string]model.VocabularyRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.episodes = make(map[string][]model.EpisodeRecord)
	s.metrics = make(map[string]model.MetricsSnapshot)
	s.vocabs = make(map[string]model.VocabularyRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns runs ordered by creation time, then id.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveEpisodes(_ context.Context, runID string, episodes []model.EpisodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.episodes[runID] = copyEpisodes(episodes)
	return nil
}

func (s *MemoryStore) GetEpisodes(_ context.Context, runID string) ([]model.EpisodeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	episodes, ok := s.episodes[runID]
	if !ok {
		return nil, false, nil
	}
	return copyEpisodes(episodes), true, nil
}

func copyEpisodes(in []model.EpisodeRecord) []model.EpisodeRecord {
	out := make([]model.EpisodeRecord, len(in))
	for i, ep := range in {
		ep.Selection = append([]int(nil), ep.Selection...)
		out[i] = ep
	}
	return out
}

func (s *MemoryStore) SaveMetrics(_ context.Context, snapshot model.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.metrics[snapshot.RunID] = copyMetrics(snapshot)
	return nil
}

func (s *MemoryStore) GetMetrics(_ context.Context, runID string) (model.MetricsSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.metrics[runID]
	if !ok {
		return model.MetricsSnapshot{}, false, nil
	}
	return copyMetrics(snapshot), true, nil
}

func copyMetrics(in model.MetricsSnapshot) model.MetricsSnapshot {
	values := make(map[string]float64, len(in.Values))
	for k, v := range in.Values {
		values[k] = v
	}
	in.Values = values
	return in
}

func (s *MemoryStore) SaveVocabulary(_ context.Context, record model.VocabularyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	record.Words = append([]string(nil), record.Words...)
	s.vocabs[record.Fingerprint] = record
	return nil
}

func (s *MemoryStore) GetVocabulary(_ context.Context, fingerprint string) (model.VocabularyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.vocabs[fingerprint]
	if !ok {
		return model.VocabularyRecord{}, false, nil
	}
	record.Words = append([]string(nil), record.Words...)
	return record, true, nil
}
