package storage

import (
	"context"

	"lingotask/internal/model"
)

// Store persists runs, their episodes and metrics, and vocabularies.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeRecord) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, bool, error)
	SaveMetrics(ctx context.Context, snapshot model.MetricsSnapshot) error
	GetMetrics(ctx context.Context, runID string) (model.MetricsSnapshot, bool, error)
	SaveVocabulary(ctx context.Context, record model.VocabularyRecord) error
	GetVocabulary(ctx context.Context, fingerprint string) (model.VocabularyRecord, bool, error)
}
