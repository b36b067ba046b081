package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"lingotask/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

func EncodeEpisodes(episodes []model.EpisodeRecord) ([]byte, error) {
	if episodes == nil {
		episodes = []model.EpisodeRecord{}
	}
	return json.Marshal(episodes)
}

func DecodeEpisodes(data []byte) ([]model.EpisodeRecord, error) {
	var episodes []model.EpisodeRecord
	if err := json.Unmarshal(data, &episodes); err != nil {
		return nil, err
	}
	for _, ep := range episodes {
		if err := checkVersion(ep.VersionedRecord); err != nil {
			return nil, fmt.Errorf("episode %s: %w", ep.ID, err)
		}
	}
	return episodes, nil
}

func EncodeMetrics(m model.MetricsSnapshot) ([]byte, error) {
	return json.Marshal(m)
}

func DecodeMetrics(data []byte) (model.MetricsSnapshot, error) {
	var snapshot model.MetricsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.MetricsSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.MetricsSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeVocabulary(v model.VocabularyRecord) ([]byte, error) {
	return json.Marshal(v)
}

func DecodeVocabulary(data []byte) (model.VocabularyRecord, error) {
	var record model.VocabularyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.VocabularyRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.VocabularyRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
