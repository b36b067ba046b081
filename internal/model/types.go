package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TaskSettings is the reproducible part of a run: with the seed it rebuilds
// the catalog, the vocabulary and every episode.
type TaskSettings struct {
	EnvID                string  `json:"env_id,omitempty"`
	Robot                string  `json:"robot,omitempty"`
	Kind                 string  `json:"kind"`
	Mode                 string  `json:"mode"`
	Layout               string  `json:"layout"`
	NumObj               int     `json:"num_obj"`
	ObjXYRange           float64 `json:"obj_xy_range"`
	ObjectSize           float64 `json:"object_size"`
	RewardType           string  `json:"reward_type"`
	UseHindsight         bool    `json:"use_hindsight_instructions"`
	HindsightProbability float64 `json:"hindsight_probability"`
	UseRepairs           bool    `json:"use_repairs"`
	UseBase              bool    `json:"use_base"`
	UseSynonyms          bool    `json:"use_synonyms"`
	MinGoalHeight        float64 `json:"min_goal_height"`
	MaxGoalHeight        float64 `json:"max_goal_height"`
	MaxEpisodeSteps      int     `json:"max_episode_steps"`
	ObsType              string  `json:"obs_type"`

	// Goal-conditioned runs only.
	DistanceThreshold float64 `json:"distance_threshold,omitempty"`
	GoalRange         float64 `json:"goal_range,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID        string       `json:"id"`
	Seed      int64        `json:"seed"`
	Settings  TaskSettings `json:"settings"`
	Episodes  int          `json:"episodes"`
	CreatedAt string       `json:"created_at"`
}

type EpisodeRecord struct {
	VersionedRecord
	ID                   string  `json:"id"`
	RunID                string  `json:"run_id"`
	Index                int     `json:"index"`
	Goal                 string  `json:"goal"`
	GoalIndex            int     `json:"goal_index"`
	Selection            []int   `json:"selection"`
	Success              bool    `json:"success"`
	Hindsight            bool    `json:"hindsight"`
	HindsightInstruction string  `json:"hindsight_instruction,omitempty"`
	Repaired             bool    `json:"repaired"`
	Timeout              bool    `json:"timeout"`
	Steps                int     `json:"steps"`
	Return               float64 `json:"return"`
	FinalDistance        float64 `json:"final_distance,omitempty"`
}

type MetricsSnapshot struct {
	VersionedRecord
	RunID  string             `json:"run_id"`
	Values map[string]float64 `json:"values"`
}

// VocabularyRecord is keyed by the fingerprint of the settings that produced it.
type VocabularyRecord struct {
	VersionedRecord
	Fingerprint string   `json:"fingerprint"`
	Words       []string `json:"words"`
	MaxLen      int      `json:"max_len"`
}
