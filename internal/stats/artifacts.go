package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lingotask/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	episodesFile    = "episodes.json"
	episodesCSVFile = "episodes.csv"
	metricsFile     = "metrics.json"
	summaryFile     = "summary.json"
)

var episodeColumns = []string{"index", "goal", "success", "hindsight", "hindsight_instruction", "repaired", "timeout", "steps", "return"}

type RunConfig struct {
	RunID     string             `json:"run_id"`
	Seed      int64              `json:"seed"`
	Episodes  int                `json:"episodes"`
	StoreKind string             `json:"store_kind,omitempty"`
	Settings  model.TaskSettings `json:"settings"`
}

type RunArtifacts struct {
	Config   RunConfig             `json:"config"`
	Episodes []model.EpisodeRecord `json:"episodes"`
	Metrics  map[string]float64    `json:"metrics"`
	Summary  Summary               `json:"summary"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	EnvID        string  `json:"env_id,omitempty"`
	Kind         string  `json:"kind"`
	Mode         string  `json:"mode"`
	NumObj       int     `json:"num_obj"`
	Seed         int64   `json:"seed"`
	Episodes     int     `json:"episodes"`
	SuccessRate  float64 `json:"success_rate"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	episodes := artifacts.Episodes
	if episodes == nil {
		episodes = []model.EpisodeRecord{}
	}
	metrics := artifacts.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, episodesFile), episodes); err != nil {
		return "", err
	}
	if err := writeEpisodesCSV(filepath.Join(runDir, episodesCSVFile), episodes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metricsFile), metrics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, episodesFile, episodesCSVFile, metricsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	summaryPath := filepath.Join(src, summaryFile)
	if _, err := os.Stat(summaryPath); err == nil {
		if err := copyFile(summaryPath, filepath.Join(dst, summaryFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadEpisodes(baseDir, runID string) ([]model.EpisodeRecord, bool, error) {
	var episodes []model.EpisodeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, episodesFile), &episodes)
	return episodes, ok, err
}

func ReadMetrics(baseDir, runID string) (map[string]float64, bool, error) {
	var metrics map[string]float64
	ok, err := readJSON(filepath.Join(baseDir, runID, metricsFile), &metrics)
	return metrics, ok, err
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

// EpisodeRow is one line of episodes.csv.
type EpisodeRow struct {
	Index                int
	Goal                 string
	Success              bool
	Hindsight            bool
	HindsightInstruction string
	Repaired             bool
	Timeout              bool
	Steps                int
	Return               float64
}

func writeEpisodesCSV(path string, episodes []model.EpisodeRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(episodeColumns); err != nil {
		return err
	}
	for _, ep := range episodes {
		if err := writer.Write([]string{
			strconv.Itoa(ep.Index),
			ep.Goal,
			strconv.FormatBool(ep.Success),
			strconv.FormatBool(ep.Hindsight),
			ep.HindsightInstruction,
			strconv.FormatBool(ep.Repaired),
			strconv.FormatBool(ep.Timeout),
			strconv.Itoa(ep.Steps),
			strconv.FormatFloat(ep.Return, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadEpisodesCSV(baseDir, runID string) ([]EpisodeRow, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, episodesCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []EpisodeRow{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(episodeColumns) {
		return nil, false, fmt.Errorf("episodes csv header must have %d columns, got %d", len(episodeColumns), len(header))
	}

	rows := make([]EpisodeRow, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		row, err := parseEpisodeRow(record)
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, row)
	}
	return rows, true, nil
}

func parseEpisodeRow(record []string) (EpisodeRow, error) {
	var (
		row  EpisodeRow
		err  error
		errs []error
	)
	row.Index, err = strconv.Atoi(record[0])
	errs = append(errs, err)
	row.Goal = record[1]
	row.Success, err = strconv.ParseBool(record[2])
	errs = append(errs, err)
	row.Hindsight, err = strconv.ParseBool(record[3])
	errs = append(errs, err)
	row.HindsightInstruction = record[4]
	row.Repaired, err = strconv.ParseBool(record[5])
	errs = append(errs, err)
	row.Timeout, err = strconv.ParseBool(record[6])
	errs = append(errs, err)
	row.Steps, err = strconv.Atoi(record[7])
	errs = append(errs, err)
	row.Return, err = strconv.ParseFloat(record[8], 64)
	errs = append(errs, err)
	for _, err := range errs {
		if err != nil {
			return EpisodeRow{}, fmt.Errorf("parse episode row %v: %w", record, err)
		}
	}
	return row, nil
}

func readJSON(path string, into any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
