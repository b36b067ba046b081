package lingotask

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lingotask/internal/env"
	"lingotask/internal/model"
	"lingotask/internal/rollout"
	"lingotask/internal/stats"
	"lingotask/internal/storage"
	"lingotask/internal/task"
	"lingotask/internal/taskid"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "lingotask.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *zap.Logger
}

type Client struct {
	store storage.Store
	log   *zap.Logger

	initOnce sync.Once
	initErr  error

	artifactsDir string
	exportsDir   string
}

// EnvSpec names the environment a request works on. A non-empty EnvID
// overrides the fields it encodes; a zero Config means the default reach task.
type EnvSpec struct {
	EnvID  string
	Config env.Config
}

type RolloutRequest struct {
	Env         EnvSpec
	RunID       string
	Seed        int64
	Episodes    int
	MistakeRate float64
}

// SweepRequest plays the same environment once per seed. A non-empty
// RunPrefix yields run ids of the form <prefix>-seed<seed>.
type SweepRequest struct {
	Env         EnvSpec
	Seeds       []int64
	Episodes    int
	MistakeRate float64
	RunPrefix   string
	Parallel    int
}

type RolloutSummary struct {
	RunID        string
	ArtifactsDir string
	Summary      stats.Summary
	Metrics      map[string]float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	EnvID        string
	Kind         string
	Mode         string
	NumObj       int
	Seed         int64
	Episodes     int
	SuccessRate  float64
}

type EpisodesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type VocabularyInfo struct {
	Fingerprint string
	Words       []string
	MaxLen      int
	// Cached reports whether the vocabulary came from the store.
	Cached bool
}

type CatalogItem struct {
	Index       int
	Description string
	OneHot      []float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          log,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. Every other method calls it on demand.
func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Rollout plays scripted episodes, persists them and writes run artifacts.
func (c *Client) Rollout(ctx context.Context, req RolloutRequest) (RolloutSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RolloutSummary{}, err
	}
	p, err := c.play(ctx, req)
	if err != nil {
		return RolloutSummary{}, err
	}
	return c.persist(ctx, p)
}

// Sweep plays one run per seed concurrently and persists them in seed order.
// Parallel bounds the number of runners alive at once; zero means one per seed.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) ([]RolloutSummary, error) {
	if len(req.Seeds) == 0 {
		return nil, errors.New("sweep requires at least one seed")
	}
	if req.Parallel < 0 {
		return nil, errors.New("parallel must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if err := validateEnv(req.Env); err != nil {
		return nil, err
	}

	results := make([]played, len(req.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	if req.Parallel > 0 {
		g.SetLimit(req.Parallel)
	}
	for i, seed := range req.Seeds {
		runID := ""
		if req.RunPrefix != "" {
			runID = fmt.Sprintf("%s-seed%d", req.RunPrefix, seed)
		}
		g.Go(func() error {
			p, err := c.play(gctx, RolloutRequest{
				Env:         req.Env,
				RunID:       runID,
				Seed:        seed,
				Episodes:    req.Episodes,
				MistakeRate: req.MistakeRate,
			})
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RolloutSummary, 0, len(results))
	for _, p := range results {
		summary, err := c.persist(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	c.log.Info("sweep finished", zap.Int("runs", len(out)), zap.Int("parallel", req.Parallel))
	return out, nil
}

// played is a finished run before persistence. env is nil for
// goal-conditioned runs, which have no vocabulary.
type played struct {
	env *env.LanguageEnv
	res rollout.Result
}

func (c *Client) play(ctx context.Context, req RolloutRequest) (played, error) {
	if req.Episodes <= 0 {
		req.Episodes = 10
	}
	opts := []rollout.Option{rollout.WithLogger(c.log), rollout.WithMistakeRate(req.MistakeRate)}

	var p played
	goalCfg, isGoal, err := ResolveGoalEnv(req.Env)
	if err != nil {
		return played{}, err
	}
	if isGoal {
		runner, err := rollout.NewGoalRunner(goalCfg, opts...)
		if err != nil {
			return played{}, err
		}
		if p.res, err = runner.Run(ctx, req.RunID, req.Seed, req.Episodes); err != nil {
			return played{}, err
		}
	} else {
		cfg, err := ResolveEnv(req.Env)
		if err != nil {
			return played{}, err
		}
		runner, err := rollout.NewRunner(cfg, opts...)
		if err != nil {
			return played{}, err
		}
		if p.res, err = runner.Run(ctx, req.RunID, req.Seed, req.Episodes); err != nil {
			return played{}, err
		}
		p.env = runner.Env()
	}
	p.res.Run.Settings.EnvID = req.Env.EnvID
	return p, nil
}

func (c *Client) persist(ctx context.Context, p played) (RolloutSummary, error) {
	res := p.res
	if err := c.store.SaveRun(ctx, res.Run); err != nil {
		return RolloutSummary{}, err
	}
	if err := c.store.SaveEpisodes(ctx, res.Run.ID, res.Episodes); err != nil {
		return RolloutSummary{}, err
	}
	if err := c.store.SaveMetrics(ctx, res.Metrics); err != nil {
		return RolloutSummary{}, err
	}
	if p.env != nil {
		if _, err := c.storeVocabulary(ctx, p.env); err != nil {
			return RolloutSummary{}, err
		}
	}

	summary := stats.Summarize(res.Episodes)
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:    res.Run.ID,
			Seed:     res.Run.Seed,
			Episodes: res.Run.Episodes,
			Settings: res.Run.Settings,
		},
		Episodes: res.Episodes,
		Metrics:  res.Metrics.Values,
		Summary:  summary,
	})
	if err != nil {
		return RolloutSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        res.Run.ID,
		EnvID:        res.Run.Settings.EnvID,
		Kind:         res.Run.Settings.Kind,
		Mode:         res.Run.Settings.Mode,
		NumObj:       res.Run.Settings.NumObj,
		Seed:         res.Run.Seed,
		Episodes:     res.Run.Episodes,
		SuccessRate:  summary.SuccessRate,
		CreatedAtUTC: res.Run.CreatedAt,
	}); err != nil {
		return RolloutSummary{}, err
	}

	return RolloutSummary{
		RunID:        res.Run.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Summary:      summary,
		Metrics:      res.Metrics.Values,
	}, nil
}

// Runs lists the run index, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			EnvID:        e.EnvID,
			Kind:         e.Kind,
			Mode:         e.Mode,
			NumObj:       e.NumObj,
			Seed:         e.Seed,
			Episodes:     e.Episodes,
			SuccessRate:  e.SuccessRate,
		})
	}
	return out, nil
}

// Episodes returns the persisted episodes of a run.
func (c *Client) Episodes(ctx context.Context, req EpisodesRequest) ([]model.EpisodeRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	episodes, ok, err := c.store.GetEpisodes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("episodes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(episodes) > req.Limit {
		episodes = episodes[:req.Limit]
	}
	return episodes, nil
}

// Metrics returns the persisted metrics snapshot of a run.
func (c *Client) Metrics(ctx context.Context, runID string) (map[string]float64, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	snapshot, ok, err := c.store.GetMetrics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("metrics not found for run id: %s", runID)
	}
	return snapshot.Values, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Instructions lists every goal instruction the environment can emit.
func (c *Client) Instructions(_ context.Context, spec EnvSpec) ([]string, error) {
	runner, err := c.runnerFor(spec)
	if err != nil {
		return nil, err
	}
	return runner.Env().Task().AllInstructions()
}

// Vocabulary returns the environment's vocabulary, loading it from the
// store when a vocabulary with the same fingerprint was saved before.
func (c *Client) Vocabulary(ctx context.Context, spec EnvSpec) (VocabularyInfo, error) {
	if err := c.Init(ctx); err != nil {
		return VocabularyInfo{}, err
	}
	cfg, err := ResolveEnv(spec)
	if err != nil {
		return VocabularyInfo{}, err
	}
	fingerprint, err := Fingerprint(cfg)
	if err != nil {
		return VocabularyInfo{}, err
	}
	record, ok, err := c.store.GetVocabulary(ctx, fingerprint)
	if err != nil {
		return VocabularyInfo{}, err
	}
	if ok {
		return VocabularyInfo{Fingerprint: fingerprint, Words: record.Words, MaxLen: record.MaxLen, Cached: true}, nil
	}

	runner, err := c.runnerFor(spec)
	if err != nil {
		return VocabularyInfo{}, err
	}
	return c.storeVocabulary(ctx, runner.Env())
}

// Catalog lists the descriptors of the environment's scene catalog.
func (c *Client) Catalog(_ context.Context, spec EnvSpec) ([]CatalogItem, error) {
	runner, err := c.runnerFor(spec)
	if err != nil {
		return nil, err
	}
	objects := runner.Env().Task().Catalog().Objects()
	out := make([]CatalogItem, len(objects))
	for i, d := range objects {
		out[i] = CatalogItem{
			Index:       i,
			Description: d.String(),
			OneHot:      append([]float64(nil), d.OneHot...),
		}
	}
	return out, nil
}

func (c *Client) runnerFor(spec EnvSpec) (*rollout.Runner, error) {
	cfg, err := ResolveEnv(spec)
	if err != nil {
		return nil, err
	}
	return rollout.NewRunner(cfg, rollout.WithLogger(c.log))
}

func (c *Client) storeVocabulary(ctx context.Context, e *env.LanguageEnv) (VocabularyInfo, error) {
	fingerprint, err := Fingerprint(e.Config())
	if err != nil {
		return VocabularyInfo{}, err
	}
	info := VocabularyInfo{
		Fingerprint: fingerprint,
		Words:       e.Vocabulary().Words(),
		MaxLen:      e.MaxInstructionLen(),
	}
	if err := c.store.SaveVocabulary(ctx, model.VocabularyRecord{
		VersionedRecord: storage.CurrentVersion(),
		Fingerprint:     info.Fingerprint,
		Words:           info.Words,
		MaxLen:          info.MaxLen,
	}); err != nil {
		return VocabularyInfo{}, err
	}
	return info, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

// ResolveEnv turns an EnvSpec into a concrete environment configuration.
func ResolveEnv(spec EnvSpec) (env.Config, error) {
	cfg := spec.Config
	if cfg.Task.Kind == "" {
		cfg = env.DefaultConfig(task.KindReach)
	}
	if spec.EnvID != "" {
		id, err := taskid.Parse(spec.EnvID)
		if err != nil {
			return env.Config{}, err
		}
		if spec.Config.Task.Kind == "" {
			cfg = id.Config()
		} else {
			id.Apply(&cfg)
		}
	}
	return cfg, nil
}

// ResolveGoalEnv reports whether spec names a goal-conditioned environment
// and, if so, its configuration. A positive Config.MaxEpisodeSteps overrides
// the step limit.
func ResolveGoalEnv(spec EnvSpec) (env.GoalConfig, bool, error) {
	if !taskid.IsGoal(spec.EnvID) {
		return env.GoalConfig{}, false, nil
	}
	id, err := taskid.ParseGoal(spec.EnvID)
	if err != nil {
		return env.GoalConfig{}, false, err
	}
	cfg := id.Config()
	if spec.Config.MaxEpisodeSteps > 0 {
		cfg.MaxEpisodeSteps = spec.Config.MaxEpisodeSteps
	}
	return cfg, true, nil
}

// validateEnv resolves spec so that a bad id fails before any runner starts.
func validateEnv(spec EnvSpec) error {
	if _, isGoal, err := ResolveGoalEnv(spec); isGoal || err != nil {
		return err
	}
	_, err := ResolveEnv(spec)
	return err
}

// vocabularyKey holds every setting that changes the set of emitted words.
type vocabularyKey struct {
	Kind         string `json:"kind"`
	Mode         string `json:"mode"`
	Layout       string `json:"layout"`
	NumObj       int    `json:"num_obj"`
	UseHindsight bool   `json:"use_hindsight"`
	UseRepairs   bool   `json:"use_repairs"`
	UseBase      bool   `json:"use_base"`
	UseSynonyms  bool   `json:"use_synonyms"`
}

// Fingerprint identifies the vocabulary an environment configuration yields.
func Fingerprint(cfg env.Config) (string, error) {
	s := rollout.Settings(cfg)
	data, err := json.Marshal(vocabularyKey{
		Kind:         s.Kind,
		Mode:         s.Mode,
		Layout:       s.Layout,
		NumObj:       s.NumObj,
		UseHindsight: s.UseHindsight,
		UseRepairs:   s.UseRepairs,
		UseBase:      s.UseBase,
		UseSynonyms:  s.UseSynonyms,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
