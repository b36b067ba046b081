package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lingotask/internal/config"
	"lingotask/internal/logging"
	"lingotask/pkg/lingotask"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool
	storeKind  string
	dbPath     string
	envID      string

	cfg    *config.Config
	log    *zap.Logger
	client *lingotask.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "lingotaskctl",
		Short: "Language-grounded manipulation task generator",
		Long: `lingotaskctl inspects and exercises language-conditioned manipulation tasks:
the instructions and vocabulary an environment emits, its object catalog,
and scripted rollouts whose episodes are persisted for later inspection.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.storeKind, "store", "", "store backend: memory or sqlite")
	flags.StringVar(&a.dbPath, "db-path", "", "sqlite database path")
	flags.StringVar(&a.envID, "env-id", "", "environment id such as PandaNLReach2Color-v0")

	root.AddCommand(
		a.instructionsCmd(),
		a.vocabCmd(),
		a.catalogCmd(),
		a.rolloutCmd(),
		a.sweepCmd(),
		a.runsCmd(),
		a.episodesCmd(),
		a.exportCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.storeKind != "" {
		cfg.Store.Kind = a.storeKind
	}
	if a.dbPath != "" {
		cfg.Store.DBPath = a.dbPath
	}
	if a.envID != "" {
		cfg.EnvID = a.envID
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	client, err := lingotask.New(lingotask.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.DBPath,
		ArtifactsDir: cfg.ArtifactsDir,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	a.cfg, a.log, a.client = cfg, log, client
	a.log.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("store", cfg.Store.Kind),
		zap.String("env_id", cfg.EnvID),
	)
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	var err error
	if a.client != nil {
		err = a.client.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}

func (a *app) envSpec() (lingotask.EnvSpec, error) {
	envCfg, err := a.cfg.EnvConfig()
	if err != nil {
		return lingotask.EnvSpec{}, err
	}
	return lingotask.EnvSpec{EnvID: a.cfg.EnvID, Config: envCfg}, nil
}

func usageError(msg string) error {
	return fmt.Errorf("usage: %s", msg)
}
