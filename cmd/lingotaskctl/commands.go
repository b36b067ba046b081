package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lingotask/pkg/lingotask"
)

func (a *app) instructionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "instructions",
		Short: "Print every instruction the environment can emit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := a.envSpec()
			if err != nil {
				return err
			}
			instructions, err := a.client.Instructions(cmd.Context(), spec)
			if err != nil {
				return err
			}
			if limit > 0 && len(instructions) > limit {
				instructions = instructions[:limit]
			}
			out := cmd.OutOrStdout()
			for _, s := range instructions {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max instructions to print (0 = all)")
	return cmd
}

func (a *app) vocabCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Print the vocabulary and the padded instruction length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := a.envSpec()
			if err != nil {
				return err
			}
			info, err := a.client.Vocabulary(cmd.Context(), spec)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, map[string]any{
					"fingerprint": info.Fingerprint,
					"words":       info.Words,
					"max_len":     info.MaxLen,
					"cached":      info.Cached,
				})
			}
			fmt.Fprintf(out, "fingerprint=%s size=%d max_len=%d cached=%t\n", info.Fingerprint, len(info.Words), info.MaxLen, info.Cached)
			for i, w := range info.Words {
				fmt.Fprintf(out, "%d\t%s\n", i, w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the vocabulary as JSON")
	return cmd
}

func (a *app) catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the object catalog with one-hot encodings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := a.envSpec()
			if err != nil {
				return err
			}
			items, err := a.client.Catalog(cmd.Context(), spec)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, item := range items {
				bits := make([]string, len(item.OneHot))
				for i, v := range item.OneHot {
					bits[i] = strconv.FormatFloat(v, 'f', -1, 64)
				}
				fmt.Fprintf(out, "%d\t%s\t[%s]\n", item.Index, item.Description, strings.Join(bits, " "))
			}
			return nil
		},
	}
}

func (a *app) rolloutCmd() *cobra.Command {
	var (
		episodes    int
		seed        int64
		mistakeRate float64
		runID       string
	)
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Run the scripted agent and persist its episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if episodes <= 0 {
				return usageError("--episodes must be > 0")
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Seed
			}
			spec, err := a.envSpec()
			if err != nil {
				return err
			}
			summary, err := a.client.Rollout(cmd.Context(), lingotask.RolloutRequest{
				Env:         spec,
				RunID:       runID,
				Seed:        seed,
				Episodes:    episodes,
				MistakeRate: mistakeRate,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := summary.Summary
			fmt.Fprintf(out, "run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
			fmt.Fprintf(out, "episodes=%d success_rate=%.4f hindsight=%d repairs=%d timeouts=%d mean_return=%.4f mean_steps=%.2f\n",
				s.Episodes, s.SuccessRate, s.Hindsight, s.Repairs, s.Timeouts, s.MeanReturn, s.MeanSteps)
			keys := make([]string, 0, len(summary.Metrics))
			for k := range summary.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s=%g\n", k, summary.Metrics[k])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&episodes, "episodes", 10, "number of episodes")
	cmd.Flags().Int64Var(&seed, "seed", 0, "rollout seed (defaults to the configured seed)")
	cmd.Flags().Float64Var(&mistakeRate, "mistake-rate", 0, "probability the scripted agent handles a distractor")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id (generated when empty)")
	return cmd
}

func (a *app) sweepCmd() *cobra.Command {
	var (
		seeds       []int64
		episodes    int
		mistakeRate float64
		runPrefix   string
		parallel    int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the scripted agent once per seed in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(seeds) == 0 {
				return usageError("--seeds is required")
			}
			if episodes <= 0 {
				return usageError("--episodes must be > 0")
			}
			if parallel < 0 {
				return usageError("--parallel must be >= 0")
			}
			spec, err := a.envSpec()
			if err != nil {
				return err
			}
			summaries, err := a.client.Sweep(cmd.Context(), lingotask.SweepRequest{
				Env:         spec,
				Seeds:       seeds,
				Episodes:    episodes,
				MistakeRate: mistakeRate,
				RunPrefix:   runPrefix,
				Parallel:    parallel,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, summary := range summaries {
				s := summary.Summary
				fmt.Fprintf(out, "run_id=%s seed=%d success_rate=%.4f mean_return=%.4f std_return=%.4f\n",
					summary.RunID, seeds[i], s.SuccessRate, s.MeanReturn, s.StdReturn)
			}
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&seeds, "seeds", nil, "comma separated rollout seeds")
	cmd.Flags().IntVar(&episodes, "episodes", 10, "episodes per seed")
	cmd.Flags().Float64Var(&mistakeRate, "mistake-rate", 0, "probability the scripted agent handles a distractor")
	cmd.Flags().StringVar(&runPrefix, "run-prefix", "", "run id prefix (ids are generated when empty)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max concurrent runs (0 = one per seed)")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return usageError("--limit must be > 0")
			}
			runs, err := a.client.Runs(cmd.Context(), lingotask.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				type runsItem struct {
					RunID        string  `json:"run_id"`
					CreatedAtUTC string  `json:"created_at_utc"`
					EnvID        string  `json:"env_id,omitempty"`
					Kind         string  `json:"kind"`
					Mode         string  `json:"mode"`
					NumObj       int     `json:"num_obj"`
					Seed         int64   `json:"seed"`
					Episodes     int     `json:"episodes"`
					SuccessRate  float64 `json:"success_rate"`
				}
				items := make([]runsItem, 0, len(runs))
				for _, r := range runs {
					items = append(items, runsItem(r))
				}
				return writeJSON(out, items)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s kind=%s mode=%s num_obj=%d seed=%d episodes=%d success_rate=%.4f\n",
					r.RunID, r.CreatedAtUTC, r.Kind, r.Mode, r.NumObj, r.Seed, r.Episodes, r.SuccessRate)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")
	return cmd
}

func (a *app) episodesCmd() *cobra.Command {
	var (
		latest  bool
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "episodes [run-id]",
		Short: "List the persisted episodes of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := lingotask.EpisodesRequest{Latest: latest, Limit: limit}
			if len(args) == 1 {
				req.RunID = args[0]
			}
			episodes, err := a.client.Episodes(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, episodes)
			}
			for _, ep := range episodes {
				line := fmt.Sprintf("index=%d goal=%q success=%t steps=%d return=%g", ep.Index, ep.Goal, ep.Success, ep.Steps, ep.Return)
				if ep.Hindsight {
					line += fmt.Sprintf(" hindsight=%q", ep.HindsightInstruction)
				}
				if ep.Repaired {
					line += " repaired=true"
				}
				if ep.Timeout {
					line += " timeout=true"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&limit, "limit", 0, "max episodes to list (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit episodes as JSON")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Copy a run's artifacts into an export directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := lingotask.ExportRequest{Latest: latest, OutDir: outDir}
			if len(args) == 1 {
				req.RunID = args[0]
			}
			if req.RunID == "" && !req.Latest {
				return errors.New("export requires a run id or --latest")
			}
			exported, err := a.client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "", "export directory (default exports)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
