// Command pitprep prepares excavation geometry for mesh generation:
// it builds the solid model from a scenario file, runs boolean
// sequencing, repairs topology and continuity defects, and reports
// whether the result is ready for meshing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geoforge/pitprep/pkg/config"
	"github.com/geoforge/pitprep/pkg/kernel/sdfx"
	"github.com/geoforge/pitprep/pkg/pipeline"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pitprep",
		Short:         "excavation geometry preparation for mesh generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		scenarioPath string
		verbose      bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the preparation pipeline on a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			scenario, err := config.LoadScenario(scenarioPath)
			if err != nil {
				return fmt.Errorf("load scenario: %w", err)
			}

			cells := scenario.Config.MeshCells
			if cells <= 0 {
				cells = config.DefaultModelingConfig().MeshCells
			}
			k := sdfx.NewWithResolution(cells)

			p, err := pipeline.New(k, scenario.Config, log)
			if err != nil {
				return err
			}

			res, err := p.Model(cmd.Context(), scenario.Geometry, scenario.Support, scenario.Geology)
			if err != nil {
				return fmt.Errorf("modeling run: %w", err)
			}
			report(log, scenario.Name, res)
			if res.Readiness != nil && !res.Readiness.Ready {
				return fmt.Errorf("model is not mesh-ready (%d unresolved critical defects, continuity %.3f)",
					res.Readiness.UnresolvedCritical, res.Readiness.ContinuityScore)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to the scenario YAML file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the pitprep version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pitprep", version)
		},
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func report(log *zap.Logger, name string, res *pipeline.Result) {
	fields := []zap.Field{
		zap.String("scenario", name),
		zap.Bool("success", res.Success),
		zap.Bool("fallback_mode", res.FallbackMode),
		zap.Int("operations", len(res.Operations)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("intersections", len(res.Intersections)),
		zap.String("conflict_summary", res.Quality.ConflictSummary),
		zap.Float64("topology_quality", res.Quality.TopologyQuality),
		zap.Float64("continuity_score", res.Quality.ContinuityScore),
	}
	if r := res.Readiness; r != nil {
		fields = append(fields,
			zap.Bool("mesh_ready", r.Ready),
			zap.Int("estimated_elements", r.EstimatedElementCount),
			zap.Float64("recommended_mesh_size", r.RecommendedMeshSize),
			zap.Int("critical_regions", len(r.CriticalRegions)),
		)
	}
	log.Info("scenario complete", fields...)
	for _, d := range res.Diagnostics {
		log.Warn(d)
	}
}
