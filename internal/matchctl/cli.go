// Package matchctl implements the offline companion CLI: predictions,
// feature dumps and manifest checks against local artifacts, without
// running the HTTP daemon.
package matchctl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"matchd/internal/artifact"
	"matchd/internal/common/fsutil"
	"matchd/internal/features"
	"matchd/internal/loader"
	"matchd/internal/predict"
	"matchd/internal/preprocess"
	"matchd/internal/session"
	"matchd/pkg/types"
)

// Config carries the persistent flag values shared by every subcommand.
type Config struct {
	Manifest       string
	ManifestURL    string
	ArtifactRoot   string
	DatasetDir     string
	DatasetVersion string
	Output         string
	LogLvl         string
}

// BuildRootCmd constructs the Cobra command tree.
func BuildRootCmd() *cobra.Command {
	cfg := &Config{DatasetDir: ".", Output: "text", LogLvl: "warn"}

	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Offline match prediction utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.Manifest, "manifest", os.Getenv("MATCHD_MANIFEST"), "Path to the run manifest JSON file")
	root.PersistentFlags().StringVar(&cfg.ManifestURL, "manifest-url", os.Getenv("MATCHD_MANIFEST_URL"), "URL of the run manifest")
	root.PersistentFlags().StringVar(&cfg.ArtifactRoot, "artifact-root", os.Getenv("MATCHD_ARTIFACT_ROOT"), "Override root for artifact resolution")
	root.PersistentFlags().StringVar(&cfg.DatasetDir, "dataset-dir", envOr("MATCHD_DATASET_DIR", "."), "Directory holding Dataset_Version_{v}.csv files")
	root.PersistentFlags().StringVar(&cfg.DatasetVersion, "dataset-version", os.Getenv("MATCHD_DATASET_VERSION"), "Dataset version override")
	root.PersistentFlags().StringVar(&cfg.Output, "output", "text", "Output format: text|json")
	root.PersistentFlags().StringVar(&cfg.LogLvl, "log-level", "warn", "Log level: debug|info|warn|error")

	var season string

	predictCmd := &cobra.Command{
		Use:     "predict <home> <away>",
		Short:   "Score one fixture with every usable model",
		Example: "  matchctl predict Arsenal Chelsea --season 2024 --manifest ./artifacts/manifest.json",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cfg)
			if err != nil {
				return err
			}
			resp, err := svc.Predict(context.Background(), types.PredictRequest{Home: args[0], Away: args[1], Season: season})
			if err != nil {
				return err
			}
			if cfg.Output == "json" {
				return printJSON(cmd, resp)
			}
			printPrediction(cmd, resp)
			return nil
		},
	}
	predictCmd.Flags().StringVar(&season, "season", "", "Season (defaults to the latest in the dataset)")

	featuresCmd := &cobra.Command{
		Use:     "features <home> <away>",
		Short:   "Print the feature vector a fixture resolves to",
		Example: "  matchctl features Arsenal Chelsea --output json",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, version, err := buildBuilder(cfg)
			if err != nil {
				return err
			}
			fx, err := builder.Build(context.Background(), args[0], args[1], season, version)
			if err != nil {
				return err
			}
			if cfg.Output == "json" {
				return printJSON(cmd, fx)
			}
			names := make([]string, 0, len(fx.Features))
			for name := range fx.Features {
				names = append(names, name)
			}
			sort.Strings(names)
			cmd.Printf("%s vs %s (%s), match %d\n", fx.Home.Name, fx.Away.Name, fx.Season, fx.MatchID)
			for _, name := range names {
				cmd.Printf("  %-45s %v\n", name, fx.Features[name])
			}
			return nil
		},
	}
	featuresCmd.Flags().StringVar(&season, "season", "", "Season (defaults to the latest in the dataset)")

	teamsCmd := &cobra.Command{
		Use:   "teams",
		Short: "List the roster for a season",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := newProvider(cfg)
			s := season
			if s == "" {
				latest, err := provider.LatestSeason(cfg.DatasetVersion)
				if err != nil {
					return err
				}
				s = latest
			}
			roster, err := provider.Roster(s, cfg.DatasetVersion)
			if err != nil {
				return err
			}
			if cfg.Output == "json" {
				return printJSON(cmd, roster.Teams())
			}
			for _, team := range roster.Teams() {
				cmd.Printf("%-30s %-6s %s\n", team.Name, team.ShortName, team.Canonical)
			}
			return nil
		},
	}
	teamsCmd.Flags().StringVar(&season, "season", "", "Season (defaults to the latest in the dataset)")

	manifestCmd := &cobra.Command{Use: "manifest", Short: "Inspect run manifests", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("manifest requires a subcommand: check")
	}}
	manifestCheck := &cobra.Command{
		Use:     "check",
		Short:   "Parse, validate and resolve the manifest, reporting per-resource state",
		Example: "  matchctl manifest check --manifest ./artifacts/manifest.json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cfg)
			if err != nil {
				return err
			}
			if cfg.Output == "json" {
				return printJSON(cmd, snap.Status())
			}
			cmd.Printf("run %s (dataset %s, trained %s)\n", snap.Manifest.RunID, snap.Manifest.DatasetVersion, snap.Manifest.TrainedAt)
			printHandles(cmd, "models", snap.Models)
			printHandles(cmd, "preprocessing", snap.Preprocessing)
			printHandles(cmd, "attribution", snap.Attribution)
			if len(snap.Errors) > 0 {
				cmd.Printf("%d resource(s) failed to resolve\n", len(snap.Errors))
				return fmt.Errorf("manifest check found problems")
			}
			return nil
		},
	}
	manifestCmd.AddCommand(manifestCheck)

	root.AddCommand(predictCmd, featuresCmd, teamsCmd, manifestCmd)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cliLogger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLvl))
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func newProvider(cfg *Config) *features.CSVProvider {
	dir, err := fsutil.ExpandHome(cfg.DatasetDir)
	if err != nil {
		dir = cfg.DatasetDir
	}
	return features.NewCSVProvider(dir, cfg.DatasetVersion, "", cliLogger(cfg))
}

func newLoader(cfg *Config) (*loader.Loader, error) {
	if (cfg.Manifest == "") == (cfg.ManifestURL == "") {
		return nil, fmt.Errorf("exactly one of --manifest or --manifest-url is required")
	}
	path, err := fsutil.ExpandHome(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	root, err := fsutil.ExpandHome(cfg.ArtifactRoot)
	if err != nil {
		return nil, err
	}
	return loader.New(loader.Options{
		ManifestPath: path,
		ManifestURL:  cfg.ManifestURL,
		ArtifactRoot: root,
		Logger:       cliLogger(cfg),
	}), nil
}

func loadSnapshot(cfg *Config) (*loader.Snapshot, error) {
	l, err := newLoader(cfg)
	if err != nil {
		return nil, err
	}
	return l.EnsureLoaded(context.Background(), false)
}

func buildBuilder(cfg *Config) (*features.Builder, string, error) {
	version := cfg.DatasetVersion
	if version == "" && (cfg.Manifest != "" || cfg.ManifestURL != "") {
		if snap, err := loadSnapshot(cfg); err == nil {
			version = snap.Manifest.DatasetVersion.String()
		}
	}
	return features.NewBuilder(newProvider(cfg), nil, cliLogger(cfg)), version, nil
}

func buildService(cfg *Config) (*predict.Service, error) {
	l, err := newLoader(cfg)
	if err != nil {
		return nil, err
	}
	builder := features.NewBuilder(newProvider(cfg), nil, cliLogger(cfg))
	return predict.New(l, session.NewCache(nil), preprocess.NewStore(), builder, cliLogger(cfg)), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}

func printPrediction(cmd *cobra.Command, resp *types.PredictResponse) {
	fx := resp.Fixture
	cmd.Printf("%s vs %s (%s, dataset %s)\n", fx.Home, fx.Away, fx.Season, fx.DatasetVersion)
	for _, m := range resp.Models {
		p := m.Probabilities
		cmd.Printf("  %-30s home %.3f  draw %.3f  away %.3f\n", m.ModelID, p.Home, p.Draw, p.Away)
	}
	e := resp.Ensemble.Probabilities
	cmd.Printf("ensemble (%s of %d): home %.3f  draw %.3f  away %.3f\n",
		resp.Ensemble.Method, resp.Ensemble.ModelCount, e.Home, e.Draw, e.Away)
}

func printHandles(cmd *cobra.Command, kind string, handles []artifact.Handle) {
	if len(handles) == 0 {
		return
	}
	cmd.Printf("%s:\n", kind)
	for _, h := range handles {
		switch {
		case h.Err != "":
			cmd.Printf("  %-30s ERROR %s\n", h.Resource.ID, h.Err)
		case h.Location != nil:
			cmd.Printf("  %-30s %s %s\n", h.Resource.ID, h.Location.Kind, h.Location.Value)
		}
	}
}
