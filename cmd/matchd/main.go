package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"matchd/internal/common/fsutil"
	"matchd/internal/config"
	"matchd/internal/features"
	"matchd/internal/httpapi"
	"matchd/internal/loader"
	"matchd/internal/predict"
	"matchd/internal/preprocess"
	"matchd/internal/session"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func expand(log zerolog.Logger, path string) string {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("path expansion failed")
	}
	return p
}

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("MATCHD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	configPath := flag.String("config", envOr("MATCHD_CONFIG", ""), "Optional config file (.yaml/.json/.toml)")
	manifestPath := flag.String("manifest", envOr("MATCHD_MANIFEST", ""), "Path to the run manifest JSON file")
	manifestURL := flag.String("manifest-url", envOr("MATCHD_MANIFEST_URL", ""), "URL of the run manifest (instead of -manifest)")
	artifactRoot := flag.String("artifact-root", envOr("MATCHD_ARTIFACT_ROOT", ""), "Override root directory for artifact resolution")
	datasetDir := flag.String("dataset-dir", envOr("MATCHD_DATASET_DIR", "."), "Directory holding Dataset_Version_{v}.csv files")
	datasetVersion := flag.String("dataset-version", envOr("MATCHD_DATASET_VERSION", ""), "Default dataset version when the manifest omits one")
	featureCachePath := flag.String("feature-cache", envOr("MATCHD_FEATURE_CACHE", ""), "Sqlite feature cache path (empty disables)")
	teamCacheDir := flag.String("team-cache-dir", envOr("MATCHD_TEAM_CACHE_DIR", ""), "Directory for roster cache JSON files (empty disables)")
	reloadToken := flag.String("reload-token", envOr("MATCHD_RELOAD_TOKEN", ""), "Shared secret for POST /reload (empty disables the endpoint)")
	logLevel := flag.String("log-level", envOr("MATCHD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			errLog := zerolog.New(os.Stderr)
			errLog.Fatal().Err(err).Str("config", *configPath).Msg("config load failed")
		}
		applyConfig(cfg, map[string]*string{
			"addr":            addr,
			"manifest":        manifestPath,
			"manifest-url":    manifestURL,
			"artifact-root":   artifactRoot,
			"dataset-dir":     datasetDir,
			"dataset-version": datasetVersion,
			"feature-cache":   featureCachePath,
			"team-cache-dir":  teamCacheDir,
			"reload-token":    reloadToken,
			"log-level":       logLevel,
		})
		if cfg.CORSEnabled {
			httpapi.SetCORSOptions(true, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(*logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	httpapi.SetLogger(log)
	httpapi.SetReloadToken(*reloadToken)

	if (*manifestPath == "") == (*manifestURL == "") {
		log.Fatal().Msg("exactly one of -manifest or -manifest-url is required")
	}

	provider := features.NewCSVProvider(expand(log, *datasetDir), *datasetVersion, expand(log, *teamCacheDir), log)

	var featureCache *features.FeatureCache
	if *featureCachePath != "" {
		featureCache, err = features.OpenCache(expand(log, *featureCachePath))
		if err != nil {
			log.Warn().Err(err).Msg("feature cache disabled")
			featureCache = nil
		} else {
			defer featureCache.Close()
		}
	}

	l := loader.New(loader.Options{
		ManifestPath: expand(log, *manifestPath),
		ManifestURL:  *manifestURL,
		ArtifactRoot: expand(log, *artifactRoot),
		Logger:       log,
	})
	sessions := session.NewCache(nil)
	defer sessions.Close()

	builder := features.NewBuilder(provider, featureCache, log)
	svc := predict.New(l, sessions, preprocess.NewStore(), builder, log)

	// Warm load so the first request does not pay for it. Failure is not
	// fatal: the manifest may appear later and a reload picks it up.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if _, err := l.EnsureLoaded(warmCtx, false); err != nil {
		log.Warn().Err(err).Msg("initial manifest load failed; serving unready until reload")
	}
	warmCancel()

	mux := httpapi.NewMux(svc)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Info().Str("addr", *addr).Msg("matchd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}

// applyConfig fills in config file values for flags the user set neither on
// the command line nor through the environment. Precedence: flag, env,
// config file, built-in default.
func applyConfig(cfg config.Config, flags map[string]*string) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := func(name, env, value string) {
		if value != "" && !set[name] && os.Getenv(env) == "" {
			*flags[name] = value
		}
	}
	apply("addr", "MATCHD_ADDR", cfg.Addr)
	apply("manifest", "MATCHD_MANIFEST", cfg.ManifestPath)
	apply("manifest-url", "MATCHD_MANIFEST_URL", cfg.ManifestURL)
	apply("artifact-root", "MATCHD_ARTIFACT_ROOT", cfg.ArtifactRoot)
	apply("dataset-dir", "MATCHD_DATASET_DIR", cfg.DatasetDir)
	apply("dataset-version", "MATCHD_DATASET_VERSION", cfg.DatasetVersion)
	apply("feature-cache", "MATCHD_FEATURE_CACHE", cfg.FeatureCachePath)
	apply("team-cache-dir", "MATCHD_TEAM_CACHE_DIR", cfg.TeamCacheDir)
	apply("reload-token", "MATCHD_RELOAD_TOKEN", cfg.ReloadToken)
	apply("log-level", "MATCHD_LOG_LEVEL", cfg.LogLevel)
}
