package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr             string   `json:"addr" yaml:"addr" toml:"addr"`
	ManifestPath     string   `json:"manifest_path" yaml:"manifest_path" toml:"manifest_path"`
	ManifestURL      string   `json:"manifest_url" yaml:"manifest_url" toml:"manifest_url"`
	ArtifactRoot     string   `json:"artifact_root" yaml:"artifact_root" toml:"artifact_root"`
	DatasetDir       string   `json:"dataset_dir" yaml:"dataset_dir" toml:"dataset_dir"`
	DatasetVersion   string   `json:"dataset_version" yaml:"dataset_version" toml:"dataset_version"`
	FeatureCachePath string   `json:"feature_cache_path" yaml:"feature_cache_path" toml:"feature_cache_path"`
	TeamCacheDir     string   `json:"team_cache_dir" yaml:"team_cache_dir" toml:"team_cache_dir"`
	ReloadToken      string   `json:"reload_token" yaml:"reload_token" toml:"reload_token"`
	LogLevel         string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled      bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods      []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders      []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
