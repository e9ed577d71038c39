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
	Addr         string   `json:"addr" yaml:"addr" toml:"addr"`
	RegistryPath string   `json:"registry_path" yaml:"registry_path" toml:"registry_path"`
	ModelsDir    string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CtxSize      int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads      int      `json:"threads" yaml:"threads" toml:"threads"`
	DefaultModel string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	Device       string   `json:"device" yaml:"device" toml:"device"`
	Dtype        string   `json:"dtype" yaml:"dtype" toml:"dtype"`
	MaxNewTokens int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	StatsDBPath  string   `json:"stats_db_path" yaml:"stats_db_path" toml:"stats_db_path"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
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
