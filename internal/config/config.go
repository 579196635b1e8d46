package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root      string   `yaml:"root"`
		Languages []string `yaml:"languages"`
		Exclude   []string `yaml:"exclude"`
	} `yaml:"project"`
	History struct {
		MaxCommits int `yaml:"max_commits"`
	} `yaml:"history"`
	Storage struct {
		Backend string `yaml:"backend"` // json or sqlite
		Dir     string `yaml:"dir"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Project.Languages = []string{"python", "go"}
	cfg.History.MaxCommits = 200
	cfg.Storage.Backend = "json"
	cfg.Storage.Dir = ".codemap"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// LoadConfig reads codemap.yaml, falling back to defaults when the file is
// missing. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config; a missing file is not an error.
	file, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if root := os.Getenv("CODEMAP_ROOT"); root != "" {
		cfg.Project.Root = root
	}
	if backend := os.Getenv("CODEMAP_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if level := os.Getenv("CODEMAP_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if n := os.Getenv("CODEMAP_MAX_COMMITS"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			cfg.History.MaxCommits = parsed
		}
	}

	return cfg, nil
}
