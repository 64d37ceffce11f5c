// Package config resolves where redrill keeps its state and how it reaches
// the external tools. The storage root is always passed down explicitly to
// the stores, so tests can point everything at a scratch directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvDataDir overrides the default data directory.
const EnvDataDir = "REDRILL_DATA_DIR"

// Config holds the tool's settings. All fields have working defaults; the
// optional YAML config file and flags override them.
type Config struct {
	// DataDir is the storage root for run records, history and the lock.
	DataDir string `yaml:"data_dir"`

	// StratusBin and AWSBin name the external binaries.
	StratusBin string `yaml:"stratus_bin"`
	AWSBin     string `yaml:"aws_bin"`

	// HistoryMax bounds the persisted technique history.
	HistoryMax int `yaml:"history_max"`

	// AvoidLastN is the default recency exclusion window for selection.
	AvoidLastN int `yaml:"avoid_last_n"`
}

// Default returns the built-in configuration. The data directory comes from
// REDRILL_DATA_DIR, falling back to ~/.redrill, falling back to the current
// directory when no home is known.
func Default() Config {
	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".redrill")
		} else {
			dataDir = ".redrill"
		}
	}
	return Config{
		DataDir:    dataDir,
		StratusBin: "stratus",
		AWSBin:     "aws",
		HistoryMax: 20,
		AvoidLastN: 5,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	return cfg, nil
}

// RunsDir is where run records live.
func (c Config) RunsDir() string {
	return filepath.Join(c.DataDir, "runs")
}

// LockPath is the run lock file.
func (c Config) LockPath() string {
	return filepath.Join(c.DataDir, ".lock")
}

// HistoryPath is the technique history database.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
