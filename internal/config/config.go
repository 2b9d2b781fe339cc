package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "archcheck.yaml"

type Config struct {
	// Locations are addresses of class directories, class files or archives.
	Locations []string     `yaml:"locations"`
	Import    ImportConfig `yaml:"import"`
	Cache     struct {
		Size int `yaml:"size"` // graphs kept by the process-wide tier
	} `yaml:"cache"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Rules []RuleConfig `yaml:"rules"`
}

type ImportConfig struct {
	ExcludeTests    bool     `yaml:"exclude_tests"`
	ExcludeArchives bool     `yaml:"exclude_archives"`
	ExcludeGlobs    []string `yaml:"exclude_globs"`
	Workers         int      `yaml:"workers"`
}

// RuleConfig declares a rule as "classes in <scope> should <should> <target>".
type RuleConfig struct {
	Name    string `yaml:"name"`
	Scope   string `yaml:"scope"`  // name pattern selecting the classes checked
	Should  string `yaml:"should"` // condition keyword, e.g. not_depend_on
	Target  string `yaml:"target"` // name pattern the condition refers to
	Because string `yaml:"because"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Cache.Size <= 0 {
		c.Cache.Size = 16
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "archcheck.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// LoadConfig reads the YAML file at path, then applies .env and
// ARCHCHECK_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if db := os.Getenv("ARCHCHECK_DB"); db != "" {
		cfg.Storage.Path = db
	}
	if level := os.Getenv("ARCHCHECK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if workers := os.Getenv("ARCHCHECK_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("ARCHCHECK_WORKERS: %w", err)
		}
		cfg.Import.Workers = n
	}

	cfg.applyDefaults()
	return &cfg, nil
}
