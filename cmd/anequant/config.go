package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the anequant configuration file (~/.config/anequant/config.yaml).
type Config struct {
	ModelsDir string `yaml:"models_dir"`

	// Quantization defaults
	WeightThreshold *uint64 `yaml:"weight_threshold"`
	WeightsOnly     *bool   `yaml:"weights_only"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "anequant", "config.yaml")
}

// applyQuantizeConfig applies config file defaults to quantize command
// variables when the corresponding CLI flag was not explicitly set.
func applyQuantizeConfig(c *cli.Command, cfg Config) {
	if cfg.WeightThreshold != nil && !c.IsSet("weight-threshold") {
		weightThreshold = *cfg.WeightThreshold
	}
	if cfg.WeightsOnly != nil && !c.IsSet("weights-only") {
		weightsOnly = *cfg.WeightsOnly
	}
	applyLoggingConfig(c, cfg)
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
