package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load reads, validates, and defaults the application configuration.
func Load(path string) (AppConfig, error) {
	paths := []string{path, "config.yml", "./config/config.yml"}
	var data []byte
	var err error
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	// API keys may live in the environment rather than the file
	for i := range cfg.Sources {
		if cfg.Sources[i].EnvKey != "" {
			if key := os.Getenv(cfg.Sources[i].EnvKey); key != "" {
				cfg.Sources[i].APIKey = key
			}
		}
	}
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16181
	}
	if cfg.Region.Timezone == "" {
		cfg.Region.Timezone = "Europe/Dublin"
	}
	if cfg.Geocode.TimeoutMS == 0 {
		cfg.Geocode.TimeoutMS = 3000
	}
	if cfg.Matcher.RadiusM == 0 {
		cfg.Matcher.RadiusM = 250
	}
	if cfg.Matcher.CellSizeM == 0 {
		cfg.Matcher.CellSizeM = 500
	}
	if cfg.Aggregator.CycleTimeoutSeconds == 0 {
		cfg.Aggregator.CycleTimeoutSeconds = 40
	}
	if cfg.Aggregator.AdapterTimeoutSeconds == 0 {
		cfg.Aggregator.AdapterTimeoutSeconds = 15
	}
	if cfg.Aggregator.CycleIntervalSeconds == 0 {
		cfg.Aggregator.CycleIntervalSeconds = 120
	}
	for i := range cfg.Sources {
		q := &cfg.Sources[i].Quota
		if q.WindowStart == "" {
			q.WindowStart = "05:15"
		}
		if q.WindowEnd == "" {
			q.WindowEnd = "00:15"
		}
		if q.MinIntervalSeconds == 0 {
			q.MinIntervalSeconds = 60
		}
	}
}
