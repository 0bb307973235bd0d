package config

import (
	"fmt"
	"os"
	"runtime"

	"kuanb/gosm-matcher/routing"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every section at its default
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 8080},
		Graph: GraphConfig{
			PBF:   "./data/example.osm.pbf",
			Datum: "wgs84",
		},
		Matcher: routing.DefaultConfig(),
		Batch: BatchConfig{
			Workers:       runtime.GOMAXPROCS(0),
			PartitionSize: 10000,
			Output:        "./exports/matched.db",
		},
	}
}

// Load reads and validates the configuration at path. Keys absent from the file keep their defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. Matcher errors wrap routing.ErrInvalidConfig.
func Validate(cfg *AppConfig) error {
	if err := cfg.Matcher.Validate(); err != nil {
		return err
	}
	v := validator.New()
	return v.Struct(cfg)
}
