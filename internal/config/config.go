// Package config loads RustQL's optional startup configuration
// (spec.md §6, SPEC_FULL.md §4.3): a YAML file naming the default
// database path and whether statement logging is enabled.
package config

import (
	"os"

	jujuerrors "github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Config is RustQL's startup configuration. A missing config file
// produces Default(), not the zero value.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	LogStatements bool  `yaml:"log_statements"`
}

// Default returns the configuration a fresh install starts with.
func Default() Config {
	return Config{DatabasePath: "db.json", LogStatements: false}
}

// Load reads path as YAML and overlays it on Default(); a missing
// file is not an error, it just yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, jujuerrors.Annotatef(err, "reading config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, jujuerrors.Annotatef(err, "parsing config %q", path)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "db.json"
	}
	return cfg, nil
}
