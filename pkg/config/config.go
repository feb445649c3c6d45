// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds the project-level configuration cmd/cgraph loads
// from a YAML file (.cgraph/project.yaml, analogous to the teacher's
// .cie/project.yaml): what to scan, how many workers to run, which graphs
// to build, and the path-analysis bounds spec.md §6 names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".cgraph"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// PathAnalysisConfig bounds the path-enumeration analyses spec.md §6 names.
type PathAnalysisConfig struct {
	MaxPaths int `yaml:"max_paths"` // cap on enumerated CFG paths per function
	MaxDepth int `yaml:"max_depth"` // cap on recursion/loop-unroll depth during enumeration
	MaxFanout int `yaml:"max_fanout"` // cap on branch fanout explored per decision node
}

// Config is the typed project configuration.
type Config struct {
	Version string `yaml:"version"`

	IncludePatterns []string `yaml:"include_patterns"` // glob patterns; empty means all files
	ExcludePatterns []string `yaml:"exclude_patterns"`

	MaxFileSize     int64 `yaml:"max_file_size"`     // bytes; larger files are skipped
	MaxMemoryMB     int   `yaml:"max_memory_mb"`      // passed to repository.Options; the repository neither enforces nor reports it
	ParallelWorkers int   `yaml:"parallel_workers"`  // validated as positive; the build does not read it and processes files one at a time

	GenerateCFG bool `yaml:"generate_cfg"`
	GenerateDFG bool `yaml:"generate_dfg"`
	GenerateCPG bool `yaml:"generate_cpg"`

	CPGTimeoutMS int `yaml:"cpg_timeout_ms"` // deadline for each function's CPG build (cpg.Options.Timeout)

	PathAnalysis PathAnalysisConfig `yaml:"path_analysis"`
}

// DefaultConfig returns sensible defaults for local development: every
// graph layer enabled, worker count from runtime.NumCPU(), and exclude
// patterns covering the usual non-source directories.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		ExcludePatterns: []string{
			".git/**", "node_modules/**", "vendor/**",
			"dist/**", "build/**", "bin/**",
		},
		MaxFileSize:     1048576, // 1MB
		MaxMemoryMB:     2048,
		ParallelWorkers: runtime.NumCPU(),
		GenerateCFG:     true,
		GenerateDFG:     true,
		GenerateCPG:     true,
		CPGTimeoutMS:    5000,
		PathAnalysis: PathAnalysisConfig{
			MaxPaths:  10000,
			MaxDepth:  64,
			MaxFanout: 32,
		},
	}
}

// ConfigError is the tagged error kind for config loading/validation
// failures, following the same Kind/Err shape as the package's siblings.
type ConfigError struct {
	Kind string // "not_found" | "invalid_yaml" | "unsupported_version" | "invalid"
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error (%s): %v", e.Kind, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads and validates a Config from path. If path is empty, it
// searches the current directory and its parents for .cgraph/project.yaml,
// the same upward walk the teacher's findConfigFile performs.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: "not_found", Err: fmt.Errorf("read %s: %w", path, err)}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Kind: "invalid_yaml", Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	if cfg.Version != configVersion {
		return nil, &ConfigError{Kind: "unsupported_version", Err: fmt.Errorf("config version %q is not supported (expected %q)", cfg.Version, configVersion)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration shapes that cannot be acted on.
func (c *Config) Validate() error {
	if c.ParallelWorkers <= 0 {
		return &ConfigError{Kind: "invalid", Err: fmt.Errorf("parallel_workers must be positive, got %d", c.ParallelWorkers)}
	}
	if c.MaxFileSize <= 0 {
		return &ConfigError{Kind: "invalid", Err: fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)}
	}
	if c.CPGTimeoutMS <= 0 {
		return &ConfigError{Kind: "invalid", Err: fmt.Errorf("cpg_timeout_ms must be positive, got %d", c.CPGTimeoutMS)}
	}
	return nil
}

// Save writes cfg to path as YAML, creating the parent directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &ConfigError{Kind: "invalid", Err: fmt.Errorf("marshal config: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ConfigError{Kind: "invalid", Err: fmt.Errorf("create config dir: %w", err)}
	}
	return os.WriteFile(path, data, 0o600)
}

// ConfigPath returns <dir>/.cgraph/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

func findConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", &ConfigError{Kind: "not_found", Err: fmt.Errorf("getwd: %w", err)}
	}
	for {
		candidate := ConfigPath(dir)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", &ConfigError{Kind: "not_found", Err: fmt.Errorf("no %s/%s found in this directory or any parent", defaultConfigDir, defaultConfigFile)}
}
