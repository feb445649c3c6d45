// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	cfg := DefaultConfig()
	cfg.ParallelWorkers = 7
	cfg.PathAnalysis.MaxDepth = 12
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ParallelWorkers)
	assert.Equal(t, 12, got.PathAnalysis.MaxDepth)
}

func TestLoad_MissingFileReturnsNotFoundKind(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "not_found", cerr.Kind)
}

func TestLoad_UnsupportedVersionIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"99\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "unsupported_version", cerr.Kind)
}

func TestValidate_RejectsNonPositiveParallelWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParallelWorkers = 0
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "invalid", cerr.Kind)
}
