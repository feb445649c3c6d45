// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/cgraph/pkg/config"
)

// discoverFiles walks root and returns every regular .go file whose
// slash-normalized path matches at least one include pattern (or all
// files, if IncludePatterns is empty) and no exclude pattern, skipping
// files over MaxFileSize. Glob matching is hand-rolled over
// filepath.Match the same way the teacher's delta filter does (no
// third-party glob library covers the teacher's ** directory wildcard
// any better than a per-segment filepath.Match pass).
func discoverFiles(root string, cfg *config.Config) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if !matchesAny(rel, cfg.IncludePatterns) {
			return nil
		}
		if matchesAny(rel, cfg.ExcludePatterns) {
			return nil
		}
		if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// matchesAny reports whether path matches pattern, or any pattern in
// patterns. An empty pattern list always matches (no include filter set).
func matchesAny(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if globMatch(path, p) {
			return true
		}
	}
	return false
}

// globMatch supports "**" (any number of path segments) in addition to
// filepath.Match's single-segment wildcards, by matching segment-by-segment.
func globMatch(path, pattern string) bool {
	pathParts := strings.Split(path, "/")
	patParts := strings.Split(pattern, "/")
	return matchSegments(pathParts, patParts)
}

func matchSegments(path, pattern []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(path, pattern[1:]) {
			return true
		}
		if len(path) == 0 {
			return false
		}
		return matchSegments(path[1:], pattern)
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(path[1:], pattern[1:])
}
