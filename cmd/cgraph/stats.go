// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/viant/cgraph/pkg/repository"
)

// runStats builds the repository over <path> and reports its aggregate
// counters, per spec.md's repository Stats() operation.
func runStats(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to .cgraph/project.yaml")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cgraph stats <path> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	root, err := rootArg(fs)
	if err != nil {
		return err
	}

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(globals)

	repo, _, err := buildRepository(context.Background(), root, cfg, logger, globals)
	if err != nil {
		return err
	}
	defer repo.Close()

	return printStats(repo.Stats(), globals)
}

func printStats(stats repository.Stats, globals GlobalFlags) error {
	switch {
	case globals.JSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case globals.YAML:
		data, err := yaml.Marshal(stats)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		fmt.Printf("%s\n", colorSuccess("repository stats:"))
		fmt.Printf("  modules:            %d\n", stats.ModuleCount)
		fmt.Printf("  functions:          %d\n", stats.FunctionCount)
		fmt.Printf("  ast nodes:          %d\n", stats.ASTNodeCount)
		fmt.Printf("  call index entries: %d\n", stats.CallIndexEntries)
		fmt.Printf("  last write:         %s\n", stats.LastWriteAt)
		return nil
	}
}
