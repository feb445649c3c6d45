// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/viant/cgraph/pkg/bridge"
	"github.com/viant/cgraph/pkg/bridge/goast"
	cgconfig "github.com/viant/cgraph/pkg/config"
	"github.com/viant/cgraph/pkg/cpg"
	"github.com/viant/cgraph/pkg/repository"
	"github.com/viant/cgraph/pkg/synchronizer"
)

// runBuild walks a source tree, parses every discovered .go file, and
// stores the resulting CFG/DFG/CPG in a fresh in-memory repository.
func runBuild(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to .cgraph/project.yaml")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cgraph build <path> [options]\n\nOptions:\n")
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

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	repo, outcomes, err := buildRepository(context.Background(), root, cfg, logger, globals)
	if err != nil {
		return err
	}
	defer repo.Close()

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", colorError("failed:"), o.Event.FilePath, o.Err)
		} else {
			succeeded++
		}
	}

	stats := repo.Stats()
	fmt.Printf("%s %d module(s) built, %d failed\n", colorSuccess("build complete:"), succeeded, failed)
	fmt.Printf("  functions: %d\n  modules: %d\n  ast nodes: %d\n", stats.FunctionCount, stats.ModuleCount, stats.ASTNodeCount)
	return nil
}

// newSyncedRepository builds a fresh repository.Repository and the
// Synchronizer wired to drive it, honoring cfg's build toggles and bounds.
func newSyncedRepository(root string, cfg *cgconfig.Config, logger *slog.Logger, globals GlobalFlags) (*repository.Repository, *synchronizer.Synchronizer, error) {
	repoOpts := repository.DefaultOptions()
	repoOpts.MaxMemoryMB = cfg.MaxMemoryMB
	repo := repository.New(repoOpts, logger)
	parser := goast.New(logger)

	cpgOpts := cpg.DefaultOptions()
	cpgOpts.Timeout = time.Duration(cfg.CPGTimeoutMS) * time.Millisecond
	cpgOpts.CFG.MaxPaths = cfg.PathAnalysis.MaxPaths
	cpgOpts.CFG.MaxDepth = cfg.PathAnalysis.MaxDepth
	cpgOpts.CFG.MaxFanout = cfg.PathAnalysis.MaxFanout
	sync := synchronizer.New(repo, parser, synchronizer.Options{
		GenerateCFG: cfg.GenerateCFG,
		GenerateDFG: cfg.GenerateDFG,
		GenerateCPG: cfg.GenerateCPG,
		CPGOptions:  cpgOpts,
	}, logger)
	return repo, sync, nil
}

// buildRepository discovers files under root and synchronizes every one of
// them into a fresh repository.Repository, showing a progress bar unless
// globals.Quiet is set.
func buildRepository(ctx context.Context, root string, cfg *cgconfig.Config, logger *slog.Logger, globals GlobalFlags) (*repository.Repository, []synchronizer.EventOutcome, error) {
	files, err := discoverFiles(root, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover files under %s: %w", root, err)
	}

	repo, sync, err := newSyncedRepository(root, cfg, logger, globals)
	if err != nil {
		return nil, nil, err
	}

	var bar *progressbar.ProgressBar
	if !globals.Quiet {
		bar = progressbar.Default(int64(len(files)), "building")
	}

	outcomes := make([]synchronizer.EventOutcome, 0, len(files))
	for _, f := range files {
		result := sync.SyncBatch(ctx, []bridge.FileChangeEvent{{
			Kind:       bridge.FileCreated,
			FilePath:   f,
			ObservedAt: time.Now(),
		}})
		outcomes = append(outcomes, result.Outcomes...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return repo, outcomes, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "error", err)
	}
}

func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}
	if globals.Quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadOrDefaultConfig(path string) (*cgconfig.Config, error) {
	cfg, err := cgconfig.Load(path)
	if err == nil {
		return cfg, nil
	}
	var cerr *cgconfig.ConfigError
	if ok := asConfigError(err, &cerr); ok && cerr.Kind == "not_found" {
		return cgconfig.DefaultConfig(), nil
	}
	return nil, err
}

func asConfigError(err error, target **cgconfig.ConfigError) bool {
	ce, ok := err.(*cgconfig.ConfigError)
	if ok {
		*target = ce
	}
	return ok
}

func rootArg(fs *flag.FlagSet) (string, error) {
	args := fs.Args()
	if len(args) == 0 {
		return ".", nil
	}
	return args[0], nil
}
