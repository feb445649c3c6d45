// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/viant/cgraph/pkg/bridge"
	"github.com/viant/cgraph/pkg/bridge/fswatcher"
)

// runWatch builds the repository once, then keeps it live by applying
// every subsequent file-change event the fswatcher bridge reports, until
// interrupted.
func runWatch(args []string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Path to .cgraph/project.yaml")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cgraph watch <path> [options]\n\nOptions:\n")
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

	repo, sync, err := newSyncedRepository(root, cfg, logger, globals)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("watch.shutdown.signal")
		cancel()
	}()

	fmt.Printf("%s watching %s (Ctrl-C to stop)\n", colorSuccess("cgraph:"), root)

	watcher := fswatcher.New(fswatcher.Options{Root: root}, logger)
	events, errs := watcher.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			result := sync.SyncBatch(ctx, []bridge.FileChangeEvent{ev})
			for _, o := range result.Outcomes {
				if o.Err != nil {
					fmt.Fprintf(os.Stderr, "%s %s: %v\n", colorError("sync failed:"), o.Event.FilePath, o.Err)
				} else {
					fmt.Printf("%s %s\n", colorSuccess("synced:"), o.Event.FilePath)
				}
			}
		case err, ok := <-errs:
			if !ok {
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}
}
