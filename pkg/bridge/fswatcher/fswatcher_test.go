// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package fswatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/bridge"
)

func TestWatch_EmitsCreatedEventForNewFile(t *testing.T) {
	root := t.TempDir()
	w := New(Options{Root: root, Debounce: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, errs := w.Watch(ctx)

	target := filepath.Join(root, "new.lang")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, target, ev.FilePath)
		assert.Contains(t, []bridge.FileChangeKind{bridge.FileCreated, bridge.FileModified}, ev.Kind)
	case err := <-errs:
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file change event")
	}
}

func TestWatch_SkipsDotGitDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	w := New(Options{Root: root, Debounce: 50 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := w.Watch(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for skipped directory: %+v", ev)
	case <-time.After(300 * time.Millisecond):
		// no event observed, as expected
	}
}

func TestWatch_ClosesChannelsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	w := New(Options{Root: root, Debounce: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events, errs := w.Watch(ctx)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed after cancel")
	}
	select {
	case _, ok := <-errs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("errors channel was not closed after cancel")
	}
}
