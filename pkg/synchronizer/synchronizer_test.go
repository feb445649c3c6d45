// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package synchronizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/bridge"
	"github.com/viant/cgraph/pkg/repository"
	"github.com/viant/cgraph/pkg/synast"
)

// fakeParser ignores sourceText and returns a fixed clause set keyed by
// the moduleNames map, simulating a real ParserBridge without depending
// on pkg/bridge/goast (which this package's build does not need).
type fakeParser struct {
	moduleNames map[string]string // file_path -> module name
}

func (p *fakeParser) Parse(ctx context.Context, filePath, sourceText string) ([]*synast.FunctionAST, error) {
	module, ok := p.moduleNames[filePath]
	if !ok {
		module = "default"
	}
	body := synast.Block(1, synast.Assign(synast.Var("x", 1), synast.Lit("1", 1), 1))
	return []*synast.FunctionAST{{Module: module, Name: "f", Arity: 0, Body: body}}, nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "source.lang")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSyncBatch_CreateStoresModule(t *testing.T) {
	repo := repository.New(repository.DefaultOptions(), nil)
	defer repo.Close()

	path := writeTempFile(t, "irrelevant")
	parser := &fakeParser{moduleNames: map[string]string{path: "m"}}
	sync := New(repo, parser, DefaultOptions(), nil)

	result := sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{
		{Kind: bridge.FileCreated, FilePath: path},
	})

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	mod, err := repo.GetModule("m")
	require.NoError(t, err)
	assert.Len(t, mod.Functions, 1)
}

func TestSyncBatch_DeleteResolvesByFilePath(t *testing.T) {
	repo := repository.New(repository.DefaultOptions(), nil)
	defer repo.Close()

	path := writeTempFile(t, "irrelevant")
	parser := &fakeParser{moduleNames: map[string]string{path: "m"}}
	sync := New(repo, parser, DefaultOptions(), nil)

	sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{{Kind: bridge.FileCreated, FilePath: path}})
	result := sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{{Kind: bridge.FileDeleted, FilePath: path}})

	assert.Equal(t, 1, result.Succeeded)
	_, err := repo.GetModule("m")
	require.Error(t, err)
}

func TestSyncBatch_ModuleRenameEvictsPriorRecord(t *testing.T) {
	repo := repository.New(repository.DefaultOptions(), nil)
	defer repo.Close()

	path := writeTempFile(t, "irrelevant")
	parser := &fakeParser{moduleNames: map[string]string{path: "old"}}
	sync := New(repo, parser, DefaultOptions(), nil)
	sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{{Kind: bridge.FileCreated, FilePath: path}})

	parser.moduleNames[path] = "new"
	sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{{Kind: bridge.FileModified, FilePath: path}})

	_, err := repo.GetModule("old")
	require.Error(t, err)
	got, err := repo.GetModule("new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ModuleName)
}

func TestSyncBatch_OneEventFailureDoesNotAbortSiblings(t *testing.T) {
	repo := repository.New(repository.DefaultOptions(), nil)
	defer repo.Close()

	goodPath := writeTempFile(t, "irrelevant")
	parser := &fakeParser{moduleNames: map[string]string{goodPath: "good"}}
	sync := New(repo, parser, DefaultOptions(), nil)

	result := sync.SyncBatch(context.Background(), []bridge.FileChangeEvent{
		{Kind: bridge.FileCreated, FilePath: "/nonexistent/path/does/not/exist.lang"},
		{Kind: bridge.FileCreated, FilePath: goodPath},
	})

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Succeeded)
	_, err := repo.GetModule("good")
	require.NoError(t, err)
}
