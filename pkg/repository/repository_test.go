// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/cfg"
	"github.com/viant/cgraph/pkg/query"
)

func fnRecord(module, name string, arity int, cyclomatic int) *FunctionRecord {
	return &FunctionRecord{
		Key:        FunctionKey{Module: module, Name: name, Arity: arity},
		Complexity: cfg.ComplexityMetrics{Cyclomatic: cyclomatic},
		CreatedAt:  time.Now(),
	}
}

func TestStoreAndGetModule_RoundTrips(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	mod := &ModuleRecord{ModuleName: "m", FilePath: "m.lang", Functions: map[FunctionKey]*FunctionRecord{}}
	require.NoError(t, r.StoreModule(context.Background(), mod))

	got, err := r.GetModule("m")
	require.NoError(t, err)
	assert.Equal(t, "m.lang", got.FilePath)

	byFile, err := r.GetModuleByFilepath("m.lang")
	require.NoError(t, err)
	assert.Equal(t, "m", byFile.ModuleName)
}

func TestGetModule_NotFound(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	_, err := r.GetModule("missing")
	require.Error(t, err)
	var repoErr *RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "not_found", repoErr.Kind)
}

func TestDeleteModule_CascadesFunctions(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	mod := &ModuleRecord{ModuleName: "m", FilePath: "m.lang", Functions: map[FunctionKey]*FunctionRecord{}}
	require.NoError(t, r.StoreModule(context.Background(), mod))
	require.NoError(t, r.StoreFunction(context.Background(), fnRecord("m", "f", 1, 2)))

	require.NoError(t, r.DeleteModule(context.Background(), "m"))

	_, err := r.GetModule("m")
	require.Error(t, err)
	_, err = r.GetFunction(FunctionKey{Module: "m", Name: "f", Arity: 1})
	require.Error(t, err)
}

func TestStoreModule_ModuleNameChangeAtSameFilePathEvictsPrior(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{ModuleName: "old", FilePath: "f.lang"}))
	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{ModuleName: "new", FilePath: "f.lang"}))

	_, err := r.GetModule("old")
	require.Error(t, err)
	got, err := r.GetModuleByFilepath("f.lang")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ModuleName)
}

func TestStoreFunction_UpdatesModuleLevelMetrics(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{ModuleName: "m", FilePath: "m.lang", Functions: map[FunctionKey]*FunctionRecord{}}))
	require.NoError(t, r.StoreFunction(context.Background(), fnRecord("m", "a", 0, 2)))
	require.NoError(t, r.StoreFunction(context.Background(), fnRecord("m", "b", 0, 6)))

	mod, err := r.GetModule("m")
	require.NoError(t, err)
	assert.Equal(t, 2, mod.ModuleLevelMetrics.FunctionCount)
	assert.Equal(t, 6, mod.ModuleLevelMetrics.MaxCyclomatic)
	assert.Equal(t, 4.0, mod.ModuleLevelMetrics.AverageCyclomatic)
}

func TestFindCallersOf_EmptyWhenNoCallerIndexed(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	callers, err := r.FindCallersOf(FunctionKey{Module: "m", Name: "helper", Arity: 1})
	require.NoError(t, err)
	assert.Empty(t, callers)
}

func TestFindCallersOf_FindsIndexedCaller(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	caller := fnRecord("m", "a", 0, 1)
	caller.CFG = &cfg.CFG{Nodes: map[string]*cfg.Node{
		"n1": {ID: "n1", Kind: cfg.KindFunctionCall, ExpressionRef: "helper"},
	}}
	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{
		ModuleName: "m", FilePath: "m.lang",
		Functions: map[FunctionKey]*FunctionRecord{caller.Key: caller},
	}))

	// find_callers_of is documented to take a real (module, name, arity)
	// key; call sites in the CFG carry no arity, so the lookup must still
	// resolve regardless of the arity the caller happens to pass.
	callers, err := r.FindCallersOf(FunctionKey{Module: "m", Name: "helper", Arity: 1})
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, caller.Key, callers[0])
}

func TestASTNode_StoreAndGet(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	require.NoError(t, r.StoreASTNode(context.Background(), "m:f_0_c0:p:hash", []byte("payload")))
	got, err := r.GetASTNode("m:f_0_c0:p:hash")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestClearAll_EmptiesEveryTable(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{ModuleName: "m", FilePath: "m.lang", Functions: map[FunctionKey]*FunctionRecord{}}))
	require.NoError(t, r.ClearAll(context.Background()))

	stats := r.Stats()
	assert.Equal(t, 0, stats.ModuleCount)
	assert.Equal(t, 0, stats.FunctionCount)
}

func TestQueryFunctions_FiltersByComplexity(t *testing.T) {
	r := New(DefaultOptions(), nil)
	defer r.Close()

	require.NoError(t, r.StoreModule(context.Background(), &ModuleRecord{ModuleName: "m", FilePath: "m.lang", Functions: map[FunctionKey]*FunctionRecord{}}))
	require.NoError(t, r.StoreFunction(context.Background(), fnRecord("m", "simple", 0, 1)))
	require.NoError(t, r.StoreFunction(context.Background(), fnRecord("m", "complex", 0, 12)))

	spec := query.FindFunctions().ByComplexity("cyclomatic", query.Gt, 5).Build()
	results, err := r.QueryFunctions(spec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "complex", results[0]["name"])
}
