// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package dfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/synast"
)

func TestBuild_ParameterGetsVersionZero(t *testing.T) {
	fn := &synast.FunctionAST{
		Module: "M", Name: "f", Arity: 1,
		Params: []*synast.Node{synast.Var("x", 1)},
		Body:   synast.Block(1, synast.Assign(synast.Var("y", 2), synast.Var("x", 2), 2)),
	}

	d, err := Build(fn, nil, Options{}, nil)
	require.NoError(t, err)

	x0, ok := d.Versions["x_v0"]
	require.True(t, ok)
	assert.True(t, x0.IsParameter)
}

func TestBuild_ReassignmentBumpsVersionAndRecordsMutation(t *testing.T) {
	body := synast.Block(1,
		synast.Assign(synast.Var("x", 1), synast.Lit("1", 1), 1),
		synast.Assign(synast.Var("x", 2), synast.Lit("2", 2), 2),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: body}

	d, err := Build(fn, nil, Options{}, nil)
	require.NoError(t, err)

	_, hasV0 := d.Versions["x_v0"]
	_, hasV1 := d.Versions["x_v1"]
	assert.True(t, hasV0)
	assert.True(t, hasV1)
	require.Len(t, d.Mutations, 1)
	assert.Equal(t, "reassignment", d.Mutations[0].Kind)
}

func TestBuild_SelfReferenceIsMutationNotCycle(t *testing.T) {
	body := synast.Block(1,
		synast.Assign(synast.Var("x", 1), synast.Lit("0", 1), 1),
		synast.Assign(synast.Var("x", 2), synast.BinOp("+", synast.Var("x", 2), synast.Lit("1", 2), 2), 2),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: body}

	d, err := Build(fn, nil, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, d.Mutations, 1)
	assert.Equal(t, "self", d.Mutations[0].Kind)
}

func TestBuild_MutualForwardReferenceIsCircularDependency(t *testing.T) {
	// def bad() do x = y + 1; y = x + 1; x end — when `x = y + 1` is
	// processed, `y` has no binding yet, so the x→y dependency can only be
	// seen by name, not by resolving an already-live version.
	body := synast.Block(1,
		synast.Assign(synast.Var("x", 1), synast.BinOp("+", synast.Var("y", 1), synast.Lit("1", 1), 1), 1),
		synast.Assign(synast.Var("y", 2), synast.BinOp("+", synast.Var("x", 2), synast.Lit("1", 2), 2), 2),
		synast.Var("x", 3),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "bad", Arity: 0, Body: body}

	_, err := Build(fn, nil, Options{}, nil)
	require.Error(t, err)

	var dfgErr *DfgError
	require.ErrorAs(t, err, &dfgErr)
	assert.Equal(t, "circular_dependency", dfgErr.Kind)
}

func TestBuild_UnusedVariableDetected(t *testing.T) {
	body := synast.Block(1,
		synast.Assign(synast.Var("unused", 1), synast.Lit("1", 1), 1),
		synast.Assign(synast.Var("used", 2), synast.Lit("2", 2), 2),
		synast.Call("inspect", 3, synast.Var("used", 3)),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: body}

	d, err := Build(fn, nil, Options{}, nil)
	require.NoError(t, err)
	assert.Contains(t, d.UnusedVariables, "unused_v0")
	assert.NotContains(t, d.UnusedVariables, "used_v0")
}

func TestBuild_InvalidAST(t *testing.T) {
	_, err := Build(&synast.FunctionAST{Module: "M", Name: "f"}, nil, Options{}, nil)
	require.Error(t, err)

	var dfgErr *DfgError
	require.ErrorAs(t, err, &dfgErr)
	assert.Equal(t, "invalid_ast", dfgErr.Kind)
}
