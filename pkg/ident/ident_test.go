// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/synast"
)

func simpleFn() *synast.FunctionAST {
	body := synast.Block(2,
		synast.Assign(synast.Var("x", 2), synast.Lit("1", 2), 2),
		synast.If(synast.Var("x", 3), synast.Lit("true", 3), synast.Lit("false", 3), 3),
	)
	return &synast.FunctionAST{
		Module: "MyApp.Worker",
		Name:   "run",
		Arity:  1,
		Params: []*synast.Node{synast.Var("opts", 1)},
		Body:   body,
	}
}

func TestAssign_Deterministic(t *testing.T) {
	fn1 := simpleFn()
	fn2 := simpleFn()

	NewAssigner(nil).Assign(fn1)
	NewAssigner(nil).Assign(fn2)

	require.NotEmpty(t, fn1.Body.Metadata.ASTNodeID)
	assert.Equal(t, fn1.Body.Metadata.ASTNodeID, fn2.Body.Metadata.ASTNodeID)
}

func TestAssign_RoundTripsThroughParse(t *testing.T) {
	fn := simpleFn()
	NewAssigner(nil).Assign(fn)

	id, err := Parse(fn.Body.Metadata.ASTNodeID)
	require.NoError(t, err)
	assert.Equal(t, "MyApp.Worker", id.Module)
	assert.Equal(t, "run", id.Function)
	assert.Equal(t, 1, id.Arity)
	assert.Equal(t, 0, id.ClauseIndex)
	assert.Len(t, id.ShortHash, 8)
}

func TestAssign_DistinctNodesGetDistinctIDs(t *testing.T) {
	fn := simpleFn()
	a := NewAssigner(nil)
	a.Assign(fn)

	assign := fn.Body.Children("statements")[0]
	ifNode := fn.Body.Children("statements")[1]
	assert.NotEqual(t, assign.Metadata.ASTNodeID, ifNode.Metadata.ASTNodeID)
	assert.NotEqual(t, fn.Body.Metadata.ASTNodeID, assign.Metadata.ASTNodeID)
}

func TestAssign_LiteralCallArgumentsAreElided(t *testing.T) {
	call := synast.Call("inspect", 4, synast.Lit("42", 4))
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: call}

	a := NewAssigner(nil)
	a.Assign(fn)

	argLit := call.Children("args")[0]
	assert.Empty(t, argLit.Metadata.ASTNodeID, "bare literal call argument should not receive its own id")
	assert.NotEmpty(t, call.Metadata.ASTNodeID)
}

func TestAssign_MalformedNodeSynthesizesID(t *testing.T) {
	malformed := &synast.Node{} // no Tag, no Line
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: malformed}

	a := NewAssigner(nil)
	a.Assign(fn)

	id, err := Parse(malformed.Metadata.ASTNodeID)
	require.NoError(t, err)
	assert.Equal(t, "unknown_L?", id.PathOrHash)
	assert.EqualValues(t, 1, a.Stats().Synthesized())
}

func TestParse_RejectsMalformedInput(t *testing.T) {
	_, err := Parse("not-an-id")
	assert.Error(t, err)

	_, err = Parse("Mod:fn_1_x0:path:abcd1234")
	assert.Error(t, err, "clause segment must carry a 'c' prefix")

	_, err = Parse("Mod:fn_x_c0:path:abcd1234")
	assert.Error(t, err, "arity must be numeric")
}

func TestIDString_MatchesSpecFormat(t *testing.T) {
	id := ID{Module: "M", Function: "run", Arity: 2, ClauseIndex: 1, PathOrHash: "0_body_L3", ShortHash: "deadbeef"}
	assert.Equal(t, "M:run_2_c1:0_body_L3:deadbeef", id.String())

	reparsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, reparsed)
}
