// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/synast"
)

func TestBuild_EmptyBody(t *testing.T) {
	fn := &synast.FunctionAST{Module: "M", Name: "noop", Arity: 0, Body: synast.Block(1)}

	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)

	require.Len(t, c.Edges, 1)
	assert.Equal(t, "entry_to_exit_direct", c.Edges[0].Metadata["connection"])
	assert.Equal(t, 0, c.Complexity.DecisionPoints)
	assert.Equal(t, 1, c.Complexity.Cyclomatic)
}

func TestBuild_InvalidAST(t *testing.T) {
	_, err := Build(&synast.FunctionAST{Module: "M", Name: "f"}, Options{}, nil)
	require.Error(t, err)

	var cfgErr *CfgError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "invalid_ast", cfgErr.Kind)
}

func TestBuild_IfAddsOneDecisionPoint(t *testing.T) {
	body := synast.Block(1,
		synast.If(synast.Var("x", 1), synast.Lit("1", 1), synast.Lit("0", 1), 1),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 1, Body: body}

	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Complexity.DecisionPoints)
	assert.Equal(t, 2, c.Complexity.Cyclomatic)
}

func TestBuild_CaseDecisionPointsAreClauseCountMinusOne(t *testing.T) {
	clauses := []*synast.Node{
		synast.Clause(synast.Lit("1", 2), nil, synast.Lit("a", 2), 2),
		synast.Clause(synast.Lit("2", 3), nil, synast.Lit("b", 3), 3),
		synast.Clause(synast.Var("_", 4), nil, synast.Lit("c", 4), 4),
	}
	body := synast.Block(1, synast.Case(synast.Var("x", 1), 1, clauses...))
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 1, Body: body}

	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Complexity.DecisionPoints) // 3 clauses - 1
	assert.Equal(t, 3, c.Complexity.Cyclomatic)
}

func TestBuild_ComprehensionContributesGeneratorsPlusFilters(t *testing.T) {
	comp := synast.For(1,
		[]*synast.Node{synast.Var("gen1", 1), synast.Var("gen2", 1)},
		[]*synast.Node{synast.Var("filt1", 1)},
		synast.Lit("x", 1),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: synast.Block(1, comp)}

	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Complexity.DecisionPoints)
}

func TestBuild_NoBranchesMeansZeroDecisionPoints(t *testing.T) {
	body := synast.Block(1,
		synast.Assign(synast.Var("x", 1), synast.Lit("1", 1), 1),
		synast.Assign(synast.Var("y", 2), synast.Var("x", 2), 2),
	)
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 0, Body: body}

	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Complexity.DecisionPoints)
	assert.Equal(t, 1, c.Complexity.Cyclomatic)
	assert.Empty(t, c.Unreachable)
}

func TestBuild_UnreachableNodesAreDetected(t *testing.T) {
	// Build directly against the low-level API to force an unreachable node,
	// since the dispatch-based builder never produces one from well-formed
	// input on its own.
	c := &CFG{
		EntryID: "n1",
		ExitID:  "n3",
		Nodes: map[string]*Node{
			"n1": {ID: "n1", Kind: KindEntry},
			"n2": {ID: "n2", Kind: KindExpression},
			"n3": {ID: "n3", Kind: KindExit},
		},
		Edges:  []Edge{{From: "n1", To: "n3", Kind: EdgeSequential}},
		Scopes: map[string]*Scope{},
	}
	unreached := unreachableNodes(c)
	assert.Equal(t, []string{"n2"}, unreached)
}

func TestBuild_PathEnumerationRespectsMaxPaths(t *testing.T) {
	clauses := make([]*synast.Node, 0, 10)
	for i := 0; i < 10; i++ {
		clauses = append(clauses, synast.Clause(synast.Lit("x", 1), nil, synast.Lit("y", 1), 1))
	}
	body := synast.Block(1, synast.Case(synast.Var("x", 1), 1, clauses...))
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 1, Body: body}

	c, err := Build(fn, Options{MaxDepth: 20, MaxFanout: 5, MaxPaths: 6}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, c.TotalPaths, 6)
}

func TestBuild_CreatesEntryAndExitNodes(t *testing.T) {
	fn := &synast.FunctionAST{Module: "M", Name: "f", Arity: 2, ClauseIndex: 1, Body: synast.Block(1)}
	c, err := Build(fn, Options{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c.Nodes[c.EntryID])
	assert.NotNil(t, c.Nodes[c.ExitID])
}
