// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/cgraph/pkg/cfg"
	"github.com/viant/cgraph/pkg/cpg"
)

func sampleDataset() Dataset {
	records := []Record{
		{"name": "a", "module_name": "m1", "complexity.cyclomatic": 2},
		{"name": "b", "module_name": "m1", "complexity.cyclomatic": 9},
		{"name": "c", "module_name": "m2", "complexity.cyclomatic": 5},
	}
	return Dataset{
		Records: records,
		Indexes: Indexes{
			"by_module": {
				"m1": {0, 1},
				"m2": {2},
			},
		},
	}
}

func TestExecute_SeedsFromModuleIndex(t *testing.T) {
	spec := FindFunctions().Where("module_name", Eq, "m1").Build()
	out, err := Execute(spec, sampleDataset())
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestExecute_FiltersByComplexityGt(t *testing.T) {
	spec := FindFunctions().ByComplexity("cyclomatic", Gt, 4).Build()
	out, err := Execute(spec, sampleDataset())
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestExecute_OrderByThenLimitOffset(t *testing.T) {
	spec := FindFunctions().OrderBy("complexity.cyclomatic", "desc").Offset(1).Limit(1).Build()
	out, err := Execute(spec, sampleDataset())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0]["name"])
}

func TestExecute_ProjectsSelectedFields(t *testing.T) {
	spec := FindFunctions().Select("name").Build()
	out, err := Execute(spec, sampleDataset())
	require.NoError(t, err)
	for _, r := range out {
		_, hasModule := r["module_name"]
		assert.False(t, hasModule)
		_, hasName := r["name"]
		assert.True(t, hasName)
	}
}

func TestSpec_ValidateRejectsUnknownOperator(t *testing.T) {
	spec := Spec{From: SourceFunctions, Where: []Predicate{{Field: "x", Op: "bogus"}}}
	err := spec.Validate()
	require.Error(t, err)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "invalid_spec", qerr.Kind)
}

func TestSpec_ValidateRejectsCPGPatternOnNonCPGSource(t *testing.T) {
	p := Pattern{Nodes: []PatternNode{{Kind: "entry"}}}
	spec := FindFunctions().MatchCPGPattern(p).Build()
	require.Error(t, spec.Validate())
}

func TestMatchCPGPattern_FindsSingleNode(t *testing.T) {
	cp := &cpg.CPG{
		Nodes: map[string]*cpg.Node{
			"n1": {ID: "n1", CFG: &cfg.Node{ID: "n1", Kind: cfg.KindEntry}},
		},
	}
	pattern := Pattern{Nodes: []PatternNode{{Kind: "entry"}}}
	matches, err := MatchCPGPattern(context.Background(), cp, pattern, DefaultPatternMatchOptions())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "n1", matches[0].NodeBindings[0])
}

// TestMatchCPGPattern_FindsEdgeConstrainedPair checks that a pattern with a
// real edge constraint between two nodes matches when the CPG's edges carry
// the same keys as cp.Nodes (the keying unify gives a built CPG's edges).
// The CPG here is constructed by hand, not by cpg.Build.
func TestMatchCPGPattern_FindsEdgeConstrainedPair(t *testing.T) {
	cp := &cpg.CPG{
		Nodes: map[string]*cpg.Node{
			"n1": {ID: "n1", CFG: &cfg.Node{ID: "n1", Kind: cfg.KindEntry}},
			"n2": {ID: "n2", CFG: &cfg.Node{ID: "n2", Kind: cfg.KindExit}},
		},
		Edges: []cpg.Edge{
			{From: "n1", To: "n2", Layer: cpg.LayerControl, Kind: string(cfg.EdgeSequential)},
		},
	}

	b := NewPattern()
	var entry, exit int
	b, entry = b.Node(PatternNode{Kind: "entry"})
	b, exit = b.Node(PatternNode{Kind: "exit"})
	pattern := b.Edge(string(cfg.EdgeSequential), entry, exit).Build()

	matches, err := MatchCPGPattern(context.Background(), cp, pattern, DefaultPatternMatchOptions())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"n1", "n2"}, matches[0].NodeBindings)
}

func TestPatternBuilder_BuildsNodesAndEdges(t *testing.T) {
	b := NewPattern()
	var i0, i1 int
	b, i0 = b.Node(PatternNode{Kind: "entry"})
	b, i1 = b.Node(PatternNode{Kind: "exit"})
	pattern := b.Edge("sequential", i0, i1).Build()
	require.Len(t, pattern.Nodes, 2)
	require.Len(t, pattern.Edges, 1)
}
