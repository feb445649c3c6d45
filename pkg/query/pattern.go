// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/viant/cgraph/pkg/cpg"
)

// PatternNode is one node constraint in a CPG sub-graph pattern.
type PatternNode struct {
	LabelPrefix string            // matches the node id's prefix, if set
	Kind        string            // matches CFG node kind or "has_dfg", if set
	Properties  map[string]string // matches cfg.Node.Metadata entries, if set
}

// PatternEdge is one edge constraint, referencing nodes by their index in
// Pattern.Nodes.
type PatternEdge struct {
	Kind       string
	FromIndex  int
	ToIndex    int
}

// Pattern describes a small sub-graph to match inside a CPG, per spec.md §4.6.
type Pattern struct {
	Nodes []PatternNode
	Edges []PatternEdge
}

// Match is one isomorphic embedding of Pattern into a CPG: NodeBindings[i]
// is the CPG node id bound to Pattern.Nodes[i].
type Match struct {
	NodeBindings []string
}

// PatternMatchOptions bounds pathological patterns, per spec.md §4.6's
// "same deadline discipline as §4.4".
type PatternMatchOptions struct {
	Timeout  time.Duration
	MaxMatches int
}

// DefaultPatternMatchOptions mirrors cpg.DefaultOptions' baseline deadline.
func DefaultPatternMatchOptions() PatternMatchOptions {
	return PatternMatchOptions{Timeout: 10 * time.Second, MaxMatches: 1000}
}

// MatchCPGPattern performs sub-graph isomorphism over cp by anchoring on
// the most selective pattern node (the one matching the fewest CPG nodes)
// and expanding via adjacency, backtracking on conflicts.
func MatchCPGPattern(ctx context.Context, cp *cpg.CPG, pattern Pattern, opts PatternMatchOptions) ([]Match, error) {
	if opts.Timeout <= 0 {
		opts = DefaultPatternMatchOptions()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if len(pattern.Nodes) == 0 {
		return nil, &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: cpg_pattern requires at least one node")}
	}

	candidates := make([][]string, len(pattern.Nodes))
	for i, pn := range pattern.Nodes {
		candidates[i] = candidateNodes(cp, pn)
	}

	anchor := 0
	for i := range candidates {
		if len(candidates[i]) < len(candidates[anchor]) {
			anchor = i
		}
	}

	adjacency := buildAdjacency(cp)
	var matches []Match
	binding := make([]string, len(pattern.Nodes))
	used := map[string]bool{}

	var backtrack func(order []int, pos int) error
	backtrack = func(order []int, pos int) error {
		select {
		case <-ctx.Done():
			return &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: pattern match exceeded %s", opts.Timeout)}
		default:
		}
		if opts.MaxMatches > 0 && len(matches) >= opts.MaxMatches {
			return nil
		}
		if pos == len(order) {
			bound := make([]string, len(binding))
			copy(bound, binding)
			matches = append(matches, Match{NodeBindings: bound})
			return nil
		}
		idx := order[pos]
		for _, candidate := range candidates[idx] {
			if used[candidate] {
				continue
			}
			if !satisfiesEdges(pattern, binding, idx, candidate, adjacency) {
				continue
			}
			binding[idx] = candidate
			used[candidate] = true
			if err := backtrack(order, pos+1); err != nil {
				return err
			}
			delete(used, candidate)
			binding[idx] = ""
			if opts.MaxMatches > 0 && len(matches) >= opts.MaxMatches {
				return nil
			}
		}
		return nil
	}

	order := searchOrder(anchor, len(pattern.Nodes))
	if err := backtrack(order, 0); err != nil {
		return matches, err
	}
	return matches, nil
}

func searchOrder(anchor, n int) []int {
	order := make([]int, 0, n)
	order = append(order, anchor)
	for i := 0; i < n; i++ {
		if i != anchor {
			order = append(order, i)
		}
	}
	return order
}

func candidateNodes(cp *cpg.CPG, pn PatternNode) []string {
	var ids []string
	for id, n := range cp.Nodes {
		if pn.LabelPrefix != "" && !strings.HasPrefix(id, pn.LabelPrefix) {
			continue
		}
		if pn.Kind != "" {
			if pn.Kind == "has_dfg" {
				if n.DFG == nil {
					continue
				}
			} else if n.CFG == nil || string(n.CFG.Kind) != pn.Kind {
				continue
			}
		}
		if !matchesProperties(n, pn.Properties) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matchesProperties(n *cpg.Node, props map[string]string) bool {
	if len(props) == 0 {
		return true
	}
	if n.CFG == nil {
		return false
	}
	for k, v := range props {
		if n.CFG.Metadata[k] != v {
			return false
		}
	}
	return true
}

func buildAdjacency(cp *cpg.CPG) map[string]map[string][]string {
	adj := map[string]map[string][]string{}
	for _, e := range cp.Edges {
		if adj[e.From] == nil {
			adj[e.From] = map[string][]string{}
		}
		adj[e.From][e.Kind] = append(adj[e.From][e.Kind], e.To)
	}
	return adj
}

// satisfiesEdges checks every pattern edge whose endpoints are both already
// bound (including the one just assigned) against the CPG's real adjacency.
func satisfiesEdges(pattern Pattern, binding []string, justBoundIdx int, justBoundID string, adjacency map[string]map[string][]string) bool {
	trial := make([]string, len(binding))
	copy(trial, binding)
	trial[justBoundIdx] = justBoundID

	for _, e := range pattern.Edges {
		from, to := trial[e.FromIndex], trial[e.ToIndex]
		if from == "" || to == "" {
			continue
		}
		if e.FromIndex != justBoundIdx && e.ToIndex != justBoundIdx {
			continue
		}
		targets := adjacency[from][e.Kind]
		found := false
		for _, t := range targets {
			if t == to {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PatternBuilder assembles a Pattern through chainable Node/Edge calls, the
// convenience layer SPEC_FULL.md adds alongside the raw struct literal.
type PatternBuilder struct {
	pattern Pattern
}

// NewPattern starts an empty pattern builder.
func NewPattern() *PatternBuilder { return &PatternBuilder{} }

// Node appends a node constraint and returns its index for use in Edge.
func (b *PatternBuilder) Node(n PatternNode) (*PatternBuilder, int) {
	b.pattern.Nodes = append(b.pattern.Nodes, n)
	return b, len(b.pattern.Nodes) - 1
}

// Edge appends an edge constraint between two previously returned node indices.
func (b *PatternBuilder) Edge(kind string, fromIndex, toIndex int) *PatternBuilder {
	b.pattern.Edges = append(b.pattern.Edges, PatternEdge{Kind: kind, FromIndex: fromIndex, ToIndex: toIndex})
	return b
}

// Build returns the finished Pattern.
func (b *PatternBuilder) Build() Pattern { return b.pattern }
