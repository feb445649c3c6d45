// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package dfg

import (
	"fmt"
	"sort"

	"github.com/viant/cgraph/pkg/cfg"
)

// placePhis emits a Phi at every CFG node where ≥2 predecessors define
// distinct versions of the same variable that both reach it. Since this
// builder tracks bindings per lexical scope rather than per CFG node, the
// approximation used here is: for every CFG node with ≥2 predecessors,
// for every variable with more than one version recorded overall, pair the
// i-th predecessor with the i-th version in ascending version order as the
// phi's inputs, and use the highest-numbered version as its output. This is
// a best-effort placement for the advisory/derived-metric consumers in
// pkg/cpg; it does not gate correctness of the core DFG edges above.
func (b *builder) placePhis(c *cfg.CFG) {
	for _, n := range c.Nodes {
		preds := c.Predecessors(n.ID)
		if len(preds) < 2 {
			continue
		}
		byVar := map[string][]*Version{}
		for _, v := range b.versions {
			byVar[v.VarName] = append(byVar[v.VarName], v)
		}
		for varName, versions := range byVar {
			if len(versions) < 2 {
				continue
			}
			sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNum < versions[j].VersionNum })
			target := versions[len(versions)-1]
			var inputs []PhiInput
			for i, pred := range preds {
				if i >= len(versions) {
					break
				}
				inputs = append(inputs, PhiInput{PredecessorExitNode: pred, SourceVersion: versions[i].SSAName()})
			}
			if len(inputs) < 2 {
				continue
			}
			b.phis = append(b.phis, Phi{
				NodeID:        n.ID,
				TargetVersion: fmt.Sprintf("%s_vphi%d", varName, len(b.phis)),
				ScopeID:       target.ScopeID,
				Incoming:      inputs,
			})
			for _, in := range inputs {
				b.edges = append(b.edges, Edge{From: in.SourceVersion, To: n.ID, Kind: EdgePhiInput, Variable: varName})
			}
			b.edges = append(b.edges, Edge{From: n.ID, To: target.SSAName(), Kind: EdgePhiOutput, Variable: varName})
		}
	}
}

// computeLifetimes derives birth/death line and usage frequency per version,
// and flags unused variables: defined but neither read nor captured, and
// not itself a dependency of another defined variable.
func computeLifetimes(b *builder) (map[string]Lifetime, []string) {
	lifetimes := make(map[string]Lifetime, len(b.versions))
	dependedOn := map[string]bool{}
	for _, e := range b.edges {
		if e.Kind == EdgeData || e.Kind == EdgeDefUse {
			dependedOn[e.From] = true
		}
	}
	captured := map[string]bool{}
	for _, cap := range b.captures {
		captured[cap.OuterVersion] = true
	}

	var unused []string
	for name, v := range b.versions {
		birth := b.defLine[name]
		death := birth
		lines := b.readLines[name]
		for _, l := range lines {
			if l > death {
				death = l
			}
		}
		lifetimes[name] = Lifetime{SSAName: name, BirthLine: birth, DeathLine: death, UsageCount: b.reads[name]}

		if !v.IsParameter && b.reads[name] == 0 && !captured[name] && !dependedOn[name] {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)
	return lifetimes, unused
}

// computeOptimizationHints produces best-effort, advisory suggestions: a
// dead-assignment hint per unused variable, and a common-subexpression hint
// for every pipe_flow sink (a "call:<name>:<line>" key) that receives more
// than one pipe_flow edge. Calls reached other than through a pipe are not
// considered, and the call's argument versions are not compared.
func computeOptimizationHints(b *builder, unused []string) []OptimizationHint {
	var hints []OptimizationHint
	for _, name := range unused {
		hints = append(hints, OptimizationHint{Kind: "dead_assignment", Detail: fmt.Sprintf("%s is never read", name), NodeIDs: []string{name}})
	}

	seen := map[string]int{}
	for _, e := range b.edges {
		if e.Kind != EdgePipeFlow {
			continue
		}
		key := e.To
		seen[key]++
	}
	keys := make([]string, 0, len(seen))
	for k, count := range seen {
		if count > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		hints = append(hints, OptimizationHint{Kind: "common_subexpression", Detail: fmt.Sprintf("%s recomputed %d times", k, seen[k]), NodeIDs: []string{k}})
	}
	return hints
}

func computeFanInOut(edges []Edge) (fanIn, fanOut map[string]int) {
	fanIn = map[string]int{}
	fanOut = map[string]int{}
	for _, e := range edges {
		fanOut[e.From]++
		fanIn[e.To]++
	}
	return fanIn, fanOut
}

// computeDepthWidth derives the dependency graph's depth (longest chain of
// data/def_use edges) and width (max versions sharing a depth level).
func computeDepthWidth(d *DFG) (depth int, width int) {
	adj := map[string][]string{}
	indeg := map[string]int{}
	nodes := map[string]bool{}
	for _, e := range d.Edges {
		if e.Kind != EdgeData && e.Kind != EdgeDefUse {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		indeg[e.To]++
		nodes[e.From] = true
		nodes[e.To] = true
	}

	level := map[string]int{}
	var queue []string
	for n := range nodes {
		if indeg[n] == 0 {
			level[n] = 0
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)
	widthByLevel := map[int]int{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		widthByLevel[level[cur]]++
		if level[cur] > depth {
			depth = level[cur]
		}
		for _, next := range adj[cur] {
			if level[cur]+1 > level[next] {
				level[next] = level[cur] + 1
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	for _, w := range widthByLevel {
		if w > width {
			width = w
		}
	}
	if len(nodes) > 0 {
		depth++ // number of levels, not zero-based index
	}
	return depth, width
}
