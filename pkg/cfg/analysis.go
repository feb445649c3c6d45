// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cfg

// computeComplexity derives cyclomatic and cognitive complexity from the
// decision-point count, per spec.md's rule table: case/cond clauses-1,
// conditional 1, guard_check 1, try 1, with 1, comprehension its own
// contribution, pipe 1 iff filter-style. Cognitive complexity adds a 0.5
// nesting penalty per scope-depth level at each decision node.
func computeComplexity(c *CFG) ComplexityMetrics {
	depth := scopeDepths(c)

	decisionPoints := 0
	cognitive := 0.0
	maxDepth := 0

	for _, n := range c.Nodes {
		d := depth[n.ScopeID]
		if d > maxDepth {
			maxDepth = d
		}
		switch n.Kind {
		case KindCase, KindCond:
			clauses := 0
			if v, ok := n.Metadata["clause_count"]; ok {
				clauses = atoiSafe(v)
			}
			if clauses > 0 {
				decisionPoints += clauses - 1
				cognitive += float64(clauses-1) * (1 + 0.5*float64(d))
			}
		case KindConditional, KindGuardCheck, KindTry:
			decisionPoints++
			cognitive += 1 + 0.5*float64(d)
		case KindComprehension:
			contribution := 1
			if v, ok := n.Metadata["complexity_contribution"]; ok {
				contribution = atoiSafe(v)
			}
			decisionPoints += contribution
			cognitive += float64(contribution) * (1 + 0.5*float64(d))
		case KindPipe:
			if isFilterStylePipe(c, n) {
				decisionPoints++
				cognitive += 1 + 0.5*float64(d)
			}
		}
	}

	return ComplexityMetrics{
		DecisionPoints: decisionPoints,
		Cyclomatic:     decisionPoints + 1,
		Cognitive:      cognitive,
		NestingDepth:   maxDepth,
		LinesOfCode:    countLines(c),
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// isFilterStylePipe reports whether the pipe node's right-hand side was a
// call to a filter-style function. The right side's call node is a
// successor of the pipe node whose expression_ref carries the call name;
// builders tag this via the node immediately following the pipe node when
// it is a function_call.
func isFilterStylePipe(c *CFG, pipeNode *Node) bool {
	for _, succID := range c.Successors(pipeNode.ID) {
		succ := c.Nodes[succID]
		if succ == nil || succ.Kind != KindFunctionCall {
			continue
		}
		if isFilterStyleName(succ.ExpressionRef) {
			return true
		}
	}
	return false
}

func isFilterStyleName(name string) bool {
	switch name {
	case "filter", "reject", "find", "any?", "all?":
		return true
	default:
		return false
	}
}

// scopeDepths computes each scope's depth from the function scope (depth 0).
func scopeDepths(c *CFG) map[string]int {
	depths := map[string]int{}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depths[id]; ok {
			return d
		}
		s, ok := c.Scopes[id]
		if !ok || s.Parent == "" {
			depths[id] = 0
			return 0
		}
		d := depthOf(s.Parent) + 1
		depths[id] = d
		return d
	}
	for id := range c.Scopes {
		depthOf(id)
	}
	return depths
}

func countLines(c *CFG) int {
	min, max := -1, -1
	for _, n := range c.Nodes {
		if n.Line <= 0 {
			continue
		}
		if min == -1 || n.Line < min {
			min = n.Line
		}
		if n.Line > max {
			max = n.Line
		}
	}
	if min == -1 {
		return 0
	}
	return max - min + 1
}

// detectLoops finds back-edges (edges whose From is reachable again from
// their To) and classifies infinite-loop risk by the number of back-edges
// sharing a header: 1 is medium, 2 or more is high. "low" (no back-edge) is
// never reported, since every LoopInfo comes from a back-edge.
func detectLoops(c *CFG) []LoopInfo {
	reachable := reachabilityIndex(c)

	var loops []LoopInfo
	perHeader := map[string]int{}
	for _, e := range c.Edges {
		if reachable[e.To][e.From] {
			perHeader[e.To]++
		}
	}
	for _, e := range c.Edges {
		if !reachable[e.To][e.From] {
			continue
		}
		count := perHeader[e.To]
		risk := "low"
		switch {
		case count >= 2:
			risk = "high"
		case count == 1:
			risk = "medium"
		}
		loops = append(loops, LoopInfo{HeaderNode: e.To, BackEdge: e, Risk: risk})
	}
	return loops
}

// reachabilityIndex computes, for every node, the set of nodes reachable
// from it (bounded by the graph's own finite size; CFGs built by this
// package have no unbounded fan-out).
func reachabilityIndex(c *CFG) map[string]map[string]bool {
	index := make(map[string]map[string]bool, len(c.Nodes))
	for id := range c.Nodes {
		visited := map[string]bool{}
		var visit func(string)
		visit = func(cur string) {
			for _, next := range c.Successors(cur) {
				if visited[next] {
					continue
				}
				visited[next] = true
				visit(next)
			}
		}
		visit(id)
		index[id] = visited
	}
	return index
}

// unreachableNodes returns CFG node ids not reachable from entry.
func unreachableNodes(c *CFG) []string {
	visited := map[string]bool{c.EntryID: true}
	var visit func(string)
	visit = func(cur string) {
		for _, next := range c.Successors(cur) {
			if visited[next] {
				continue
			}
			visited[next] = true
			visit(next)
		}
	}
	visit(c.EntryID)

	var unreached []string
	for id := range c.Nodes {
		if !visited[id] {
			unreached = append(unreached, id)
		}
	}
	return unreached
}

// enumeratePaths performs a bounded DFS from entry to exit, returning
// (feasiblePaths, totalPaths). total counts every simple path the walk
// ends, capped at opts.MaxPaths: paths that reach exit, paths cut off at
// opts.MaxDepth, and dead ends. feasible counts only the paths that reach
// exit. Successors already on the current path are skipped, so a back-edge
// never produces a path of its own.
func enumeratePaths(c *CFG, opts Options) (feasible int, total int) {
	var walk func(cur string, visited map[string]bool, depth int)
	walk = func(cur string, visited map[string]bool, depth int) {
		if total >= opts.MaxPaths {
			return
		}
		if cur == c.ExitID {
			total++
			feasible++
			return
		}
		if depth >= opts.MaxDepth {
			total++
			return
		}
		succs := c.Successors(cur)
		if len(succs) > opts.MaxFanout {
			succs = succs[:opts.MaxFanout]
		}
		branched := false
		for _, next := range succs {
			if visited[next] {
				continue
			}
			branched = true
			visited[next] = true
			walk(next, visited, depth+1)
			delete(visited, next)
			if total >= opts.MaxPaths {
				return
			}
		}
		if !branched && len(succs) == 0 {
			// dead end that never reached exit; still counts as one path
			total++
		}
	}
	walk(c.EntryID, map[string]bool{c.EntryID: true}, 0)
	return feasible, total
}
