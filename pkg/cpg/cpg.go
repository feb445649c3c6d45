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

// Package cpg unifies a function's CFG and DFG into one labelled property
// graph keyed by the common ast_node_id, with cross-layer mappings, finalized
// indexes, and a set of best-effort advisory analyses (security heuristics,
// performance hotspots, code smells, maintainability index).
package cpg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/cgraph/pkg/cfg"
	"github.com/viant/cgraph/pkg/dfg"
	"github.com/viant/cgraph/pkg/synast"
)

// Layer identifies which source graph(s) contributed a CPG node/edge.
type Layer string

const (
	LayerControl Layer = "control"
	LayerData    Layer = "data"
)

// Node is a unified CPG node: a CFG projection, a DFG projection, or both.
type Node struct {
	ID       string // the common identifier (ast_node_id, or a synthetic key when absent)
	Layers   map[Layer]bool
	CFG      *cfg.Node
	DFG      *dfg.Version
	Line     int
	ASTType  string
	ScopeID  string
}

// Edge is a unified CPG edge; duplicates are allowed across layers, never
// within one.
type Edge struct {
	From     string
	To       string
	Layer    Layer
	Kind     string
	Metadata map[string]string
}

// Mappings hold cross-layer navigation tables.
type Mappings struct {
	ASTToCFG map[string]string // ast_node_id -> cfg node id
	ASTToDFG map[string]string // ast_node_id -> dfg SSA name
	CFGToDFG map[string][]string
	DFGToCFG map[string][]string
}

// Indexes are built at finalisation, per spec.md §4.4.
type Indexes struct {
	ByKind     map[string][]string
	ByLine     map[int][]string
	byScope    map[string][]string
	ByVariable map[string][]string
	ByCallee   map[string][]string
}

// ByScope exposes the scope index (unexported field, exported accessor, to
// keep the zero value usable in tests without nil-map special-casing).
func (ix Indexes) ByScope(scope string) []string { return ix.byScope[scope] }

// SecurityFinding is a best-effort taint source->sink heuristic result.
type SecurityFinding struct {
	SourceNode string
	SinkNode   string
	Detail     string
}

// Hotspot flags a performance-relevant shape (nested loop, expensive op).
type Hotspot struct {
	NodeID string
	Kind   string
	Detail string
}

// Smell flags a maintainability-relevant shape.
type Smell struct {
	Kind   string
	Detail string
	NodeID string
}

// Advisory bundles the best-effort derived analyses. A zero value is valid
// (all analyses empty) and is never itself a build failure.
type Advisory struct {
	Security            []SecurityFinding
	Hotspots            []Hotspot
	Smells              []Smell
	MaintainabilityIndex float64
	TechnicalDebtRatio   float64
}

// CPG is the unified, finalised graph for one function clause.
type CPG struct {
	Nodes    map[string]*Node
	Edges    []Edge
	Mappings   Mappings
	Indexes    Indexes
	Advisory   Advisory
	Complexity cfg.ComplexityMetrics
}

var (
	// ErrCfgFailed is the sentinel behind CpgError{Kind: CfgFailed}.
	ErrCfgFailed = errors.New("cpg: cfg build failed")
	// ErrDfgFailed is the sentinel behind CpgError{Kind: DfgFailed}.
	ErrDfgFailed = errors.New("cpg: dfg build failed")
	// ErrInterproceduralUnsupported is the sentinel for multi-function input.
	ErrInterproceduralUnsupported = errors.New("cpg: interprocedural analysis unsupported")
	// ErrTimeout is the sentinel behind CpgError{Kind: Timeout}.
	ErrTimeout = errors.New("cpg: deadline exceeded")
)

// CpgError is the tagged error CPG construction can return.
type CpgError struct {
	Kind string // "cfg_failed" | "dfg_failed" | "interprocedural_unsupported" | "timeout"
	Err  error
}

func (e *CpgError) Error() string { return fmt.Sprintf("cpg build failed (%s): %v", e.Kind, e.Err) }
func (e *CpgError) Unwrap() error { return e.Err }

// Options configures CFG/DFG sub-builder bounds and the CPG build deadline.
type Options struct {
	CFG     cfg.Options
	Timeout time.Duration
}

// DefaultOptions matches spec.md's baseline deadline.
func DefaultOptions() Options {
	return Options{CFG: cfg.DefaultOptions(), Timeout: 10 * time.Second}
}

// Build runs the CFG and DFG builders and unifies their output. It takes
// exactly one function clause, so interprocedural input cannot reach it and
// no separate check for it is made. ctx/opts.Timeout bound the whole build:
// on overrun Build returns a timeout error, while the CFG/DFG builders,
// which take no context, run on in their goroutine until they finish.
func Build(ctx context.Context, fn *synast.FunctionAST, opts Options, logger *slog.Logger) (*CPG, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts = DefaultOptions()
	}

	deadline := opts.Timeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}
	buildCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		c   *CPG
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := build(fn, opts, logger)
		done <- result{c, err}
	}()

	select {
	case <-buildCtx.Done():
		return nil, &CpgError{Kind: "timeout", Err: fmt.Errorf("cpg: build exceeded %s: %w", deadline, ErrTimeout)}
	case r := <-done:
		return r.c, r.err
	}
}

func build(fn *synast.FunctionAST, opts Options, logger *slog.Logger) (*CPG, error) {
	builtCFG, err := cfg.Build(fn, opts.CFG, logger)
	if err != nil {
		return nil, &CpgError{Kind: "cfg_failed", Err: fmt.Errorf("%w: %v", ErrCfgFailed, err)}
	}
	builtDFG, err := dfg.Build(fn, builtCFG, dfg.Options{}, logger)
	if err != nil {
		return nil, &CpgError{Kind: "dfg_failed", Err: fmt.Errorf("%w: %v", ErrDfgFailed, err)}
	}
	return unify(builtCFG, builtDFG), nil
}

// unify implements spec.md's node/edge/mapping rules.
func unify(c *cfg.CFG, d *dfg.DFG) *CPG {
	nodes := map[string]*Node{}
	mappings := Mappings{
		ASTToCFG: map[string]string{},
		ASTToDFG: map[string]string{},
		CFGToDFG: map[string][]string{},
		DFGToCFG: map[string][]string{},
	}

	keyFor := func(astNodeID, fallback string) string {
		if astNodeID != "" {
			return astNodeID
		}
		return fallback
	}

	// cfgIDToKey/dfgNameToKey translate the CFG's/DFG's own node identifiers
	// (cfg node ID, SSA name) to the CPG node key they were unified under,
	// so edges - which arrive from c.Edges/d.Edges carrying those original
	// identifiers - can be rewritten to point at real CPG node ids.
	cfgIDToKey := map[string]string{}
	dfgNameToKey := map[string]string{}

	for _, n := range c.Nodes {
		key := keyFor(n.ASTNodeID, "cfg:"+n.ID)
		cfgIDToKey[n.ID] = key
		node, ok := nodes[key]
		if !ok {
			node = &Node{ID: key, Layers: map[Layer]bool{}}
			nodes[key] = node
		}
		node.Layers[LayerControl] = true
		node.CFG = n
		node.Line = n.Line
		node.ASTType = string(n.Kind)
		node.ScopeID = n.ScopeID
		if n.ASTNodeID != "" {
			mappings.ASTToCFG[n.ASTNodeID] = n.ID
		}
	}

	for _, v := range d.Versions {
		key := keyFor(v.ASTNodeID, "dfg:"+v.SSAName())
		dfgNameToKey[v.SSAName()] = key
		node, ok := nodes[key]
		if !ok {
			node = &Node{ID: key, Layers: map[Layer]bool{}}
			nodes[key] = node
		}
		node.Layers[LayerData] = true
		node.DFG = v
		if node.Line == 0 {
			node.Line = v.Line
		}
		if node.ScopeID == "" {
			node.ScopeID = v.ScopeID
		}
		if v.ASTNodeID != "" {
			mappings.ASTToDFG[v.ASTNodeID] = v.SSAName()
		}
	}

	for astID, cfgID := range mappings.ASTToCFG {
		if dfgID, ok := mappings.ASTToDFG[astID]; ok {
			mappings.CFGToDFG[cfgID] = append(mappings.CFGToDFG[cfgID], dfgID)
			mappings.DFGToCFG[dfgID] = append(mappings.DFGToCFG[dfgID], cfgID)
		}
	}

	// Edge endpoints must resolve to CPG node ids (R2/R3), so every
	// endpoint is translated through the same keying used to build nodes
	// above, never left as a raw cfg node ID or SSA name.
	cfgKey := func(id string) string {
		if key, ok := cfgIDToKey[id]; ok {
			return key
		}
		return "cfg:" + id
	}
	dfgKey := func(name string) string {
		if key, ok := dfgNameToKey[name]; ok {
			return key
		}
		return "dfg:" + name
	}

	var edges []Edge
	for _, e := range c.Edges {
		edges = append(edges, Edge{From: cfgKey(e.From), To: cfgKey(e.To), Layer: LayerControl, Kind: string(e.Kind), Metadata: e.Metadata})
	}
	for _, e := range d.Edges {
		edges = append(edges, Edge{From: dfgKey(e.From), To: dfgKey(e.To), Layer: LayerData, Kind: string(e.Kind), Metadata: map[string]string{"variable": e.Variable}})
	}

	cp := &CPG{Nodes: nodes, Edges: edges, Mappings: mappings, Complexity: c.Complexity}
	cp.Indexes = buildIndexes(cp)
	cp.Advisory = computeAdvisory(c, d, cp)
	return cp
}

func buildIndexes(c *CPG) Indexes {
	ix := Indexes{
		ByKind:     map[string][]string{},
		ByLine:     map[int][]string{},
		byScope:    map[string][]string{},
		ByVariable: map[string][]string{},
		ByCallee:   map[string][]string{},
	}
	for id, n := range c.Nodes {
		if n.ASTType != "" {
			ix.ByKind[n.ASTType] = append(ix.ByKind[n.ASTType], id)
		}
		if n.Line > 0 {
			ix.ByLine[n.Line] = append(ix.ByLine[n.Line], id)
		}
		if n.ScopeID != "" {
			ix.byScope[n.ScopeID] = append(ix.byScope[n.ScopeID], id)
		}
		if n.DFG != nil {
			ix.ByVariable[n.DFG.VarName] = append(ix.ByVariable[n.DFG.VarName], id)
		}
		if n.CFG != nil && n.CFG.Kind == cfg.KindFunctionCall && n.CFG.ExpressionRef != "" {
			ix.ByCallee[n.CFG.ExpressionRef] = append(ix.ByCallee[n.CFG.ExpressionRef], id)
		}
	}
	return ix
}
