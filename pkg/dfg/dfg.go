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

// Package dfg builds a data flow graph in static single assignment form for
// a single function clause: every variable binding gets a fresh version,
// every use references the version visible in its scope, and merge points
// in the companion CFG get phi nodes where two predecessors disagree on
// which version is live.
package dfg

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/viant/cgraph/pkg/cfg"
	"github.com/viant/cgraph/pkg/synast"
)

// EdgeKind enumerates DFG edge kinds.
type EdgeKind string

const (
	EdgeData       EdgeKind = "data"
	EdgeDefUse     EdgeKind = "def_use"
	EdgeMutation   EdgeKind = "mutation"
	EdgePipeFlow   EdgeKind = "pipe_flow"
	EdgeCapture    EdgeKind = "capture"
	EdgePhiInput   EdgeKind = "phi_input"
	EdgePhiOutput  EdgeKind = "phi_output"
	EdgePatternBind EdgeKind = "pattern_bind"
)

// Version is one SSA binding of a variable.
type Version struct {
	Name         string // canonical SSA name, "name_vVERSION"
	VarName      string
	VersionNum   int
	ScopeID      string
	DefiningNode string
	ASTNodeID    string // the ast_node_id of the binding site, for CPG unification
	IsParameter  bool
	IsCaptured   bool
	Line         int
}

// SSAName renders the canonical "name_vVERSION" form.
func (v Version) SSAName() string { return fmt.Sprintf("%s_v%d", v.VarName, v.VersionNum) }

// Edge is a DFG edge.
type Edge struct {
	From     string
	To       string
	Kind     EdgeKind
	Variable string
}

// Phi is a phi-node: placed where ≥2 CFG predecessors define distinct
// versions of the same variable that both reach the merge point.
type Phi struct {
	NodeID        string
	TargetVersion string
	ScopeID       string
	Incoming      []PhiInput
}

// PhiInput is one incoming edge of a Phi, in predecessor order.
type PhiInput struct {
	PredecessorExitNode string
	SourceVersion       string
}

// Mutation records a reassignment of an existing binding.
type Mutation struct {
	VarName    string
	ScopeID    string
	FromVersion string
	ToVersion   string
	Kind        string // "reassignment" or "self" (x = x + 1)
}

// Shadow records a child-scope binding hiding a parent-scope one.
type Shadow struct {
	VarName       string
	InnerScopeID  string
	InnerVersion  string
	OuterScopeID  string
	OuterVersion  string
}

// Capture records a free variable read inside a closure/comprehension scope.
type Capture struct {
	VarName      string
	OuterVersion string
	InnerScopeID string
}

// Lifetime describes a version's birth/death lines and read count.
type Lifetime struct {
	SSAName     string
	BirthLine   int
	DeathLine   int
	UsageCount  int
}

// OptimizationHint is a best-effort, advisory suggestion.
type OptimizationHint struct {
	Kind    string // "common_subexpression" | "dead_assignment"
	Detail  string
	NodeIDs []string
}

// DFG is the built data flow graph for one function clause.
type DFG struct {
	Versions  map[string]*Version // keyed by SSAName
	Edges     []Edge
	Phis      []Phi
	Mutations []Mutation
	Shadows   []Shadow
	Captures  []Capture

	Lifetimes        map[string]Lifetime
	UnusedVariables  []string
	OptimizationHints []OptimizationHint
	FanIn, FanOut     map[string]int
	Depth, Width      int
}

// ErrCircularDependency is the sentinel behind DfgError{Kind: CircularDependency}.
var ErrCircularDependency = errors.New("dfg: circular dependency")

// ErrInvalidAST is the sentinel behind DfgError{Kind: InvalidAST}.
var ErrInvalidAST = errors.New("dfg: invalid ast")

// DfgError is the tagged error DFG construction can return.
type DfgError struct {
	Kind string // "circular_dependency" | "invalid_ast"
	Err  error
}

func (e *DfgError) Error() string { return fmt.Sprintf("dfg build failed (%s): %v", e.Kind, e.Err) }
func (e *DfgError) Unwrap() error { return e.Err }

func invalidAST(format string, args ...any) *DfgError {
	return &DfgError{Kind: "invalid_ast", Err: fmt.Errorf(format+": %w", append(args, ErrInvalidAST)...)}
}

func circular(format string, args ...any) *DfgError {
	return &DfgError{Kind: "circular_dependency", Err: fmt.Errorf(format+": %w", append(args, ErrCircularDependency)...)}
}

// Options is empty: the DFG builder takes no tuning options and does not
// bound recursion by path count. It is a separate type from cfg.Options.
type Options struct{}

// binding is the live state for one (name, scope) pair.
type binding struct {
	version *Version
	line    int
}

type depEdge struct{ from, to string } // within-scope assignment dependency, for cycle detection

type builder struct {
	logger *slog.Logger

	versions   map[string]*Version // SSAName -> Version
	edges      []Edge
	phis       []Phi
	mutations  []Mutation
	shadows    []Shadow
	captures   []Capture

	scopeStack []string
	// live bindings per scope: scopeID -> varName -> binding
	live map[string]map[string]*binding
	// version counters per (scope,var)
	counters map[string]int

	deps       map[string][]depEdge       // scopeID -> by-name edges, for circular-dependency check
	scopeNames map[string]map[string]bool // scopeID -> every name ever bound directly in that scope
	nextNodeID int

	reads map[string]int // SSAName -> read count, for unused-variable / lifetime detection
	readLines map[string][]int
	defLine   map[string]int
}

// Build constructs the DFG for fn, given the already-built companion CFG
// (needed to place phi nodes at CFG merge points).
func Build(fn *synast.FunctionAST, c *cfg.CFG, _ Options, logger *slog.Logger) (*DFG, error) {
	if fn == nil || fn.Body == nil {
		return nil, invalidAST("dfg: function ast or body is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &builder{
		logger:     logger,
		versions:   map[string]*Version{},
		live:       map[string]map[string]*binding{},
		counters:   map[string]int{},
		deps:       map[string][]depEdge{},
		scopeNames: map[string]map[string]bool{},
		reads:      map[string]int{},
		readLines:  map[string][]int{},
		defLine:    map[string]int{},
	}

	funcScope := "function"
	b.pushScope(funcScope)
	for _, p := range fn.Params {
		if p != nil && p.Name != "" {
			b.bindParameter(p.Name, funcScope, p.Metadata.Line, p.Metadata.ASTNodeID)
		}
	}
	if fn.Guard != nil {
		b.readExpr(fn.Guard, funcScope)
	}

	var dfgErr *DfgError
	func() {
		defer func() {
			if r := recover(); r != nil {
				dfgErr = invalidAST("dfg: panic during construction: %v", r)
			}
		}()
		b.walk(fn.Body, funcScope)
	}()
	if dfgErr != nil {
		return nil, dfgErr
	}

	if cyc := b.findCycle(); cyc != "" {
		return nil, circular("dfg: cycle detected at %s", cyc)
	}

	if c != nil {
		b.placePhis(c)
	}

	return b.finish(), nil
}

func (b *builder) pushScope(id string) { b.scopeStack = append(b.scopeStack, id) }
func (b *builder) popScope()           { b.scopeStack = b.scopeStack[:len(b.scopeStack)-1] }
func (b *builder) currentScope() string {
	if len(b.scopeStack) == 0 {
		return "function"
	}
	return b.scopeStack[len(b.scopeStack)-1]
}
func (b *builder) parentScope() string {
	if len(b.scopeStack) < 2 {
		return ""
	}
	return b.scopeStack[len(b.scopeStack)-2]
}

func (b *builder) newNodeID() string {
	b.nextNodeID++
	return fmt.Sprintf("d%d", b.nextNodeID)
}

func (b *builder) counterKey(scope, name string) string { return scope + "|" + name }

func (b *builder) bindParameter(name, scope string, line int, astNodeID string) *Version {
	key := b.counterKey(scope, name)
	v := &Version{Name: name, VarName: name, VersionNum: 0, ScopeID: scope, IsParameter: true, Line: line, ASTNodeID: astNodeID}
	v.DefiningNode = b.newNodeID()
	b.counters[key] = 0
	b.setLive(scope, name, v, line)
	b.versions[v.SSAName()] = v
	b.defLine[v.SSAName()] = line
	return v
}

func (b *builder) setLive(scope, name string, v *Version, line int) {
	if b.live[scope] == nil {
		b.live[scope] = map[string]*binding{}
	}
	b.live[scope][name] = &binding{version: v, line: line}
}

// lookup finds the live binding for name, searching from the current scope
// outward through its lexical ancestors (scopeStack, innermost first).
func (b *builder) lookup(name string) (*binding, string, bool) {
	for i := len(b.scopeStack) - 1; i >= 0; i-- {
		scope := b.scopeStack[i]
		if m, ok := b.live[scope]; ok {
			if bind, ok := m[name]; ok {
				return bind, scope, true
			}
		}
	}
	return nil, "", false
}

// bind creates a new SSA version for name in the current scope, recording a
// mutation/shadow relationship per spec.md's rules, and wires data edges
// from every free variable read while evaluating the source expression.
func (b *builder) bind(name string, scope string, line int, freeReads []string, selfDependent bool, astNodeID string) *Version {
	key := b.counterKey(scope, name)

	// Every branch below binds name directly into scope, so the
	// scope-membership record used by the cycle check is populated once
	// up front, before evaluation order can matter.
	if b.scopeNames[scope] == nil {
		b.scopeNames[scope] = map[string]bool{}
	}
	b.scopeNames[scope][name] = true

	existingHere, hereOK := b.live[scope][name]
	if hereOK {
		next := b.counters[key] + 1
		b.counters[key] = next
		v := &Version{Name: name, VarName: name, VersionNum: next, ScopeID: scope, Line: line, ASTNodeID: astNodeID}
		v.DefiningNode = b.newNodeID()
		kind := "reassignment"
		if selfDependent {
			kind = "self"
		}
		b.mutations = append(b.mutations, Mutation{
			VarName: name, ScopeID: scope,
			FromVersion: existingHere.version.SSAName(), ToVersion: v.SSAName(), Kind: kind,
		})
		// Resolve reads (including a self-reference) against the prior
		// binding before it is overwritten below.
		b.wireReads(v, freeReads, scope, selfDependent)
		b.setLive(scope, name, v, line)
		b.versions[v.SSAName()] = v
		b.defLine[v.SSAName()] = line
		return v
	}

	if outerBind, outerScope, ok := b.lookup(name); ok && outerScope != scope {
		v := &Version{Name: name, VarName: name, VersionNum: 0, ScopeID: scope, Line: line, ASTNodeID: astNodeID}
		v.DefiningNode = b.newNodeID()
		b.counters[key] = 0
		b.shadows = append(b.shadows, Shadow{
			VarName: name, InnerScopeID: scope, InnerVersion: v.SSAName(),
			OuterScopeID: outerScope, OuterVersion: outerBind.version.SSAName(),
		})
		b.wireReads(v, freeReads, scope, selfDependent)
		b.setLive(scope, name, v, line)
		b.versions[v.SSAName()] = v
		b.defLine[v.SSAName()] = line
		return v
	}

	v := &Version{Name: name, VarName: name, VersionNum: 0, ScopeID: scope, Line: line, ASTNodeID: astNodeID}
	v.DefiningNode = b.newNodeID()
	b.counters[key] = 0
	b.wireReads(v, freeReads, scope, selfDependent)
	b.setLive(scope, name, v, line)
	b.versions[v.SSAName()] = v
	b.defLine[v.SSAName()] = line
	return v
}

// wireReads connects every free variable read during evaluation of the
// source expression to the new definition (when it already resolves to a
// live binding), and unconditionally records a by-name dependency edge for
// the circular-dependency check. The by-name edge is recorded even when the
// read is a forward reference that lookup cannot yet resolve (the binding
// it names hasn't been evaluated), since the cycle check must see the
// dependency regardless of source order; findCycle later keeps only the
// edges whose "from" name is actually bound within the same scope,
// discarding genuine outer captures.
func (b *builder) wireReads(def *Version, freeReads []string, scope string, selfDependent bool) {
	for _, name := range freeReads {
		if bind, _, ok := b.lookup(name); ok {
			b.edges = append(b.edges, Edge{From: bind.version.SSAName(), To: def.SSAName(), Kind: EdgeData, Variable: name})
			b.edges = append(b.edges, Edge{From: bind.version.SSAName(), To: def.SSAName(), Kind: EdgeDefUse, Variable: name})
		}
		if selfDependent && name == def.VarName {
			continue
		}
		b.deps[scope] = append(b.deps[scope], depEdge{from: name, to: def.VarName})
	}
}

// walk performs the data-flow-tracking dispatch over a construct, mirroring
// cfg's control-flow dispatch but recording bindings/reads instead of
// nodes/edges.
func (b *builder) walk(n *synast.Node, scope string) {
	if n == nil {
		return
	}
	switch n.Tag {
	case synast.TagBlock:
		for _, stmt := range n.Children("statements") {
			b.walk(stmt, scope)
		}
	case synast.TagAssign:
		b.walkAssign(n, scope)
	case synast.TagPipe:
		b.walkPipe(n, scope)
	case synast.TagIf:
		b.readExpr(n.Field("cond"), scope)
		b.walkBranch(n.Field("then"), scope)
		if els := n.Field("else"); els != nil {
			b.walkBranch(els, scope)
		}
	case synast.TagUnless:
		b.readExpr(n.Field("cond"), scope)
		b.walkBranch(n.Field("then"), scope)
		if els := n.Field("else"); els != nil {
			b.walkBranch(els, scope)
		}
	case synast.TagCase, synast.TagCond, synast.TagWith, synast.TagReceive:
		if scrut := n.Field("scrutinee"); scrut != nil {
			b.readExpr(scrut, scope)
		}
		for _, clause := range n.Children("clauses") {
			b.walkClause(clause, scope)
		}
	case synast.TagTry:
		b.walkBranch(n.Field("body"), scope)
		for _, r := range n.Children("rescue") {
			b.walkClause(r, scope)
		}
		for _, cclause := range n.Children("catch") {
			b.walkClause(cclause, scope)
		}
		if after := n.Field("after"); after != nil {
			b.walkBranch(after, scope)
		}
	case synast.TagFor:
		b.walkComprehension(n, scope)
	case synast.TagFn:
		b.walkFn(n, scope)
	case synast.TagSend:
		b.readExpr(n.Field("channel"), scope)
		b.readExpr(n.Field("value"), scope)
	case synast.TagSpawn:
		b.readExpr(n.Field("call"), scope)
	case synast.TagRaise, synast.TagThrow, synast.TagExit:
		b.readExpr(n.Field("expr"), scope)
	case synast.TagCall:
		b.readExpr(n, scope)
	default:
		b.readExpr(n, scope)
	}
}

// walkBranch runs a nested block/expression in the same scope: if/unless
// branches and try's body and after block share the enclosing scope for
// data-flow purposes. Clauses of case/cond/with/receive and try's
// rescue/catch clauses go through walkClause, which opens a scope per clause.
func (b *builder) walkBranch(n *synast.Node, scope string) { b.walk(n, scope) }

func (b *builder) walkAssign(n *synast.Node, scope string) {
	pattern := n.Field("pattern")
	expr := n.Field("expr")
	freeReads := freeVariableReads(expr)
	b.readExprNoBind(expr, scope)
	b.bindPattern(pattern, scope, n.Metadata.Line, freeReads)
}

// bindPattern recursively decomposes a pattern into position-tagged
// bindings; a plain variable_ref binds directly, while composite patterns
// (map/tuple/list/struct) bind each element against a synthetic access into
// the parent value.
func (b *builder) bindPattern(pattern *synast.Node, scope string, line int, freeReads []string) {
	if pattern == nil {
		return
	}
	switch pattern.Tag {
	case synast.TagVariableRef:
		if pattern.Name == "" || pattern.Name == "_" {
			return
		}
		selfDependent := containsName(freeReads, pattern.Name)
		b.bind(pattern.Name, scope, line, freeReads, selfDependent, pattern.Metadata.ASTNodeID)
	case synast.TagMap, synast.TagTuple, synast.TagList, synast.TagStruct:
		for _, name := range sortedListKeys(pattern.List) {
			for _, el := range pattern.List[name] {
				b.bindPattern(el, scope, line, []string{}) // synthetic access(parent, key) has no additional free reads
			}
		}
	default:
		// literal sub-patterns bind nothing.
	}
}

func sortedListKeys(m map[string][]*synast.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (b *builder) walkPipe(n *synast.Node, scope string) {
	left := n.Field("left")
	right := n.Field("right")
	b.readExpr(left, scope)
	// result(L) -> first-arg(R): when right is a call and left is a bare
	// variable with a live version, record a pipe_flow edge from that
	// version to a synthetic "call:<name>:<line>" sink; the right side is
	// then walked normally so its own bindings happen.
	if right != nil && right.Tag == synast.TagCall {
		args := right.Children("args")
		leftVersion := b.mostRecentRead(left)
		if leftVersion != "" && len(args) >= 0 {
			sink := fmt.Sprintf("call:%s:%d", right.Name, right.Metadata.Line)
			b.edges = append(b.edges, Edge{From: leftVersion, To: sink, Kind: EdgePipeFlow})
		}
	}
	b.walk(right, scope)
}

// mostRecentRead resolves an expression that is (or reduces to) a bare
// variable reference to its live SSA name, for pipe-flow edge sourcing.
func (b *builder) mostRecentRead(n *synast.Node) string {
	if n == nil || n.Tag != synast.TagVariableRef {
		return ""
	}
	if bind, _, ok := b.lookup(n.Name); ok {
		return bind.version.SSAName()
	}
	return ""
}

func (b *builder) walkClause(clause *synast.Node, parentScope string) {
	scope := fmt.Sprintf("%s/clause@%d", parentScope, clause.Metadata.Line)
	b.pushScope(scope)
	b.bindPattern(clause.Field("pattern"), scope, clause.Metadata.Line, nil)
	if guard := clause.Field("guard"); guard != nil {
		b.readExpr(guard, scope)
	}
	b.walk(clause.Field("body"), scope)
	b.popScope()
}

func (b *builder) walkComprehension(n *synast.Node, parentScope string) {
	scope := fmt.Sprintf("%s/for@%d", parentScope, n.Metadata.Line)
	outerReadsBefore := map[string]bool{}
	b.pushScope(scope)
	for _, gen := range n.Children("generators") {
		b.readExpr(gen, parentScope)
	}
	for _, f := range n.Children("filters") {
		b.readExpr(f, scope)
	}
	before := len(b.edges)
	b.walk(n.Field("body"), scope)
	b.recordCaptures(scope, parentScope, before, outerReadsBefore)
	b.popScope()
}

func (b *builder) walkFn(n *synast.Node, parentScope string) {
	for _, clause := range n.Children("clauses") {
		scope := fmt.Sprintf("%s/fn@%d", parentScope, clause.Metadata.Line)
		b.pushScope(scope)
		b.bindPattern(clause.Field("pattern"), scope, clause.Metadata.Line, nil)
		b.walk(clause.Field("body"), scope)
		b.recordCaptures(scope, parentScope, 0, nil)
		b.popScope()
	}
}

// recordCaptures scans the reads performed inside scope and, for every name
// that resolved to a binding outside scope, records a Capture + capture
// edge. This is a best-effort post-hoc scan over the accumulated edges
// rather than a live set, since reads are wired immediately as they occur.
func (b *builder) recordCaptures(innerScope, outerScope string, _ int, _ map[string]bool) {
	seen := map[string]bool{}
	for _, e := range b.edges {
		if e.Kind != EdgeData && e.Kind != EdgeDefUse {
			continue
		}
		v, ok := b.versions[e.From]
		if !ok || v.ScopeID == innerScope || seen[e.From] {
			continue
		}
		if !scopeIsAncestorOrSelf(b, v.ScopeID, innerScope) {
			continue
		}
		if v.ScopeID == outerScope || isAncestorScope(v.ScopeID, innerScope) {
			seen[e.From] = true
			b.captures = append(b.captures, Capture{VarName: v.VarName, OuterVersion: e.From, InnerScopeID: innerScope})
			b.edges = append(b.edges, Edge{From: e.From, To: innerScope, Kind: EdgeCapture, Variable: v.VarName})
		}
	}
}

// scopeIsAncestorOrSelf and isAncestorScope are conservative string-prefix
// checks: child scope ids are formed as "<parent>/<kind>@<line>", so a
// parent id is always a prefix of every descendant id.
func scopeIsAncestorOrSelf(_ *builder, candidate, scope string) bool {
	return candidate == scope || isAncestorScope(candidate, scope)
}

func isAncestorScope(candidate, scope string) bool {
	if candidate == scope {
		return false
	}
	return len(scope) > len(candidate) && scope[:len(candidate)] == candidate
}

// readExpr records one read of the live version of every free variable in
// n (for lifetimes and unused-variable detection) and walks nested
// constructs in n; it adds no DFG edges. Used for expressions that are not
// themselves bindings (conditions, guards, call arguments).
func (b *builder) readExpr(n *synast.Node, scope string) {
	for _, name := range freeVariableReads(n) {
		if bind, _, ok := b.lookup(name); ok {
			b.reads[bind.version.SSAName()]++
			b.readLines[bind.version.SSAName()] = append(b.readLines[bind.version.SSAName()], n.Metadata.Line)
		}
	}
	b.walkNested(n, scope)
}

// readExprNoBind reads the source expression of an assignment before its
// pattern is bound, so the new version's reads reflect the prior bindings
// rather than the one about to be created.
func (b *builder) readExprNoBind(n *synast.Node, scope string) { b.readExpr(n, scope) }

// walkNested recurses into call arguments, operator operands, and similar
// sub-expressions that can themselves contain case/fn/pipe constructs.
func (b *builder) walkNested(n *synast.Node, scope string) {
	if n == nil {
		return
	}
	switch n.Tag {
	case synast.TagCall:
		for _, arg := range n.Children("args") {
			b.readExpr(arg, scope)
		}
	case synast.TagBinaryOp:
		b.readExpr(n.Field("left"), scope)
		b.readExpr(n.Field("right"), scope)
	case synast.TagUnaryOp:
		b.readExpr(n.Field("operand"), scope)
	case synast.TagAccess:
		b.readExpr(n.Field("object"), scope)
		b.readExpr(n.Field("index"), scope)
	case synast.TagAttribute:
		b.readExpr(n.Field("object"), scope)
	case synast.TagCase, synast.TagCond, synast.TagWith, synast.TagReceive, synast.TagIf, synast.TagTry, synast.TagFor, synast.TagFn, synast.TagPipe:
		b.walk(n, scope)
	}
}

// freeVariableReads collects every variable_ref name referenced transitively
// under n, stopping at nested binding constructs' own pattern positions
// (those are handled by their own walk* methods).
func freeVariableReads(n *synast.Node) []string {
	var names []string
	var visit func(*synast.Node)
	visit = func(cur *synast.Node) {
		if cur == nil {
			return
		}
		if cur.Tag == synast.TagVariableRef && cur.Name != "" && cur.Name != "_" {
			names = append(names, cur.Name)
			return
		}
		for _, name := range sortedFieldNames(cur.Fields) {
			if name == "pattern" {
				continue
			}
			visit(cur.Fields[name])
		}
		for _, name := range sortedListKeys(cur.List) {
			for _, c := range cur.List[name] {
				visit(c)
			}
		}
	}
	visit(n)
	return names
}

func sortedFieldNames(m map[string]*synast.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findCycle runs DFS cycle detection over the within-scope dependency graph,
// keyed by variable name rather than SSA version so that mutually-referential
// forward references (e.g. `x = y + 1; y = x + 1`, where `y` is read before
// it is ever bound) are still caught: wireReads records a by-name edge for
// every free read regardless of whether lookup could resolve it at the time,
// so here we keep only edges whose source name was bound somewhere in the
// same scope — true outer captures are dropped, since those aren't part of
// this scope's assignment graph. Returns the scope id where a cycle was
// found, or "".
func (b *builder) findCycle() string {
	for scope, edges := range b.deps {
		names := b.scopeNames[scope]
		adj := map[string][]string{}
		for _, e := range edges {
			if !names[e.from] {
				continue
			}
			adj[e.from] = append(adj[e.from], e.to)
		}
		const (
			white = 0
			gray  = 1
			black = 2
		)
		color := map[string]int{}
		var visit func(string) bool
		visit = func(node string) bool {
			color[node] = gray
			for _, next := range adj[node] {
				switch color[next] {
				case gray:
					return true
				case white:
					if visit(next) {
						return true
					}
				}
			}
			color[node] = black
			return false
		}
		for node := range adj {
			if color[node] == white {
				if visit(node) {
					return scope
				}
			}
		}
	}
	return ""
}

func (b *builder) finish() *DFG {
	d := &DFG{
		Versions:  b.versions,
		Edges:     b.edges,
		Phis:      b.phis,
		Mutations: b.mutations,
		Shadows:   b.shadows,
		Captures:  b.captures,
	}
	d.Lifetimes, d.UnusedVariables = computeLifetimes(b)
	d.OptimizationHints = computeOptimizationHints(b, d.UnusedVariables)
	d.FanIn, d.FanOut = computeFanInOut(d.Edges)
	d.Depth, d.Width = computeDepthWidth(d)
	return d
}
