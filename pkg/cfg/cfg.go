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

// Package cfg builds a control flow graph for a single function clause: a
// depth-first dispatch over synast.Node constructs that tracks, for every
// sub-construct it processes, the set of CFG nodes where control leaves it
// (its exit set), and wires those into the next construct in sequence.
package cfg

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/viant/cgraph/pkg/synast"
)

// NodeKind enumerates CFG node kinds, per the spec's data model.
type NodeKind string

const (
	KindEntry        NodeKind = "entry"
	KindExit         NodeKind = "exit"
	KindExpression   NodeKind = "expression"
	KindAssignment   NodeKind = "assignment"
	KindConditional  NodeKind = "conditional"
	KindCase         NodeKind = "case"
	KindCaseClause   NodeKind = "case_clause"
	KindCond         NodeKind = "cond"
	KindTry          NodeKind = "try"
	KindRescue       NodeKind = "rescue"
	KindCatch        NodeKind = "catch"
	KindGuardCheck   NodeKind = "guard_check"
	KindFunctionCall NodeKind = "function_call"
	KindPipe         NodeKind = "pipe"
	KindComprehension NodeKind = "comprehension"
	KindSend         NodeKind = "send"
	KindSpawn        NodeKind = "spawn"
	KindReceive      NodeKind = "receive"
	KindRaise        NodeKind = "raise"
	KindThrow        NodeKind = "throw"
	KindExitCall     NodeKind = "exit_call"
	KindVariableRef  NodeKind = "variable_ref"
	KindLiteral      NodeKind = "literal"
)

// EdgeKind enumerates CFG edge kinds.
type EdgeKind string

const (
	EdgeSequential       EdgeKind = "sequential"
	EdgeConditionalTrue  EdgeKind = "conditional_true"
	EdgeConditionalFalse EdgeKind = "conditional_false"
	EdgePatternMatch     EdgeKind = "pattern_match"
	EdgeException        EdgeKind = "exception"
	EdgeCall             EdgeKind = "call"
	EdgeReturn           EdgeKind = "return"
)

// ScopeKind enumerates scope kinds.
type ScopeKind string

const (
	ScopeFunction     ScopeKind = "function"
	ScopeCaseClause   ScopeKind = "case_clause"
	ScopeIfThen       ScopeKind = "if_then"
	ScopeIfElse       ScopeKind = "if_else"
	ScopeRescue       ScopeKind = "rescue"
	ScopeCatch        ScopeKind = "catch"
	ScopeAnonymousFn  ScopeKind = "anonymous_fn"
	ScopeComprehension ScopeKind = "comprehension"
)

// Node is a CFG node. Predecessor/successor sets are derived from the edge
// list on demand, never stored redundantly.
type Node struct {
	ID            string
	Kind          NodeKind
	ScopeID       string
	Line          int
	ASTNodeID     string
	ExpressionRef string
	Metadata      map[string]string
}

// Edge is a CFG edge.
type Edge struct {
	From        string
	To          string
	Kind        EdgeKind
	Condition   string
	Probability float64
	Metadata    map[string]string
}

// Scope is a lexical scope within the function; scopes form a strict tree.
type Scope struct {
	ID        string
	Kind      ScopeKind
	Parent    string
	Variables []string
	ASTNodeID string
}

// ErrInvalidAST is the sentinel behind CfgError{Kind: InvalidAST}.
var ErrInvalidAST = errors.New("cfg: invalid ast")

// CfgError is the tagged error CFG construction can return.
type CfgError struct {
	Kind string // always "invalid_ast" today; field exists for forward compat
	Err  error
}

func (e *CfgError) Error() string { return fmt.Sprintf("cfg build failed (%s): %v", e.Kind, e.Err) }
func (e *CfgError) Unwrap() error { return e.Err }

func invalidAST(format string, args ...any) *CfgError {
	return &CfgError{Kind: "invalid_ast", Err: fmt.Errorf(format+": %w", append(args, ErrInvalidAST)...)}
}

// LoopInfo describes a detected back-edge (loop).
type LoopInfo struct {
	HeaderNode string
	BackEdge   Edge
	Risk       string // low | medium | high
}

// ComplexityMetrics are derived from the finished CFG.
type ComplexityMetrics struct {
	DecisionPoints      int
	Cyclomatic          int
	Cognitive           float64
	NestingDepth        int
	LinesOfCode         int
}

// CFG is the built control flow graph for one function clause.
type CFG struct {
	EntryID string
	ExitID  string

	Nodes  map[string]*Node
	Edges  []Edge
	Scopes map[string]*Scope

	Complexity    ComplexityMetrics
	Loops         []LoopInfo
	Unreachable   []string
	FeasiblePaths int
	TotalPaths    int
}

// Options configures path analysis bounds (spec.md §6 PathAnalysis).
type Options struct {
	MaxDepth  int
	MaxFanout int
	MaxPaths  int
}

// DefaultOptions mirrors the bounds spec.md's path analysis mandates.
func DefaultOptions() Options {
	return Options{MaxDepth: 20, MaxFanout: 5, MaxPaths: 100}
}

// Successors returns the ids of nodes reachable from id via a single edge.
func (c *CFG) Successors(id string) []string {
	var out []string
	for _, e := range c.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Predecessors returns the ids of nodes with a single edge into id.
func (c *CFG) Predecessors(id string) []string {
	var out []string
	for _, e := range c.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

// builder carries mutable construction state through one Build call. It is
// not safe for concurrent use; one builder serves one function clause.
type builder struct {
	logger *slog.Logger
	opts   Options

	nextNodeID   int
	nextScopeID  int
	nodes        map[string]*Node
	edges        []Edge
	scopes       map[string]*Scope
	currentScope string
}

// Build constructs the CFG for fn. opts selects path-analysis bounds; a
// zero-value Options falls back to DefaultOptions.
func Build(fn *synast.FunctionAST, opts Options, logger *slog.Logger) (*CFG, error) {
	if fn == nil || fn.Body == nil {
		return nil, invalidAST("cfg: function ast or body is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDepth == 0 && opts.MaxFanout == 0 && opts.MaxPaths == 0 {
		opts = DefaultOptions()
	}

	b := &builder{
		logger: logger,
		opts:   opts,
		nodes:  map[string]*Node{},
		scopes: map[string]*Scope{},
	}

	var cfgErr *CfgError
	result := func() (c *CFG) {
		defer func() {
			if r := recover(); r != nil {
				cfgErr = invalidAST("cfg: panic during construction: %v", r)
				c = nil
			}
		}()
		return b.build(fn)
	}()
	if cfgErr != nil {
		return nil, cfgErr
	}
	return result, nil
}

func (b *builder) newNodeID() string {
	b.nextNodeID++
	return fmt.Sprintf("n%d", b.nextNodeID)
}

func (b *builder) newScope(kind ScopeKind, parent string, vars []string, astNodeID string) string {
	b.nextScopeID++
	id := fmt.Sprintf("s%d", b.nextScopeID)
	b.scopes[id] = &Scope{ID: id, Kind: kind, Parent: parent, Variables: vars, ASTNodeID: astNodeID}
	return id
}

func (b *builder) addNode(kind NodeKind, line int, astNodeID string) *Node {
	n := &Node{ID: b.newNodeID(), Kind: kind, ScopeID: b.currentScope, Line: line, ASTNodeID: astNodeID}
	b.nodes[n.ID] = n
	return n
}

func (b *builder) addEdge(from, to string, kind EdgeKind, condition string) {
	prob := 1.0
	if kind == EdgeConditionalTrue || kind == EdgeConditionalFalse {
		prob = 0.5
	}
	b.edges = append(b.edges, Edge{From: from, To: to, Kind: kind, Condition: condition, Probability: prob})
}

// exitSet is the set of CFG nodes whose control leaves the sub-construct
// just processed; handlers return it so the caller can wire it to the next
// construct in sequence.
type exitSet []string

func (b *builder) build(fn *synast.FunctionAST) *CFG {
	b.currentScope = b.newScope(ScopeFunction, "", paramNames(fn.Params), fn.Metadata.ASTNodeID)

	entry := b.addNode(KindEntry, fn.Metadata.Line, fn.Metadata.ASTNodeID)

	entryExits := exitSet{entry.ID}
	if fn.Guard != nil {
		guardExits := b.dispatchGuard(fn.Guard, entryExits)
		entryExits = guardExits
	}

	var bodyExits exitSet
	if isEmptyBody(fn.Body) {
		exitNode := b.addNode(KindExit, fn.Metadata.Line, fn.Metadata.ASTNodeID)
		for _, from := range entryExits {
			b.addEdge(from, exitNode.ID, EdgeSequential, "")
			b.edges[len(b.edges)-1].Metadata = map[string]string{"connection": "entry_to_exit_direct"}
		}
		return b.finish(entry.ID, exitNode.ID)
	}

	bodyExits = b.dispatch(fn.Body, entryExits)

	exitNode := b.addNode(KindExit, fn.Metadata.Line, "")
	for _, from := range bodyExits {
		b.addEdge(from, exitNode.ID, EdgeSequential, "")
	}

	return b.finish(entry.ID, exitNode.ID)
}

func isEmptyBody(n *synast.Node) bool {
	if n == nil {
		return true
	}
	if n.Tag == synast.TagBlock {
		return len(n.Children("statements")) == 0
	}
	return false
}

func paramNames(params []*synast.Node) []string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p != nil && p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// dispatchGuard processes a `when` guard: the node it yields is tagged
// guard_check (a decision point) and wired from the incoming exits.
func (b *builder) dispatchGuard(guard *synast.Node, in exitSet) exitSet {
	exits := b.dispatchExpr(guard, in)
	guardNode := b.addNode(KindGuardCheck, guard.Metadata.Line, guard.Metadata.ASTNodeID)
	for _, from := range exits {
		b.addEdge(from, guardNode.ID, EdgeSequential, "")
	}
	return exitSet{guardNode.ID}
}

// dispatch is the exhaustive dispatch table from spec.md §4.2.
func (b *builder) dispatch(n *synast.Node, in exitSet) exitSet {
	if n == nil {
		return in
	}
	switch n.Tag {
	case synast.TagBlock:
		return b.dispatchBlock(n, in)
	case synast.TagAssign:
		return b.dispatchAssign(n, in)
	case synast.TagPipe:
		return b.dispatchPipe(n, in)
	case synast.TagIf:
		return b.dispatchIf(n, in)
	case synast.TagUnless:
		return b.dispatchUnless(n, in)
	case synast.TagCase:
		return b.dispatchCaseLike(n, KindCase, "scrutinee", in)
	case synast.TagCond:
		return b.dispatchCaseLike(n, KindCond, "", in)
	case synast.TagWith:
		return b.dispatchCaseLike(n, KindCase, "", in)
	case synast.TagTry:
		return b.dispatchTry(n, in)
	case synast.TagFor:
		return b.dispatchFor(n, in)
	case synast.TagReceive:
		return b.dispatchCaseLike(n, KindCase, "", in)
	case synast.TagFn:
		return b.dispatchFn(n, in)
	case synast.TagCall:
		return b.dispatchCall(n, in)
	case synast.TagSend:
		return b.dispatchTerminator(n, KindSend, in)
	case synast.TagSpawn:
		return b.dispatchTerminator(n, KindSpawn, in)
	case synast.TagRaise:
		return b.dispatchTerminator(n, KindRaise, in)
	case synast.TagThrow:
		return b.dispatchTerminator(n, KindThrow, in)
	case synast.TagExit:
		return b.dispatchTerminator(n, KindExitCall, in)
	case synast.TagBinaryOp, synast.TagUnaryOp:
		return b.dispatchExpr(n, in)
	default:
		// variable ref / literal / map / tuple / list / struct / access /
		// attribute: leaf-like node, no outgoing edges of its own.
		return b.dispatchLeaf(n, in)
	}
}

func (b *builder) dispatchBlock(n *synast.Node, in exitSet) exitSet {
	exits := in
	for _, stmt := range n.Children("statements") {
		exits = b.dispatch(stmt, exits)
	}
	if len(n.Children("statements")) == 0 {
		return in
	}
	return exits
}

func (b *builder) dispatchAssign(n *synast.Node, in exitSet) exitSet {
	exprExits := b.dispatchExpr(n.Field("expr"), in)
	node := b.addNode(KindAssignment, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range exprExits {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}
	return exitSet{node.ID}
}

func (b *builder) dispatchPipe(n *synast.Node, in exitSet) exitSet {
	leftExits := b.dispatch(n.Field("left"), in)
	node := b.addNode(KindPipe, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range leftExits {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}
	rightExits := b.dispatch(n.Field("right"), exitSet{node.ID})
	return rightExits
}

func (b *builder) dispatchIf(n *synast.Node, in exitSet) exitSet {
	condExits := b.dispatchExpr(n.Field("cond"), in)
	cond := b.addNode(KindConditional, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range condExits {
		b.addEdge(from, cond.ID, EdgeSequential, "")
	}

	thenScope := b.currentScope
	b.currentScope = b.newScope(ScopeIfThen, thenScope, nil, "")
	thenExits := b.dispatchBranchFrom(cond.ID, EdgeConditionalTrue, n.Field("then"))
	b.currentScope = thenScope

	var elseExits exitSet
	if els := n.Field("else"); els != nil {
		b.currentScope = b.newScope(ScopeIfElse, thenScope, nil, "")
		elseExits = b.dispatchBranchFrom(cond.ID, EdgeConditionalFalse, els)
		b.currentScope = thenScope
	} else {
		elseExits = exitSet{cond.ID}
	}

	return append(append(exitSet{}, thenExits...), elseExits...)
}

// dispatchBranchFrom wires a labelled conditional edge from `from` into the
// entry of the branch subtree, then dispatches the subtree.
func (b *builder) dispatchBranchFrom(from string, kind EdgeKind, branch *synast.Node) exitSet {
	marker := b.addNode(KindExpression, branch.Metadata.Line, "")
	b.addEdge(from, marker.ID, kind, "")
	return b.dispatch(branch, exitSet{marker.ID})
}

func (b *builder) dispatchUnless(n *synast.Node, in exitSet) exitSet {
	// Rewrite to if(not cond, then, else) per spec.md.
	notCond := synast.UnOp("not", n.Field("cond"), n.Metadata.Line)
	rewritten := synast.If(notCond, n.Field("then"), n.Field("else"), n.Metadata.Line)
	rewritten.Metadata.ASTNodeID = n.Metadata.ASTNodeID
	return b.dispatchIf(rewritten, in)
}

// dispatchCaseLike handles case/cond/with/receive: one decision node plus
// one branch per clause, per spec.md's "same shape as case" resolution for
// cond/with and the structurally-analogous treatment of receive.
func (b *builder) dispatchCaseLike(n *synast.Node, kind NodeKind, scrutineeField string, in exitSet) exitSet {
	exits := in
	if scrutineeField != "" {
		exits = b.dispatchExpr(n.Field(scrutineeField), in)
	}
	clauses := n.Children("clauses")
	caseNode := b.addNode(kind, n.Metadata.Line, n.Metadata.ASTNodeID)
	caseNode.Metadata = map[string]string{"clause_count": fmt.Sprintf("%d", len(clauses))}
	for _, from := range exits {
		b.addEdge(from, caseNode.ID, EdgeSequential, "")
	}

	var allExits exitSet
	parentScope := b.currentScope
	for _, clause := range clauses {
		clauseNode := b.addNode(KindCaseClause, clause.Metadata.Line, clause.Metadata.ASTNodeID)
		b.addEdge(caseNode.ID, clauseNode.ID, EdgePatternMatch, patternText(clause.Field("pattern")))

		b.currentScope = b.newScope(ScopeCaseClause, parentScope, patternVars(clause.Field("pattern")), clause.Metadata.ASTNodeID)
		bodyExits := b.dispatch(clause.Field("body"), exitSet{clauseNode.ID})
		allExits = append(allExits, bodyExits...)
		b.currentScope = parentScope
	}
	if len(clauses) == 0 {
		allExits = exitSet{caseNode.ID}
	}
	return allExits
}

func patternText(p *synast.Node) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return string(p.Tag)
}

func patternVars(p *synast.Node) []string {
	if p == nil {
		return nil
	}
	var names []string
	if p.Tag == synast.TagVariableRef && p.Name != "" {
		names = append(names, p.Name)
	}
	for _, fields := range []string{"left", "right", "object", "index"} {
		names = append(names, patternVars(p.Field(fields))...)
	}
	for _, list := range p.List {
		for _, c := range list {
			names = append(names, patternVars(c)...)
		}
	}
	return names
}

func (b *builder) dispatchTry(n *synast.Node, in exitSet) exitSet {
	tryNode := b.addNode(KindTry, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range in {
		b.addEdge(from, tryNode.ID, EdgeSequential, "")
	}

	bodyExits := b.dispatch(n.Field("body"), exitSet{tryNode.ID})
	allExits := append(exitSet{}, bodyExits...)

	for _, r := range n.Children("rescue") {
		rescueNode := b.addNode(KindRescue, r.Metadata.Line, r.Metadata.ASTNodeID)
		b.addEdge(tryNode.ID, rescueNode.ID, EdgeException, "")
		parent := b.currentScope
		b.currentScope = b.newScope(ScopeRescue, parent, patternVars(r.Field("pattern")), r.Metadata.ASTNodeID)
		rescueExits := b.dispatch(r.Field("body"), exitSet{rescueNode.ID})
		allExits = append(allExits, rescueExits...)
		b.currentScope = parent
	}
	for _, c := range n.Children("catch") {
		catchNode := b.addNode(KindCatch, c.Metadata.Line, c.Metadata.ASTNodeID)
		b.addEdge(tryNode.ID, catchNode.ID, EdgeException, "")
		parent := b.currentScope
		b.currentScope = b.newScope(ScopeCatch, parent, patternVars(c.Field("pattern")), c.Metadata.ASTNodeID)
		catchExits := b.dispatch(c.Field("body"), exitSet{catchNode.ID})
		allExits = append(allExits, catchExits...)
		b.currentScope = parent
	}

	if after := n.Field("after"); after != nil {
		// after-block runs on every exit: fold all exits through it.
		afterExits := b.dispatch(after, allExits)
		return afterExits
	}
	return allExits
}

func (b *builder) dispatchFor(n *synast.Node, in exitSet) exitSet {
	generators := n.Children("generators")
	filters := n.Children("filters")
	contribution := len(generators) + len(filters)
	if contribution < 1 {
		contribution = 1
	}

	node := b.addNode(KindComprehension, n.Metadata.Line, n.Metadata.ASTNodeID)
	node.Metadata = map[string]string{"complexity_contribution": fmt.Sprintf("%d", contribution)}
	for _, from := range in {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}

	parent := b.currentScope
	b.currentScope = b.newScope(ScopeComprehension, parent, nil, n.Metadata.ASTNodeID)
	exits := exitSet{node.ID}
	for _, gen := range generators {
		exits = b.dispatch(gen, exits)
	}
	for _, f := range filters {
		exits = b.dispatch(f, exits)
	}
	bodyExits := b.dispatch(n.Field("body"), exits)
	b.currentScope = parent
	return bodyExits
}

func (b *builder) dispatchFn(n *synast.Node, in exitSet) exitSet {
	node := b.addNode(KindExpression, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range in {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}
	parent := b.currentScope
	for _, clause := range n.Children("clauses") {
		b.currentScope = b.newScope(ScopeAnonymousFn, parent, patternVars(clause.Field("pattern")), clause.Metadata.ASTNodeID)
		b.dispatch(clause.Field("body"), exitSet{node.ID})
		b.currentScope = parent
	}
	// The fn literal itself is the value produced; control continues past it
	// regardless of its clause bodies (those execute only when invoked).
	return exitSet{node.ID}
}

func (b *builder) dispatchCall(n *synast.Node, in exitSet) exitSet {
	exits := in
	for _, arg := range n.Children("args") {
		exits = b.dispatchExpr(arg, exits)
	}
	kind := KindFunctionCall
	if isGuardPredicate(n.Name) {
		kind = KindGuardCheck
	}
	node := b.addNode(kind, n.Metadata.Line, n.Metadata.ASTNodeID)
	node.ExpressionRef = n.Name
	for _, from := range exits {
		b.addEdge(from, node.ID, EdgeCall, "")
	}
	return exitSet{node.ID}
}

// isGuardPredicate reports whether name is one of the recognised type
// predicates used in Elixir-style guard position (is_atom, is_list, ...).
func isGuardPredicate(name string) bool {
	switch name {
	case "is_atom", "is_binary", "is_boolean", "is_float", "is_function",
		"is_integer", "is_list", "is_map", "is_nil", "is_number", "is_pid",
		"is_port", "is_reference", "is_tuple":
		return true
	default:
		return false
	}
}

func (b *builder) dispatchTerminator(n *synast.Node, kind NodeKind, in exitSet) exitSet {
	exits := in
	for _, field := range []string{"channel", "value", "call", "expr"} {
		if c := n.Field(field); c != nil {
			exits = b.dispatchExpr(c, exits)
		}
	}
	node := b.addNode(kind, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range exits {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}
	return exitSet{node.ID}
}

// dispatchExpr processes an expression that is not itself a statement form
// needing its own handling entry (operands of ops, call args, conditions):
// it recurses through dispatch so nested calls/ops still get nodes, but
// falls back to treating n as a leaf when it has no further structure.
func (b *builder) dispatchExpr(n *synast.Node, in exitSet) exitSet {
	if n == nil {
		return in
	}
	switch n.Tag {
	case synast.TagBinaryOp:
		leftExits := b.dispatchExpr(n.Field("left"), in)
		rightExits := b.dispatchExpr(n.Field("right"), leftExits)
		node := b.addNode(KindExpression, n.Metadata.Line, n.Metadata.ASTNodeID)
		for _, from := range rightExits {
			b.addEdge(from, node.ID, EdgeSequential, "")
		}
		return exitSet{node.ID}
	case synast.TagUnaryOp:
		operandExits := b.dispatchExpr(n.Field("operand"), in)
		node := b.addNode(KindExpression, n.Metadata.Line, n.Metadata.ASTNodeID)
		for _, from := range operandExits {
			b.addEdge(from, node.ID, EdgeSequential, "")
		}
		return exitSet{node.ID}
	case synast.TagCall:
		return b.dispatchCall(n, in)
	case synast.TagPipe:
		return b.dispatchPipe(n, in)
	case synast.TagIf:
		return b.dispatchIf(n, in)
	case synast.TagCase, synast.TagCond, synast.TagWith:
		return b.dispatch(n, in)
	default:
		return b.dispatchLeaf(n, in)
	}
}

func (b *builder) dispatchLeaf(n *synast.Node, in exitSet) exitSet {
	kind := leafKind(n.Tag)
	node := b.addNode(kind, n.Metadata.Line, n.Metadata.ASTNodeID)
	for _, from := range in {
		b.addEdge(from, node.ID, EdgeSequential, "")
	}
	return exitSet{node.ID}
}

func leafKind(tag synast.Tag) NodeKind {
	switch tag {
	case synast.TagVariableRef:
		return KindVariableRef
	case synast.TagLiteral:
		return KindLiteral
	default:
		return KindExpression
	}
}

func (b *builder) finish(entryID, exitID string) *CFG {
	c := &CFG{
		EntryID: entryID,
		ExitID:  exitID,
		Nodes:   b.nodes,
		Edges:   b.edges,
		Scopes:  b.scopes,
	}
	c.Complexity = computeComplexity(c)
	c.Loops = detectLoops(c)
	c.Unreachable = unreachableNodes(c)
	c.FeasiblePaths, c.TotalPaths = enumeratePaths(c, b.opts)
	return c
}
