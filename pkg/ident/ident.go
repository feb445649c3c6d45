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

// Package ident assigns stable, parseable identifiers to every structurally
// significant node of a function's syntax tree, and parses them back into
// their parts. An identifier has the form:
//
//	module:function_arity_cK:pathOrHash:shortHash
//
// pathOrHash is a dotted path of child-index/tag/line fragments from the
// function root, stable under content edits elsewhere in the file; shortHash
// is an 8-hex-char content hash, stable under minor position shifts.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/viant/cgraph/pkg/synast"
)

// ID is the parsed form of a node identifier.
type ID struct {
	Module      string
	Function    string
	Arity       int
	ClauseIndex int
	PathOrHash  string
	ShortHash   string
}

// String renders the identifier in its canonical wire form.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s_%d_c%d:%s:%s", id.Module, id.Function, id.Arity, id.ClauseIndex, id.PathOrHash, id.ShortHash)
}

// Parse is the inverse of String/Assign: it splits a node identifier back
// into its constituent parts. Malformed input (wrong segment count, a
// non-numeric arity or clause index) is reported as an error rather than
// returning a partially populated ID.
func Parse(raw string) (ID, error) {
	segs := strings.SplitN(raw, ":", 4)
	if len(segs) != 4 {
		return ID{}, fmt.Errorf("ident: parse %q: expected 4 colon-separated segments, got %d", raw, len(segs))
	}
	module, fac, pathOrHash, shortHash := segs[0], segs[1], segs[2], segs[3]

	facSegs := strings.Split(fac, "_")
	if len(facSegs) < 3 {
		return ID{}, fmt.Errorf("ident: parse %q: malformed function/arity/clause segment %q", raw, fac)
	}
	clauseRaw := facSegs[len(facSegs)-1]
	arityRaw := facSegs[len(facSegs)-2]
	function := strings.Join(facSegs[:len(facSegs)-2], "_")

	if !strings.HasPrefix(clauseRaw, "c") {
		return ID{}, fmt.Errorf("ident: parse %q: clause segment %q missing 'c' prefix", raw, clauseRaw)
	}
	clauseIndex, err := strconv.Atoi(strings.TrimPrefix(clauseRaw, "c"))
	if err != nil {
		return ID{}, fmt.Errorf("ident: parse %q: clause index: %w", raw, err)
	}
	arity, err := strconv.Atoi(arityRaw)
	if err != nil {
		return ID{}, fmt.Errorf("ident: parse %q: arity: %w", raw, err)
	}

	return ID{
		Module:      module,
		Function:    function,
		Arity:       arity,
		ClauseIndex: clauseIndex,
		PathOrHash:  pathOrHash,
		ShortHash:   shortHash,
	}, nil
}

// Stats accumulates counters over the nodes an Assigner has stamped, the way
// the teacher's ingestion pipeline tallies files/functions/embeddings
// processed and reports a summary at the end of a run.
type Stats struct {
	assigned    int64
	synthesized int64
}

// Assigned returns the count of nodes that received a well-formed id.
func (s *Stats) Assigned() int64 { return atomic.LoadInt64(&s.assigned) }

// Synthesized returns the count of nodes that fell back to a synthesized id
// because of missing metadata on malformed input.
func (s *Stats) Synthesized() int64 { return atomic.LoadInt64(&s.synthesized) }

// Assigner stamps ast_node_id values onto a function's syntax tree.
type Assigner struct {
	logger *slog.Logger
	stats  Stats
}

// NewAssigner builds an Assigner. A nil logger defaults to slog.Default().
func NewAssigner(logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{logger: logger}
}

// Stats returns the running counters for this assigner.
func (a *Assigner) Stats() *Stats { return &a.stats }

type frame struct {
	path []string // path fragments accumulated from the function root
}

// Assign performs the depth-first traversal described by NodeIdentifier: it
// stamps every structurally significant node in fn's parameter list, guard,
// and body with an ast_node_id, and returns the same tree (mutated in
// place) for convenience chaining.
func (a *Assigner) Assign(fn *synast.FunctionAST) *synast.FunctionAST {
	if fn == nil {
		return fn
	}
	f := frame{}
	for i, p := range fn.Params {
		a.walk(fn, p, f.child(i, "param"))
	}
	if fn.Guard != nil {
		a.walk(fn, fn.Guard, f.child(len(fn.Params), "guard"))
	}
	if fn.Body != nil {
		a.walk(fn, fn.Body, f.child(len(fn.Params)+1, "body"))
	}
	return fn
}

func (fr frame) child(index int, tagHint string) frame {
	return frame{path: append(append([]string{}, fr.path...), fmt.Sprintf("%d_%s", index, tagHint))}
}

// walk assigns an id to n (unless n is a literal argument leaf, per
// NodeIdentifier's rule that pure literal arguments of a call do not receive
// their own identifier) and recurses into its fields and children in a
// stable order.
func (a *Assigner) walk(fn *synast.FunctionAST, n *synast.Node, fr frame) {
	if n == nil {
		return
	}
	skip := n.Tag == synast.TagLiteral && isLiteralArgOf(fr)
	if !skip {
		a.stamp(fn, n, fr)
	}

	for _, name := range sortedFieldNames(n.Fields) {
		a.walk(fn, n.Fields[name], fr.child(0, fmt.Sprintf("%s.%s", string(n.Tag), name)))
	}
	for _, name := range sortedListNames(n.List) {
		children := n.List[name]
		for i, c := range children {
			a.walk(fn, c, fr.child(i, fmt.Sprintf("%s.%s", string(n.Tag), name)))
		}
	}
}

// isLiteralArgOf reports whether the immediately enclosing path fragment
// names a call's "args" list — the only position in which a bare literal is
// elided from identifier assignment.
func isLiteralArgOf(fr frame) bool {
	if len(fr.path) == 0 {
		return false
	}
	last := fr.path[len(fr.path)-1]
	return strings.Contains(last, "call.args") || strings.Contains(last, "_call.args")
}

func (a *Assigner) stamp(fn *synast.FunctionAST, n *synast.Node, fr frame) {
	line := n.Metadata.Line
	tag := string(n.Tag)
	if tag == "" {
		tag = "unknown"
	}

	var pathOrHash string
	if line <= 0 && tag == "unknown" {
		pathOrHash = "unknown_L?"
		atomic.AddInt64(&a.stats.synthesized, 1)
		a.logger.Warn("ident: malformed node, synthesizing id",
			"module", fn.Module, "function", fn.Name, "arity", fn.Arity, "clause_index", fn.ClauseIndex)
	} else {
		fragment := fmt.Sprintf("%s_L%d", tag, line)
		segs := append(append([]string{}, fr.path...), fragment)
		pathOrHash = strings.Join(segs, ".")
		atomic.AddInt64(&a.stats.assigned, 1)
	}

	hash := contentHash(n)
	id := ID{
		Module:      fn.Module,
		Function:    fn.Name,
		Arity:       fn.Arity,
		ClauseIndex: fn.ClauseIndex,
		PathOrHash:  pathOrHash,
		ShortHash:   hash,
	}
	n.Metadata.ASTNodeID = id.String()
}

// contentHash computes an 8-hex-char digest over a canonical, shallow
// serialization of n: its tag, name, and the sorted names of its fields and
// list children (not their full subtrees — the path component already
// carries positional stability, the hash only needs to distinguish sibling
// nodes sharing a path).
func contentHash(n *synast.Node) string {
	h := sha256.New()
	h.Write([]byte(n.Tag))
	h.Write([]byte("|"))
	h.Write([]byte(n.Name))
	for _, name := range sortedFieldNames(n.Fields) {
		h.Write([]byte("|f:"))
		h.Write([]byte(name))
	}
	for _, name := range sortedListNames(n.List) {
		h.Write([]byte("|l:"))
		h.Write([]byte(name))
		h.Write([]byte(strconv.Itoa(len(n.List[name]))))
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

func sortedFieldNames(m map[string]*synast.Node) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortedListNames(m map[string][]*synast.Node) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
