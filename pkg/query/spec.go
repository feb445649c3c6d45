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

// Package query is the fluent query builder and executor: an inert Spec
// value produced by Builder, and an Execute function that runs it against
// a generic Record source handed in by the repository. The builder never
// touches repository state directly — it only ever produces a Spec, the
// same separation the teacher keeps between a tool that assembles a
// Datalog string and the backend that runs it.
package query

import "fmt"

// Operator is one of spec.md §4.6's comparison operators.
type Operator string

const (
	Eq           Operator = "eq"
	Neq          Operator = "neq"
	Gt           Operator = "gt"
	Gte          Operator = "gte"
	Lt           Operator = "lt"
	Lte          Operator = "lte"
	In           Operator = "in"
	Nin          Operator = "nin"
	Contains     Operator = "contains"
	StartsWith   Operator = "starts_with"
	EndsWith     Operator = "ends_with"
	MatchesRegex Operator = "matches_regex"
)

// Predicate is one `where` clause entry.
type Predicate struct {
	Field string
	Op    Operator
	Value interface{}
}

// OrderKey is one `order_by` clause entry. Dir is "asc" or "desc".
type OrderKey struct {
	Field string
	Dir   string
}

// Source names what a Spec scans: "functions", "modules", or "cpg_nodes".
type Source string

const (
	SourceFunctions Source = "functions"
	SourceModules   Source = "modules"
	SourceCPGNodes  Source = "cpg_nodes"
)

// Spec is the inert, JSON-equivalent query shape of spec.md §6.
type Spec struct {
	From       Source
	Select     []string // ["all"] or a field list
	Where      []Predicate
	OrderBy    []OrderKey
	Limit      int
	Offset     int
	CPGPattern *Pattern
	QueryHint  string
}

// Validate rejects shapes that QueryError(:invalid_spec) must catch before
// any execution begins, per spec.md §6.
func (s Spec) Validate() error {
	switch s.From {
	case SourceFunctions, SourceModules, SourceCPGNodes:
	default:
		return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: unknown from %q", s.From)}
	}
	for _, p := range s.Where {
		if p.Field == "" {
			return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: predicate missing field")}
		}
		switch p.Op {
		case Eq, Neq, Gt, Gte, Lt, Lte, In, Nin, Contains, StartsWith, EndsWith, MatchesRegex:
		default:
			return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: unknown operator %q", p.Op)}
		}
	}
	for _, o := range s.OrderBy {
		if o.Dir != "asc" && o.Dir != "desc" {
			return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: order_by dir must be asc/desc, got %q", o.Dir)}
		}
	}
	if s.Limit < 0 || s.Offset < 0 {
		return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: limit/offset must be non-negative")}
	}
	if s.From != SourceCPGNodes && s.CPGPattern != nil {
		return &QueryError{Kind: "invalid_spec", Err: fmt.Errorf("query: cpg_pattern only valid for cpg_nodes source")}
	}
	return nil
}

// Builder assembles a Spec through chainable helpers. The zero value is not
// usable; start from FindFunctions/FindModules/FindCPGNodes.
type Builder struct {
	spec Spec
}

// FindFunctions starts a query over function records.
func FindFunctions() *Builder { return &Builder{spec: Spec{From: SourceFunctions, Select: []string{"all"}}} }

// FindModules starts a query over module records.
func FindModules() *Builder { return &Builder{spec: Spec{From: SourceModules, Select: []string{"all"}}} }

// FindCPGNodes starts a query over CPG nodes (for pattern matching).
func FindCPGNodes() *Builder { return &Builder{spec: Spec{From: SourceCPGNodes, Select: []string{"all"}}} }

// Where appends one predicate, applied in declaration order at execution.
func (b *Builder) Where(field string, op Operator, value interface{}) *Builder {
	b.spec.Where = append(b.spec.Where, Predicate{Field: field, Op: op, Value: value})
	return b
}

// Select overrides the projected field list ("all" by default).
func (b *Builder) Select(fields ...string) *Builder {
	b.spec.Select = fields
	return b
}

// OrderBy appends one sort key; the executor stable-sorts on the last key first.
func (b *Builder) OrderBy(field, dir string) *Builder {
	b.spec.OrderBy = append(b.spec.OrderBy, OrderKey{Field: field, Dir: dir})
	return b
}

// Limit caps the result count after offset is applied.
func (b *Builder) Limit(n int) *Builder {
	b.spec.Limit = n
	return b
}

// Offset skips n results after ordering, before limit.
func (b *Builder) Offset(n int) *Builder {
	b.spec.Offset = n
	return b
}

// ByComplexity is sugar for Where("complexity."+metric, op, value). No index
// backs complexity fields, so the predicate is served by a full scan.
func (b *Builder) ByComplexity(metric string, op Operator, value interface{}) *Builder {
	return b.Where("complexity."+metric, op, value)
}

// Calls is sugar for Where("calls", contains, mfa) — functions that call mfa.
func (b *Builder) Calls(mfa string) *Builder {
	return b.Where("calls", Contains, mfa)
}

// CallersOf is sugar for Where("callers_of", eq, mfa), served from the
// repository's inverted call index at seed time.
func (b *Builder) CallersOf(mfa string) *Builder {
	return b.Where("callers_of", Eq, mfa)
}

// MatchCPGPattern attaches a sub-graph pattern; only valid for FindCPGNodes.
func (b *Builder) MatchCPGPattern(p Pattern) *Builder {
	b.spec.CPGPattern = &p
	return b
}

// Build returns the finished, inert Spec.
func (b *Builder) Build() Spec { return b.spec }

// QueryError is the tagged error query validation/execution can return.
type QueryError struct {
	Kind string // "invalid_spec" | "unsupported_query"
	Err  error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query error (%s): %v", e.Kind, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }
