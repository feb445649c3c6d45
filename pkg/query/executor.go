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
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Record is a flattened, field-addressable projection of a repository
// record (FunctionRecord, ModuleRecord, or a CPG node). Using a generic map
// here — rather than the repository's own struct types — keeps this
// package free of an import of pkg/repository, which in turn depends on
// this package to execute query_functions; the repository is responsible
// for flattening its own types into Records before calling Execute.
type Record map[string]interface{}

// Indexes maps an index name ("by_module", "by_file_path", "callers_of") to
// a value->record-indices lookup, so Execute can seed from a secondary index
// instead of a full scan. There is no complexity-bucket index.
type Indexes map[string]map[string][]int

// Dataset bundles the records available to one Execute call plus whichever
// indexes the repository chose to keep warm for that source.
type Dataset struct {
	Records []Record
	Indexes Indexes
}

// indexableFields maps a predicate field to the index name that can seed it.
var indexableFields = map[string]string{
	"module_name": "by_module",
	"file_path":   "by_file_path",
	"callers_of":  "callers_of",
}

// Execute runs spec against ds following spec.md §4.6's five-step pipeline:
// seed, filter, order, offset/limit, project.
func Execute(spec Spec, ds Dataset) ([]Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	candidates := seed(spec, ds)
	filtered, err := applyWhere(spec.Where, candidates)
	if err != nil {
		return nil, err
	}
	ordered := applyOrderBy(spec.OrderBy, filtered)
	paged := applyOffsetLimit(spec.Offset, spec.Limit, ordered)
	return project(spec.Select, paged), nil
}

// seed chooses an index-backed subset when an equality predicate targets an
// indexed field; otherwise it falls back to a full scan, per spec.md §4.6 step 1.
func seed(spec Spec, ds Dataset) []Record {
	for _, p := range spec.Where {
		if p.Op != Eq {
			continue
		}
		indexName, ok := indexableFields[p.Field]
		if !ok {
			continue
		}
		byValue, ok := ds.Indexes[indexName]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", p.Value)
		idxs, ok := byValue[key]
		if !ok {
			return nil
		}
		out := make([]Record, 0, len(idxs))
		for _, i := range idxs {
			if i >= 0 && i < len(ds.Records) {
				out = append(out, ds.Records[i])
			}
		}
		return out
	}
	return ds.Records
}

func applyWhere(preds []Predicate, records []Record) ([]Record, error) {
	out := records
	for _, p := range preds {
		next := out[:0:0]
		for _, r := range out {
			ok, err := matches(r, p)
			if err != nil {
				return nil, err
			}
			if ok {
				next = append(next, r)
			}
		}
		out = next
	}
	return out, nil
}

func matches(r Record, p Predicate) (bool, error) {
	actual, present := r[p.Field]
	switch p.Op {
	case Eq:
		return present && compareEqual(actual, p.Value), nil
	case Neq:
		return !present || !compareEqual(actual, p.Value), nil
	case Gt, Gte, Lt, Lte:
		if !present {
			return false, nil
		}
		return compareOrdered(p.Op, actual, p.Value)
	case In:
		values, ok := p.Value.([]interface{})
		if !ok {
			return false, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: 'in' requires a value list for field %q", p.Field)}
		}
		for _, v := range values {
			if compareEqual(actual, v) {
				return true, nil
			}
		}
		return false, nil
	case Nin:
		values, ok := p.Value.([]interface{})
		if !ok {
			return false, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: 'nin' requires a value list for field %q", p.Field)}
		}
		for _, v := range values {
			if compareEqual(actual, v) {
				return false, nil
			}
		}
		return true, nil
	case Contains:
		return stringOp(actual, p.Value, strings.Contains)
	case StartsWith:
		return stringOp(actual, p.Value, strings.HasPrefix)
	case EndsWith:
		return stringOp(actual, p.Value, strings.HasSuffix)
	case MatchesRegex:
		pattern, ok := p.Value.(string)
		if !ok {
			return false, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: matches_regex requires a string pattern")}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: invalid regex %q: %w", pattern, err)}
		}
		s, _ := actual.(string)
		return re.MatchString(s), nil
	default:
		return false, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: unsupported operator %q", p.Op)}
	}
}

func stringOp(actual, value interface{}, f func(s, substr string) bool) (bool, error) {
	a, aok := actual.(string)
	v, vok := value.(string)
	if !aok || !vok {
		return false, nil
	}
	return f(a, v), nil
}

func compareEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareOrdered(op Operator, a, b interface{}) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, nil
	}
	switch op {
	case Gt:
		return af > bf, nil
	case Gte:
		return af >= bf, nil
	case Lt:
		return af < bf, nil
	case Lte:
		return af <= bf, nil
	}
	return false, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// applyOrderBy stable-sorts on the last key first, per spec.md §4.6 step 3.
func applyOrderBy(keys []OrderKey, records []Record) []Record {
	if len(keys) == 0 {
		return records
	}
	out := make([]Record, len(records))
	copy(out, records)
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		sort.SliceStable(out, func(a, b int) bool {
			less := fieldLess(out[a][k.Field], out[b][k.Field])
			if k.Dir == "desc" {
				return fieldLess(out[b][k.Field], out[a][k.Field])
			}
			return less
		})
	}
	return out
}

// fieldLess reports whether a sorts strictly before b, comparing
// numerically when both sides parse as numbers and lexically otherwise —
// equal values always report false in both directions, keeping sort's
// comparator well-formed.
func fieldLess(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func applyOffsetLimit(offset, limit int, records []Record) []Record {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func project(fields []string, records []Record) []Record {
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "all") {
		return records
	}
	out := make([]Record, len(records))
	for i, r := range records {
		projected := Record{}
		for _, f := range fields {
			if v, ok := r[f]; ok {
				projected[f] = v
			}
		}
		out[i] = projected
	}
	return out
}
