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

package repository

import (
	"context"
	"sort"

	"github.com/viant/cgraph/pkg/query"
)

// QueryFunctions executes a query.Spec against the function table, per
// spec.md §4.5's "Executes a QueryBuilder spec". The repository flattens
// its own FunctionRecord into query.Record values and builds the module-name/
// file-path/callers-of indexes afresh from its tables on each call, so
// pkg/query never needs to import pkg/repository to do its job.
func (r *Repository) QueryFunctions(spec query.Spec) ([]query.Record, error) {
	r.mu.RLock()
	ds := r.functionDatasetLocked()
	r.mu.RUnlock()
	return query.Execute(spec, ds)
}

func (r *Repository) functionDatasetLocked() query.Dataset {
	var records []query.Record
	byModule := map[string][]int{}
	byFilePath := map[string][]int{}
	callersOf := map[string][]int{}

	for moduleName, mod := range r.modules {
		keys := make([]FunctionKey, 0, len(mod.Functions))
		for k := range mod.Functions {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].Name != keys[j].Name {
				return keys[i].Name < keys[j].Name
			}
			return keys[i].Arity < keys[j].Arity
		})
		for _, k := range keys {
			fn := mod.Functions[k]
			idx := len(records)
			records = append(records, flattenFunction(mod, fn))
			byModule[moduleName] = append(byModule[moduleName], idx)
			byFilePath[mod.FilePath] = append(byFilePath[mod.FilePath], idx)

			for callee, callers := range r.callIndex {
				if callee.Module != moduleName {
					continue
				}
				for _, caller := range callers {
					if caller == k {
						callersOf[callee.String()] = append(callersOf[callee.String()], idx)
					}
				}
			}
		}
	}

	return query.Dataset{
		Records: records,
		Indexes: query.Indexes{
			"by_module":    byModule,
			"by_file_path": byFilePath,
			"callers_of":   callersOf,
		},
	}
}

func flattenFunction(mod *ModuleRecord, fn *FunctionRecord) query.Record {
	return query.Record{
		"module_name":            mod.ModuleName,
		"file_path":              mod.FilePath,
		"name":                   fn.Key.Name,
		"arity":                  fn.Key.Arity,
		"complexity.cyclomatic":  fn.Complexity.Cyclomatic,
		"complexity.cognitive":   fn.Complexity.Cognitive,
		"complexity.lines_of_code": fn.Complexity.LinesOfCode,
		"created_at":             fn.CreatedAt,
		"updated_at":             fn.UpdatedAt,
		"_record":                fn,
	}
}

// QueryModules executes a query.Spec against the module table, flattening
// each ModuleRecord's rolled-up metrics (mirrors flattenFunction's shape).
func (r *Repository) QueryModules(spec query.Spec) ([]query.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]query.Record, 0, len(names))
	for _, name := range names {
		records = append(records, flattenModule(r.modules[name]))
	}
	return query.Execute(spec, query.Dataset{Records: records})
}

func flattenModule(mod *ModuleRecord) query.Record {
	return query.Record{
		"module_name":         mod.ModuleName,
		"file_path":           mod.FilePath,
		"function_count":      mod.ModuleLevelMetrics.FunctionCount,
		"avg_cyclomatic":      mod.ModuleLevelMetrics.AverageCyclomatic,
		"max_cyclomatic":      mod.ModuleLevelMetrics.MaxCyclomatic,
		"total_lines_of_code": mod.ModuleLevelMetrics.TotalLinesOfCode,
		"_record":             mod,
	}
}

// QueryCPGNodes executes a query.Spec against every stored function's CPG,
// per spec.md §4.6. Without a CPGPattern, every node across every function
// is flattened into a Record and run through the usual where/order/limit
// pipeline. With a CPGPattern, MatchCPGPattern runs once per function's CPG
// (bounded by the same ctx deadline for each), and surviving matches are
// flattened one Record per match.
func (r *Repository) QueryCPGNodes(ctx context.Context, spec query.Spec, opts query.PatternMatchOptions) ([]query.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if spec.CPGPattern == nil {
		return query.Execute(spec, r.cpgNodeDatasetLocked())
	}

	var records []query.Record
	for _, mod := range r.modules {
		for key, fn := range mod.Functions {
			if fn.CPG == nil {
				continue
			}
			matches, err := query.MatchCPGPattern(ctx, fn.CPG, *spec.CPGPattern, opts)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				records = append(records, query.Record{
					"module_name": mod.ModuleName,
					"function":    key.Name,
					"arity":       key.Arity,
					"match":       m.NodeBindings,
				})
			}
		}
	}
	return records, nil
}

func (r *Repository) cpgNodeDatasetLocked() query.Dataset {
	var records []query.Record
	for _, mod := range r.modules {
		for key, fn := range mod.Functions {
			if fn.CPG == nil {
				continue
			}
			for _, node := range fn.CPG.Nodes {
				records = append(records, query.Record{
					"module_name": mod.ModuleName,
					"function":    key.Name,
					"arity":       key.Arity,
					"node_id":     node.ID,
					"line":        node.Line,
					"ast_type":    node.ASTType,
					"scope_id":    node.ScopeID,
				})
			}
		}
	}
	return query.Dataset{Records: records}
}
