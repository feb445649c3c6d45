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
	"time"

	"github.com/viant/cgraph/pkg/bridge"
)

// CorrelatedSpec composes a static Spec with a runtime-event join, per
// spec.md §4.6: the executor evaluates the static half, extracts the join
// key set (one "module:name/arity" per result record), and invokes the
// external runtime-event interface with those keys.
type CorrelatedSpec struct {
	Static Spec
	Since  time.Time
	Until  time.Time
}

// ExecuteCorrelated runs spec.Static against ds, then joins each surviving
// record with its bridge.EventSummary (by function_key) under an "events"
// field. A record with no matching summary gets a nil "events" value — the
// join is a left join, never filtering function results down to only the
// ones with telemetry.
func ExecuteCorrelated(ctx context.Context, spec CorrelatedSpec, ds Dataset, events bridge.RuntimeEventBridge) ([]Record, error) {
	records, err := Execute(spec.Static, ds)
	if err != nil {
		return nil, err
	}
	if events == nil {
		return nil, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: correlated query requires a runtime-event bridge")}
	}

	keys := make([]string, 0, len(records))
	seen := map[string]bool{}
	for _, r := range records {
		k := functionKeyOf(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	summaries, err := events.QueryEvents(ctx, bridge.EventQueryTemplate{
		FunctionKeys: keys,
		Since:        spec.Since,
		Until:        spec.Until,
	})
	if err != nil {
		return nil, &QueryError{Kind: "unsupported_query", Err: fmt.Errorf("query: runtime-event bridge: %w", err)}
	}

	byKey := make(map[string]bridge.EventSummary, len(summaries))
	for _, s := range summaries {
		byKey[s.FunctionKey] = s
	}

	out := make([]Record, len(records))
	for i, r := range records {
		merged := make(Record, len(r)+1)
		for k, v := range r {
			merged[k] = v
		}
		if s, ok := byKey[functionKeyOf(r)]; ok {
			merged["events"] = s
		} else {
			merged["events"] = nil
		}
		out[i] = merged
	}
	return out, nil
}

// functionKeyOf derives "module:name/arity" from a flattened function
// Record, matching the string form repository.FunctionKey.String() uses.
func functionKeyOf(r Record) string {
	module, _ := r["module_name"].(string)
	name, _ := r["name"].(string)
	arity, ok := r["arity"].(int)
	if !ok {
		if f, ok := r["arity"].(float64); ok {
			arity = int(f)
		}
	}
	if module == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s/%d", module, name, arity)
}
