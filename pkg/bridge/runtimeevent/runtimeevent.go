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

// Package runtimeevent is an in-memory bridge.RuntimeEventBridge: it
// accumulates per-function call observations (as a real deployment would
// receive them from a tracing/metrics pipeline) and serves the aggregates
// correlated queries ask for. It also counts every recorded observation in
// a Prometheus counter, the same instrumentation surface the host CLI uses
// for its own operational metrics.
package runtimeevent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viant/cgraph/pkg/bridge"
)

// Observation is one recorded invocation of a function, keyed the same
// way repository.FunctionKey.String() formats a key: "module:name/arity".
type Observation struct {
	FunctionKey string
	At          time.Time
	Duration    time.Duration
	Errored     bool
}

// Store accumulates Observations and answers bridge.RuntimeEventBridge
// queries against them. Safe for concurrent ingestion and querying.
type Store struct {
	mu   sync.RWMutex
	byFn map[string][]Observation

	observed prometheus.Counter
}

// NewStore builds an empty Store. If reg is non-nil, an
// "cgraph_runtime_events_observed_total" counter is registered on it.
func NewStore(reg prometheus.Registerer) *Store {
	s := &Store{
		byFn: map[string][]Observation{},
		observed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cgraph_runtime_events_observed_total",
			Help: "Total runtime events recorded by the runtime-event bridge.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.observed)
	}
	return s
}

// Record appends one Observation. Real deployments would call this from a
// tracing middleware or an event-stream consumer; tests call it directly.
func (s *Store) Record(o Observation) {
	s.mu.Lock()
	s.byFn[o.FunctionKey] = append(s.byFn[o.FunctionKey], o)
	s.mu.Unlock()
	s.observed.Inc()
}

// QueryEvents implements bridge.RuntimeEventBridge: for each requested
// function key, aggregates the observations falling within [Since, Until)
// (a zero Since/Until means unbounded on that side) into one EventSummary.
// Keys with no observations in range are omitted, not zero-filled.
func (s *Store) QueryEvents(ctx context.Context, template bridge.EventQueryTemplate) ([]bridge.EventSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]bridge.EventSummary, 0, len(template.FunctionKeys))
	for _, key := range template.FunctionKeys {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		obs := s.byFn[key]
		if len(obs) == 0 {
			continue
		}
		summary, ok := summarize(key, obs, template.Since, template.Until)
		if ok {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FunctionKey < out[j].FunctionKey })
	return out, nil
}

func summarize(key string, obs []Observation, since, until time.Time) (bridge.EventSummary, bool) {
	var count, errCount int64
	var totalDuration time.Duration
	var rangeStart, rangeEnd time.Time

	for _, o := range obs {
		if !since.IsZero() && o.At.Before(since) {
			continue
		}
		if !until.IsZero() && !o.At.Before(until) {
			continue
		}
		count++
		if o.Errored {
			errCount++
		}
		totalDuration += o.Duration
		if rangeStart.IsZero() || o.At.Before(rangeStart) {
			rangeStart = o.At
		}
		if rangeEnd.IsZero() || o.At.After(rangeEnd) {
			rangeEnd = o.At
		}
	}
	if count == 0 {
		return bridge.EventSummary{}, false
	}
	return bridge.EventSummary{
		FunctionKey: key,
		Count:       count,
		ErrorCount:  errCount,
		AvgDuration: totalDuration / time.Duration(count),
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
	}, true
}
