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

// Package bridge declares the external interfaces spec.md §6 names: a
// parser bridge producing synast trees, a file-watcher bridge producing
// change events, and a runtime-event bridge serving correlated-query
// aggregates. The core never depends on a concrete implementation of any
// of these — only on the shapes declared here.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/cgraph/pkg/synast"
)

// ParseError is returned by a ParserBridge when source_text cannot be
// turned into a syntax tree. It never corrupts repository state.
type ParseError struct {
	FilePath string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.FilePath, e.Reason)
}

// ParserBridge converts one file's source text into the function clauses
// the core operates on. A real implementation lives in pkg/bridge/goast.
type ParserBridge interface {
	Parse(ctx context.Context, filePath, sourceText string) ([]*synast.FunctionAST, error)
}

// FileChangeKind enumerates the change kinds spec.md §6 names.
type FileChangeKind string

const (
	FileCreated  FileChangeKind = "created"
	FileModified FileChangeKind = "modified"
	FileDeleted  FileChangeKind = "deleted"
)

// FileChangeEvent is one filesystem change, as produced by a FileWatcher
// and consumed by the Synchronizer.
type FileChangeEvent struct {
	Kind       FileChangeKind
	FilePath   string
	ObservedAt time.Time
}

// FileWatcher streams FileChangeEvents until ctx is cancelled. A real
// implementation lives in pkg/bridge/fswatcher.
type FileWatcher interface {
	Watch(ctx context.Context) (<-chan FileChangeEvent, <-chan error)
}

// EventSummary is one runtime-event aggregate, keyed by function identity,
// for correlated queries (spec.md §6).
type EventSummary struct {
	FunctionKey  string // module:name/arity
	Count        int64
	ErrorCount   int64
	AvgDuration  time.Duration
	RangeStart   time.Time
	RangeEnd     time.Time
}

// EventQueryTemplate parameterizes a RuntimeEventBridge query.
type EventQueryTemplate struct {
	FunctionKeys []string
	Since        time.Time
	Until        time.Time
}

// RuntimeEventBridge exposes query_events(template) for correlated queries.
// Used only by the query executor's correlated-query path; the core has no
// other dependency on a running system's telemetry.
type RuntimeEventBridge interface {
	QueryEvents(ctx context.Context, template EventQueryTemplate) ([]EventSummary, error)
}
