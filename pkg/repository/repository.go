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

// Package repository is the in-memory, single-writer-many-reader store for
// module and function records, their graphs, and the secondary indexes
// that serve find_callers_of / get_module_by_filepath / query_functions.
// Every write is submitted to a buffered mailbox channel and applied, in
// submission order, by one goroutine under the write lock; readers take the
// read lock and wait only while a write is being applied, never behind a
// queued one.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/viant/cgraph/pkg/cfg"
	"github.com/viant/cgraph/pkg/cpg"
	"github.com/viant/cgraph/pkg/dfg"
	"github.com/viant/cgraph/pkg/synast"
)

// FunctionKey identifies a function record, per spec.md's (module,name,arity) triple.
type FunctionKey struct {
	Module string
	Name   string
	Arity  int
}

func (k FunctionKey) String() string { return fmt.Sprintf("%s:%s/%d", k.Module, k.Name, k.Arity) }

// CPGData is the addressable payload stored alongside a function's graphs.
// It is a type alias of cpg.CPG, so it is the builder package's own type.
type CPGData = cpg.CPG

// FunctionRecord is the per-function record of spec.md §3.
type FunctionRecord struct {
	Key       FunctionKey
	AST       *synast.FunctionAST
	CFG       *cfg.CFG
	DFG       *dfg.DFG
	CPG       *CPGData
	Complexity cfg.ComplexityMetrics
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModuleLevelMetrics rolls up per-function complexity, the teacher's
// summarize-after-ingest habit (see DESIGN.md's pkg/repository entry).
type ModuleLevelMetrics struct {
	FunctionCount    int
	AverageCyclomatic float64
	MaxCyclomatic    int
	TotalLinesOfCode int
}

// ModuleRecord is the per-module record of spec.md §3.
type ModuleRecord struct {
	ModuleName  string
	FilePath    string
	FileHash    string
	Functions   map[FunctionKey]*FunctionRecord
	Dependencies []string
	Exports     []string
	Attributes  map[string]string
	ModuleLevelMetrics ModuleLevelMetrics
}

// ErrNotFound, ErrMemoryLimitExceeded, ErrUnavailable are the sentinels
// behind RepositoryError's Kind values.
var (
	ErrNotFound            = fmt.Errorf("repository: not found")
	ErrMemoryLimitExceeded = fmt.Errorf("repository: memory limit exceeded")
	ErrUnavailable         = fmt.Errorf("repository: unavailable")
)

// RepositoryError is the tagged error every repository operation returns.
type RepositoryError struct {
	Kind    string // "not_found" | "memory_limit_exceeded" | "unavailable"
	Subject string // module/function identity or query shape, for the caller's log line
	Err     error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository error (%s) on %s: %v", e.Kind, e.Subject, e.Err)
}
func (e *RepositoryError) Unwrap() error { return e.Err }

func notFound(subject string) *RepositoryError {
	return &RepositoryError{Kind: "not_found", Subject: subject, Err: ErrNotFound}
}

// Stats is a point-in-time snapshot for the CLI `stats` subcommand (per
// SPEC_FULL.md's supplemental features); it is not exported to Prometheus.
type Stats struct {
	ModuleCount       int
	FunctionCount     int
	ASTNodeCount      int
	CallIndexEntries  int
	LastWriteAt       time.Time
}

// Options configures the repository's mailbox size. MaxMemoryMB is stored
// but not enforced or reported: no write is warned about or refused for size.
type Options struct {
	MaxMemoryMB int
	MailboxSize int
}

// DefaultOptions matches spec.md's "no persisted state, lives in memory" baseline.
func DefaultOptions() Options { return Options{MaxMemoryMB: 0, MailboxSize: 256} }

// writeRequest is one unit submitted to the mailbox: apply performs the
// write, and result carries its error back to the caller waiting on it.
type writeRequest struct {
	apply  func() error
	result chan error
}

// Repository is the single-writer-many-reader store. Reads take mu.RLock
// directly against already-committed tables; writes are serialized by a
// single goroutine draining the mailbox channel, per spec.md §5's
// "mailbox/queue" scheduling model.
type Repository struct {
	mu sync.RWMutex

	modules   map[string]*ModuleRecord // by module_name
	byFile    map[string]string        // file_path -> module_name
	astNodes  map[string][]byte        // ast_node_id -> opaque payload
	callIndex map[FunctionKey][]FunctionKey // callee -> callers (inverted call index)

	opts    Options
	logger  *slog.Logger
	mailbox chan writeRequest
	stats   Stats

	closeOnce sync.Once
	done      chan struct{}
}

// New starts the repository's write-applier goroutine and returns a ready
// instance. Callers should defer Close to stop the goroutine cleanly.
func New(opts Options, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MailboxSize <= 0 {
		opts = DefaultOptions()
	}
	r := &Repository{
		modules:   map[string]*ModuleRecord{},
		byFile:    map[string]string{},
		astNodes:  map[string][]byte{},
		callIndex: map[FunctionKey][]FunctionKey{},
		opts:      opts,
		logger:    logger,
		mailbox:   make(chan writeRequest, opts.MailboxSize),
		done:      make(chan struct{}),
	}
	go r.runWriter()
	return r
}

// Close stops the write-applier goroutine. Safe to call more than once.
func (r *Repository) Close() {
	r.closeOnce.Do(func() { close(r.mailbox) })
	<-r.done
}

func (r *Repository) runWriter() {
	defer close(r.done)
	for req := range r.mailbox {
		err := req.apply()
		if req.result != nil {
			req.result <- err
		}
	}
}

// submit enqueues a write and blocks the caller until it is applied,
// preserving spec.md §5's "writes apply in submission order and become
// visible to subsequent reads atomically" guarantee without holding any
// lock while queued.
func (r *Repository) submit(ctx context.Context, subject string, apply func() error) error {
	req := writeRequest{apply: apply, result: make(chan error, 1)}
	select {
	case r.mailbox <- req:
	case <-ctx.Done():
		return &RepositoryError{Kind: "unavailable", Subject: subject, Err: fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())}
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return &RepositoryError{Kind: "unavailable", Subject: subject, Err: fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())}
	}
}

// StoreModule replaces the existing record (if any) and updates every
// index atomically, per spec.md §4.5/R4.
func (r *Repository) StoreModule(ctx context.Context, rec *ModuleRecord) error {
	return r.submit(ctx, rec.ModuleName, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		if prior, ok := r.modules[rec.ModuleName]; ok {
			r.unindexModuleLocked(prior)
		}
		if priorName, ok := r.byFile[rec.FilePath]; ok && priorName != rec.ModuleName {
			if prior, ok := r.modules[priorName]; ok {
				r.unindexModuleLocked(prior)
				delete(r.modules, priorName)
			}
		}
		if rec.Functions == nil {
			rec.Functions = map[FunctionKey]*FunctionRecord{}
		}
		rec.ModuleLevelMetrics = rollupModuleMetrics(rec.Functions)

		r.modules[rec.ModuleName] = rec
		r.byFile[rec.FilePath] = rec.ModuleName
		for key, fn := range rec.Functions {
			r.indexFunctionLocked(key, fn)
		}
		r.touchStatsLocked()
		return nil
	})
}

// GetModule reads the current record, if any. Reads never block writes
// that have not yet committed, nor vice versa, beyond the RWMutex's normal
// reader/writer exclusion on the tables themselves.
func (r *Repository) GetModule(moduleName string) (*ModuleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[moduleName]
	if !ok {
		return nil, notFound(moduleName)
	}
	return rec, nil
}

// GetModuleByFilepath is served from the file-path index, per spec.md §4.5.
func (r *Repository) GetModuleByFilepath(filePath string) (*ModuleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byFile[filePath]
	if !ok {
		return nil, notFound(filePath)
	}
	rec, ok := r.modules[name]
	if !ok {
		return nil, notFound(filePath)
	}
	return rec, nil
}

// DeleteModule cascades to every function and CPG record and cleans every index.
func (r *Repository) DeleteModule(ctx context.Context, moduleName string) error {
	return r.submit(ctx, moduleName, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		rec, ok := r.modules[moduleName]
		if !ok {
			return notFound(moduleName)
		}
		r.unindexModuleLocked(rec)
		delete(r.modules, moduleName)
		delete(r.byFile, rec.FilePath)
		r.touchStatsLocked()
		return nil
	})
}

// StoreFunction updates the inverted call index and the module's rolled-up
// metrics. No complexity-bucket index is kept; complexity queries scan.
func (r *Repository) StoreFunction(ctx context.Context, fn *FunctionRecord) error {
	return r.submit(ctx, fn.Key.String(), func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		rec, ok := r.modules[fn.Key.Module]
		if !ok {
			return notFound(fn.Key.Module)
		}
		if prior, ok := rec.Functions[fn.Key]; ok {
			r.unindexFunctionLocked(prior)
		}
		if fn.CreatedAt.IsZero() {
			fn.CreatedAt = time.Now()
		}
		fn.UpdatedAt = time.Now()
		rec.Functions[fn.Key] = fn
		r.indexFunctionLocked(fn.Key, fn)
		rec.ModuleLevelMetrics = rollupModuleMetrics(rec.Functions)
		r.touchStatsLocked()
		return nil
	})
}

// GetFunction looks up a function record by (module, name, arity).
func (r *Repository) GetFunction(key FunctionKey) (*FunctionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[key.Module]
	if !ok {
		return nil, notFound(key.String())
	}
	fn, ok := rec.Functions[key]
	if !ok {
		return nil, notFound(key.String())
	}
	return fn, nil
}

// GetFunctionsForModule returns every function record in a module, sorted
// by (name, arity) for deterministic iteration.
func (r *Repository) GetFunctionsForModule(moduleName string) ([]*FunctionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[moduleName]
	if !ok {
		return nil, notFound(moduleName)
	}
	out := make([]*FunctionRecord, 0, len(rec.Functions))
	for _, fn := range rec.Functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Name != out[j].Key.Name {
			return out[i].Key.Name < out[j].Key.Name
		}
		return out[i].Key.Arity < out[j].Key.Arity
	})
	return out, nil
}

// StoreASTNode / GetASTNode are the fine-grained addressable storage spec.md §4.5 names.
func (r *Repository) StoreASTNode(ctx context.Context, astNodeID string, payload []byte) error {
	return r.submit(ctx, astNodeID, func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.astNodes[astNodeID] = payload
		r.touchStatsLocked()
		return nil
	})
}

func (r *Repository) GetASTNode(astNodeID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	payload, ok := r.astNodes[astNodeID]
	if !ok {
		return nil, notFound(astNodeID)
	}
	return payload, nil
}

// StoreCPG / GetCPG address a function's CPG directly, independent of the
// full FunctionRecord (spec.md §4.5's "(module,name,arity) / CPGData").
func (r *Repository) StoreCPG(ctx context.Context, key FunctionKey, data *CPGData) error {
	return r.submit(ctx, key.String(), func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		rec, ok := r.modules[key.Module]
		if !ok {
			return notFound(key.Module)
		}
		fn, ok := rec.Functions[key]
		if !ok {
			return notFound(key.String())
		}
		fn.CPG = data
		r.touchStatsLocked()
		return nil
	})
}

func (r *Repository) GetCPG(key FunctionKey) (*CPGData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[key.Module]
	if !ok {
		return nil, notFound(key.String())
	}
	fn, ok := rec.Functions[key]
	if !ok || fn.CPG == nil {
		return nil, notFound(key.String())
	}
	return fn.CPG, nil
}

// FindCallersOf is served entirely from the inverted call index. Call sites
// are indexed by module+name only (indexFunctionLocked has no arity
// information at a call site, so it always indexes under Arity: -1); the
// lookup key is normalized the same way so a caller passing a real
// (module, name, arity) still hits the populated entry.
func (r *Repository) FindCallersOf(key FunctionKey) ([]FunctionKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lookupKey := FunctionKey{Module: key.Module, Name: key.Name, Arity: -1}
	callers := r.callIndex[lookupKey]
	out := make([]FunctionKey, len(callers))
	copy(out, callers)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ClearAll empties every table and resets stats.
func (r *Repository) ClearAll(ctx context.Context) error {
	return r.submit(ctx, "*", func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.modules = map[string]*ModuleRecord{}
		r.byFile = map[string]string{}
		r.astNodes = map[string][]byte{}
		r.callIndex = map[FunctionKey][]FunctionKey{}
		r.stats = Stats{}
		return nil
	})
}

// Stats returns a point-in-time snapshot (unexported fields copied under RLock).
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	s.ModuleCount = len(r.modules)
	s.ASTNodeCount = len(r.astNodes)
	functionCount := 0
	for _, m := range r.modules {
		functionCount += len(m.Functions)
	}
	s.FunctionCount = functionCount
	callEntries := 0
	for _, callers := range r.callIndex {
		callEntries += len(callers)
	}
	s.CallIndexEntries = callEntries
	return s
}

// indexFunctionLocked wires a function's calls (discovered from its CFG's
// function_call nodes) into the inverted call index. Must be called with mu held.
func (r *Repository) indexFunctionLocked(key FunctionKey, fn *FunctionRecord) {
	if fn.CFG == nil {
		return
	}
	for _, n := range fn.CFG.Nodes {
		if n.Kind != cfg.KindFunctionCall || n.ExpressionRef == "" {
			continue
		}
		callee := FunctionKey{Module: key.Module, Name: n.ExpressionRef, Arity: -1}
		r.callIndex[callee] = appendCallerOnce(r.callIndex[callee], key)
	}
}

func (r *Repository) unindexFunctionLocked(fn *FunctionRecord) {
	if fn.CFG == nil {
		return
	}
	for _, n := range fn.CFG.Nodes {
		if n.Kind != cfg.KindFunctionCall || n.ExpressionRef == "" {
			continue
		}
		callee := FunctionKey{Module: fn.Key.Module, Name: n.ExpressionRef, Arity: -1}
		r.callIndex[callee] = removeCaller(r.callIndex[callee], fn.Key)
	}
}

func (r *Repository) unindexModuleLocked(rec *ModuleRecord) {
	for _, fn := range rec.Functions {
		r.unindexFunctionLocked(fn)
	}
}

func (r *Repository) touchStatsLocked() {
	r.stats.LastWriteAt = time.Now()
}

func appendCallerOnce(callers []FunctionKey, key FunctionKey) []FunctionKey {
	for _, c := range callers {
		if c == key {
			return callers
		}
	}
	return append(callers, key)
}

func removeCaller(callers []FunctionKey, key FunctionKey) []FunctionKey {
	out := callers[:0]
	for _, c := range callers {
		if c != key {
			out = append(out, c)
		}
	}
	return out
}

func rollupModuleMetrics(functions map[FunctionKey]*FunctionRecord) ModuleLevelMetrics {
	m := ModuleLevelMetrics{FunctionCount: len(functions)}
	if len(functions) == 0 {
		return m
	}
	total := 0
	for _, fn := range functions {
		total += fn.Complexity.Cyclomatic
		m.TotalLinesOfCode += fn.Complexity.LinesOfCode
		if fn.Complexity.Cyclomatic > m.MaxCyclomatic {
			m.MaxCyclomatic = fn.Complexity.Cyclomatic
		}
	}
	m.AverageCyclomatic = float64(total) / float64(len(functions))
	return m
}
