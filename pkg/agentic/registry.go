// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentic

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultTTL is the typical cache lifetime spec.md §4.2 calls "≈ 5 min".
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	schema    *AgentSchema
	expiresAt time.Time
}

// AgentRegistry resolves an agent name to an AgentSchema in O(1) amortised
// time (spec.md §4.2). Lookups and the cache are keyed by name alone; there
// is no scope discriminator. Precedence on miss: TTL cache -> store -> built-ins
// -> on-disk schema directory. Built-ins never overwrite store rows; on-disk
// files never overwrite built-ins.
type AgentRegistry struct {
	mu       sync.RWMutex
	cache    map[string]cacheEntry
	ttl      time.Duration
	store    Store
	builtins map[string]Document

	schemaDir      string
	loadedOnDisk   bool
	watcher        *fsnotify.Watcher
	onDiskDocs     map[string]Document
}

// RegistryOptions configures an AgentRegistry.
type RegistryOptions struct {
	Store     Store
	Builtins  map[string]Document
	SchemaDir string
	TTL       time.Duration
}

// NewAgentRegistry constructs a registry. Passing a SchemaDir enables
// fsnotify-driven reload of on-disk schema files (*.yaml|*.yml) without
// waiting out the TTL, a DOMAIN STACK addition beyond spec.md's lazy-only
// eviction.
func NewAgentRegistry(opts RegistryOptions) *AgentRegistry {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &AgentRegistry{
		cache:      make(map[string]cacheEntry),
		ttl:        ttl,
		store:      opts.Store,
		builtins:   opts.Builtins,
		schemaDir:  opts.SchemaDir,
		onDiskDocs: make(map[string]Document),
	}
	if r.builtins == nil {
		r.builtins = make(map[string]Document)
	}
	if opts.SchemaDir != "" {
		r.watchSchemaDir()
	}
	return r
}

// Resolve returns the compiled AgentSchema for name, following the
// precedence rules of spec.md §4.2.
func (r *AgentRegistry) Resolve(ctx context.Context, name string) (*AgentSchema, error) {
	if schema, ok := r.readCache(name); ok {
		return schema, nil
	}

	// Store first.
	if r.store != nil {
		row, err := r.store.FetchSchema(ctx, name, "agent")
		if err != nil {
			return nil, NewError(KindStoreError, "AgentRegistry", "Resolve", "store lookup failed", err)
		}
		if row != nil {
			schema, err := BuildFromRow(name, row.JSONSchema)
			if err != nil {
				return nil, err
			}
			r.writeCache(name, schema)
			return schema, nil
		}
	}

	// Built-ins second.
	if doc, ok := r.builtins[name]; ok {
		schema, err := Build(doc)
		if err != nil {
			return nil, err
		}
		r.upsertToStore(ctx, schema)
		r.writeCache(name, schema)
		return schema, nil
	}

	// On-disk schema directory third, loaded lazily once.
	r.ensureSchemaDirLoaded()
	if doc, ok := r.onDiskDocs[name]; ok {
		schema, err := Build(doc)
		if err != nil {
			return nil, err
		}
		r.upsertToStore(ctx, schema)
		r.writeCache(name, schema)
		return schema, nil
	}

	return nil, NewError(KindAgentNotFound, "AgentRegistry", "Resolve", "no source resolved agent name: "+name, nil)
}

// Invalidate evicts a cached schema immediately, ahead of its TTL.
func (r *AgentRegistry) Invalidate(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

func (r *AgentRegistry) readCache(name string) (*AgentSchema, bool) {
	r.mu.RLock()
	entry, ok := r.cache[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Eviction is lazy-on-read (spec.md §4.2).
	if time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.cache, name)
		r.mu.Unlock()
		return nil, false
	}
	return entry.schema, true
}

func (r *AgentRegistry) writeCache(name string, schema *AgentSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Compare-and-swap insertion is sufficient (duplicate compiles
	// tolerated, spec.md §5) — last writer wins, no correctness issue.
	r.cache[name] = cacheEntry{schema: schema, expiresAt: time.Now().Add(r.ttl)}
}

func (r *AgentRegistry) upsertToStore(ctx context.Context, schema *AgentSchema) {
	if r.store == nil {
		return
	}
	js, err := schema.ToJSONSchema()
	if err != nil {
		slog.Warn("agentic: failed to serialise schema for store upsert", "agent", schema.Name, "error", err)
		return
	}
	if _, err := r.store.UpsertSchema(ctx, SchemaRow{Name: schema.Name, Kind: "agent", JSONSchema: js}); err != nil {
		slog.Warn("agentic: failed to upsert resolved schema into store", "agent", schema.Name, "error", err)
	}
}

func (r *AgentRegistry) ensureSchemaDirLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadedOnDisk || r.schemaDir == "" {
		return
	}
	r.loadedOnDisk = true
	r.loadSchemaDirLocked()
}

func (r *AgentRegistry) loadSchemaDirLocked() {
	entries, err := os.ReadDir(r.schemaDir)
	if err != nil {
		slog.Warn("agentic: failed to read schema directory", "dir", r.schemaDir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(r.schemaDir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("agentic: failed to read schema file", "path", path, "error", err)
			continue
		}
		schema, err := FromYAML(raw)
		if err != nil {
			slog.Warn("agentic: failed to parse schema file", "path", path, "error", err)
			continue
		}
		r.onDiskDocs[schema.Name] = schema.ToDocument()
	}
}

// watchSchemaDir starts an fsnotify watch on the schema directory so new or
// changed files become visible without waiting out the TTL. Best-effort:
// failures to start the watcher only forward-declare a log warning, since
// the lazy os.ReadDir load path above remains correct without it.
func (r *AgentRegistry) watchSchemaDir() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("agentic: failed to start schema directory watcher", "error", err)
		return
	}
	if err := watcher.Add(r.schemaDir); err != nil {
		slog.Warn("agentic: failed to watch schema directory", "dir", r.schemaDir, "error", err)
		_ = watcher.Close()
		return
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				r.mu.Lock()
				r.loadedOnDisk = false
				r.onDiskDocs = make(map[string]Document)
				r.loadSchemaDirLocked()
				r.loadedOnDisk = true
				// Drop every cached schema so the next Resolve of any
				// name goes back through the source precedence.
				r.cache = make(map[string]cacheEntry)
				r.mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("agentic: schema directory watcher error", "error", err)
			}
		}
	}()
}

// Close stops the schema directory watcher, if any.
func (r *AgentRegistry) Close() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Close()
}
