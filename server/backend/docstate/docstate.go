/*
 * Copyright 2026 The Margo Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package docstate keeps the authoritative in-memory state of loaded
// documents and persists dirty states to the database in coalesced flush
// cycles.
package docstate

import (
	"context"
	"sync"
	"time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/pkg/statedoc"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/profiling/prometheus"
)

// ErrStateEvicted is returned when the entry was evicted while the caller
// still held a reference to it.
var ErrStateEvicted = errors.Unavailable("document state evicted").WithCode("ErrStateEvicted")

// Eviction reasons reported to metrics.
const (
	EvictReasonIdle     = "idle"
	EvictReasonDeleted  = "deleted"
	EvictReasonShutdown = "shutdown"
)

// Manager loads document states on demand, keeps one entry per document
// and flushes dirty entries in the background.
type Manager struct {
	conf    *Config
	db      database.Database
	metrics *prometheus.Metrics

	mu      sync.Mutex
	entries map[types.ID]*Entry

	closeOnce sync.Once
	done      chan struct{}
}

// New creates an instance of Manager.
func New(conf *Config, db database.Database, metrics *prometheus.Metrics) *Manager {
	return &Manager{
		conf:    conf,
		db:      db,
		metrics: metrics,
		entries: make(map[types.ID]*Entry),
		done:    make(chan struct{}),
	}
}

// Acquire returns the entry of the given document, loading its persisted
// snapshot on first use. Concurrent calls for the same document share one
// load; later calls wait for its outcome.
func (m *Manager) Acquire(ctx context.Context, docID types.ID) (*Entry, error) {
	m.mu.Lock()
	entry, ok := m.entries[docID]
	if !ok {
		entry = newEntry(docID)
		m.entries[docID] = entry
	}
	m.mu.Unlock()

	entry.loadOnce.Do(func() {
		info, err := m.db.FindStateInfo(ctx, docID)
		if err != nil {
			if errors.IsStatus(err, errors.ErrCodeNotFound) {
				entry.doc = statedoc.New()
				m.metrics.AddLoadedDoc()
				return
			}
			entry.loadErr = err
			return
		}

		doc, err := statedoc.Decode(info.Snapshot)
		if err != nil {
			entry.loadErr = err
			return
		}
		entry.doc = doc
		m.metrics.AddLoadedDoc()
	})

	if entry.loadErr != nil {
		// Drop the failed entry so that the next acquire retries the load.
		m.mu.Lock()
		if m.entries[docID] == entry {
			delete(m.entries, docID)
		}
		m.mu.Unlock()
		return nil, entry.loadErr
	}

	entry.mu.Lock()
	evicted := entry.evicted
	entry.mu.Unlock()
	if evicted {
		return m.Acquire(ctx, docID)
	}

	entry.touch()
	return entry, nil
}

// Run flushes dirty entries until the given context is canceled. It is
// attached as a background routine by the backend.
func (m *Manager) Run(ctx context.Context) {
	interval := m.conf.ParseFlushInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.FlushAll(ctx)
		}
	}
}

// FlushAll persists every dirty entry.
func (m *Manager) FlushAll(ctx context.Context) {
	for _, entry := range m.snapshot() {
		if !entry.isDirty() {
			continue
		}
		m.flushEntry(ctx, entry)
	}
}

// flushEntry persists the entry's state. The dirty flag is cleared before
// encoding so that writes applied during the flush mark the entry dirty
// again and are picked up by the next cycle.
func (m *Manager) flushEntry(ctx context.Context, entry *Entry) {
	entry.flushMu.Lock()
	defer entry.flushMu.Unlock()

	entry.mu.Lock()
	if entry.evicted || !entry.dirty {
		entry.mu.Unlock()
		return
	}
	entry.dirty = false
	entry.mu.Unlock()

	start := time.Now()
	err := func() error {
		snapshot, err := entry.doc.Encode()
		if err != nil {
			return err
		}
		return m.db.PutStateInfo(ctx, entry.docID, snapshot)
	}()
	m.metrics.ObserveFlushSeconds(time.Since(start).Seconds())

	if err == nil {
		m.metrics.AddFlush("ok")
		entry.mu.Lock()
		entry.failures = 0
		entry.mu.Unlock()
		return
	}

	m.metrics.AddFlush("error")
	entry.mu.Lock()
	entry.dirty = true
	entry.failures++
	failures := entry.failures
	entry.mu.Unlock()

	if failures > m.conf.MaxFlushRetries {
		logging.From(ctx).Errorf("flush %s failed %d times: %v", entry.docID, failures, err)
		return
	}
	logging.From(ctx).Warnf("flush %s: %v", entry.docID, err)
}

// Evict removes the entry of the given document from memory. Unless
// discard is set, a dirty state is persisted first. With discard, pending
// changes are dropped; used when the document is being deleted.
func (m *Manager) Evict(ctx context.Context, docID types.ID, discard bool, reason string) error {
	m.mu.Lock()
	entry, ok := m.entries[docID]
	if ok {
		delete(m.entries, docID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if !discard {
		m.flushEntry(ctx, entry)
	}

	entry.flushMu.Lock()
	entry.mu.Lock()
	entry.evicted = true
	stillDirty := entry.dirty
	entry.mu.Unlock()
	entry.flushMu.Unlock()

	if stillDirty && !discard {
		return ErrStateEvicted
	}

	m.metrics.RemoveLoadedDoc()
	m.metrics.AddDocEviction(reason)
	return nil
}

// EvictIdle evicts entries that have not been touched within the
// configured idle time. Occupied documents are skipped.
func (m *Manager) EvictIdle(ctx context.Context, occupied func(types.ID) bool) {
	maxIdle := m.conf.ParseMaxIdleTime()
	deadline := time.Now().Add(-maxIdle)

	for _, entry := range m.snapshot() {
		if occupied(entry.docID) {
			continue
		}
		if entry.idleSince().After(deadline) {
			continue
		}

		if err := m.Evict(ctx, entry.docID, false, EvictReasonIdle); err != nil {
			logging.From(ctx).Warnf("evict idle %s: %v", entry.docID, err)
		}
	}
}

// Close stops the flush loop, then flushes and evicts all entries. Called
// on server shutdown.
func (m *Manager) Close(ctx context.Context) {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	for _, entry := range m.snapshot() {
		if err := m.Evict(ctx, entry.docID, false, EvictReasonShutdown); err != nil {
			logging.From(ctx).Warnf("evict %s on close: %v", entry.docID, err)
		}
	}
}

// Len returns the number of loaded entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) snapshot() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	return entries
}
