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

package docstate

import (
	"sync"
	"time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/statedoc"
)

// Entry is an in-memory document state. All joined sessions of a document
// share the single entry of that document.
type Entry struct {
	docID types.ID

	// loadOnce guards the initial load from the database so that
	// concurrent joins trigger it exactly once.
	loadOnce sync.Once
	loadErr  error
	doc      *statedoc.Doc

	// mu guards the fields below.
	mu         sync.Mutex
	dirty      bool
	evicted    bool
	failures   int
	lastAccess time.Time

	// flushMu serializes persistence against eviction so that a snapshot
	// is never written for a document that has been discarded.
	flushMu sync.Mutex
}

func newEntry(docID types.ID) *Entry {
	return &Entry{
		docID:      docID,
		lastAccess: time.Now(),
	}
}

// DocID returns the document this entry belongs to.
func (e *Entry) DocID() types.ID {
	return e.docID
}

// ApplyDelta merges the given delta into the state and marks the entry
// dirty for the next flush cycle.
func (e *Entry) ApplyDelta(delta statedoc.Delta) {
	e.doc.ApplyDelta(delta)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = true
	e.lastAccess = time.Now()
}

// EncodedState returns the current state encoded as a snapshot.
func (e *Entry) EncodedState() ([]byte, error) {
	e.touch()
	return e.doc.Encode()
}

// Doc returns the underlying document state.
func (e *Entry) Doc() *statedoc.Doc {
	return e.doc
}

func (e *Entry) touch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAccess = time.Now()
}

func (e *Entry) isDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

func (e *Entry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAccess
}
