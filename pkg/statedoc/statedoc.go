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

// Package statedoc provides the convergent state object behind a document's
// synchronized annotations and comments. It is an operation-based
// last-writer-wins register map: each field holds a value and the ticket of
// the write that set it, and a delta is a batch of field writes. Merging is
// commutative, idempotent and associative, so replicas converge regardless
// of delivery order, and the server never inspects field values.
package statedoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Doc is a convergent register map. It is safe for concurrent use.
type Doc struct {
	mu        sync.RWMutex
	registers map[string]register
	lamport   uint64
}

type register struct {
	Value  json.RawMessage `json:"value"`
	Class  OpClass         `json:"class"`
	Ticket Ticket          `json:"ticket"`
}

// encodedDoc is the persisted form of a Doc.
type encodedDoc struct {
	Registers map[string]register `json:"registers"`
	Lamport   uint64              `json:"lamport"`
}

// New creates an empty Doc.
func New() *Doc {
	return &Doc{
		registers: make(map[string]register),
	}
}

// Decode reconstructs a Doc from its encoded form.
func Decode(snapshot []byte) (*Doc, error) {
	var enc encodedDoc
	if err := json.Unmarshal(snapshot, &enc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	doc := New()
	for field, reg := range enc.Registers {
		doc.registers[field] = reg
	}
	doc.lamport = enc.Lamport
	return doc, nil
}

// Encode returns the full encoded snapshot of this Doc. The encoding is an
// opaque byte representation to callers; only Decode understands it.
func (d *Doc) Encode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snapshot, err := json.Marshal(encodedDoc{
		Registers: d.registers,
		Lamport:   d.lamport,
	})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return snapshot, nil
}

// ApplyDelta merges the given delta into this Doc. A field write wins only if
// its ticket is after the ticket already recorded for that field, so applying
// the same delta twice, or deltas in any order, yields the same state.
func (d *Doc) ApplyDelta(delta Delta) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, op := range delta.Ops {
		if op.Ticket.Lamport > d.lamport {
			d.lamport = op.Ticket.Lamport
		}

		existing, ok := d.registers[op.Field]
		if ok && !op.Ticket.After(existing.Ticket) {
			continue
		}

		d.registers[op.Field] = register{
			Value:  op.Value,
			Class:  op.Class,
			Ticket: op.Ticket,
		}
	}
}

// Edit performs a local write of the given fields and returns the delta to
// broadcast to other replicas. All writes share one freshly issued ticket.
func (d *Doc) Edit(actor string, class OpClass, fields map[string]json.RawMessage) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lamport++
	ticket := Ticket{Lamport: d.lamport, Actor: actor}

	delta := Delta{}
	for field, value := range fields {
		op := Op{
			Field:  field,
			Class:  class,
			Value:  value,
			Ticket: ticket,
		}
		delta.Ops = append(delta.Ops, op)
		d.registers[field] = register{
			Value:  value,
			Class:  class,
			Ticket: ticket,
		}
	}

	sort.Slice(delta.Ops, func(i, j int) bool {
		return delta.Ops[i].Field < delta.Ops[j].Field
	})
	return delta
}

// Diff returns the delta that brings the given replica up to date with this
// Doc: every register whose ticket is after the one the replica holds.
func (d *Doc) Diff(replica *Doc) Delta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	replica.mu.RLock()
	defer replica.mu.RUnlock()

	delta := Delta{}
	for field, reg := range d.registers {
		other, ok := replica.registers[field]
		if ok && !reg.Ticket.After(other.Ticket) {
			continue
		}
		delta.Ops = append(delta.Ops, Op{
			Field:  field,
			Class:  reg.Class,
			Value:  reg.Value,
			Ticket: reg.Ticket,
		})
	}

	sort.Slice(delta.Ops, func(i, j int) bool {
		return delta.Ops[i].Field < delta.Ops[j].Field
	})
	return delta
}

// Get returns the value of the given field.
func (d *Doc) Get(field string) (json.RawMessage, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.registers[field]
	if !ok {
		return nil, false
	}
	return reg.Value, true
}

// Len returns the number of registers held by this Doc.
func (d *Doc) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.registers)
}

// Checksum returns a deterministic digest of the current state. Two replicas
// with identical merged state produce identical checksums.
func (d *Doc) Checksum() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields := make([]string, 0, len(d.registers))
	for field := range d.registers {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	hash := sha256.New()
	for _, field := range fields {
		reg := d.registers[field]
		fmt.Fprintf(hash, "%s=%s@%d/%s;", field, reg.Value, reg.Ticket.Lamport, reg.Ticket.Actor)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
