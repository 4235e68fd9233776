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

package statedoc

import (
	"encoding/json"
	"fmt"

	"github.com/margolab/margo/pkg/errors"
)

// ErrInvalidDelta is returned when a delta cannot be decoded or is malformed.
var ErrInvalidDelta = errors.InvalidArgument("invalid delta").WithCode("ErrInvalidDelta")

// OpClass classifies a field write by its semantic payload. The server uses
// the class to decide which permission the submitter needs.
type OpClass string

const (
	// ContentOp is an annotation or content change.
	ContentOp OpClass = "content"

	// CommentOp is a pure comment-thread change.
	CommentOp OpClass = "comment"
)

// Ticket totally orders the writes to one field: the higher lamport clock
// wins, and the actor id breaks ties deterministically.
type Ticket struct {
	Lamport uint64 `json:"lamport"`
	Actor   string `json:"actor"`
}

// After reports whether this ticket orders after the other.
func (t Ticket) After(other Ticket) bool {
	if t.Lamport != other.Lamport {
		return t.Lamport > other.Lamport
	}
	return t.Actor > other.Actor
}

// Op is a single field write.
type Op struct {
	Field  string          `json:"field"`
	Class  OpClass         `json:"class"`
	Value  json.RawMessage `json:"value"`
	Ticket Ticket          `json:"ticket"`
}

// Delta is an incremental, mergeable batch of field writes.
type Delta struct {
	Ops []Op `json:"ops"`
}

// DecodeDelta decodes and validates a delta from its wire form.
func DecodeDelta(raw []byte) (Delta, error) {
	var delta Delta
	if err := json.Unmarshal(raw, &delta); err != nil {
		return Delta{}, fmt.Errorf("decode delta: %w", ErrInvalidDelta)
	}

	if err := delta.Validate(); err != nil {
		return Delta{}, err
	}
	return delta, nil
}

// Encode returns the wire form of this delta.
func (d Delta) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode delta: %w", err)
	}
	return raw, nil
}

// Validate returns an error if this delta is empty or malformed.
func (d Delta) Validate() error {
	if len(d.Ops) == 0 {
		return fmt.Errorf("empty delta: %w", ErrInvalidDelta)
	}

	for _, op := range d.Ops {
		if op.Field == "" {
			return fmt.Errorf("op without field: %w", ErrInvalidDelta)
		}
		if op.Class != ContentOp && op.Class != CommentOp {
			return fmt.Errorf("op class %q: %w", op.Class, ErrInvalidDelta)
		}
		if op.Ticket.Lamport == 0 || op.Ticket.Actor == "" {
			return fmt.Errorf("op without ticket: %w", ErrInvalidDelta)
		}
	}
	return nil
}

// Class returns the permission class of this delta. A delta carrying any
// content write is a content delta; otherwise it is a comment delta.
func (d Delta) Class() OpClass {
	for _, op := range d.Ops {
		if op.Class == ContentOp {
			return ContentOp
		}
	}
	return CommentOp
}
