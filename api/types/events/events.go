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

// Package events defines the event frames exchanged on the synchronization
// boundary. The same frame structure is used on the wire and inside the room
// broadcaster.
package events

import (
	"encoding/json"

	"github.com/margolab/margo/api/types"
)

// DocEventType is the type of a document-scoped event.
type DocEventType string

const (
	// JoinEvent is an inbound request to join a document room.
	JoinEvent DocEventType = "join"

	// LeaveEvent is an inbound request to leave the current room.
	LeaveEvent DocEventType = "leave"

	// DeltaEvent carries an incremental change to the synchronized state.
	// Inbound it is merged and fanned out; outbound it is the raw delta as
	// submitted, to be applied by each receiver against its own replica.
	DeltaEvent DocEventType = "delta"

	// PresenceEvent carries a cursor position. Broadcast-only, never merged
	// into durable state.
	PresenceEvent DocEventType = "presence"

	// InitialStateEvent delivers the full encoded state to a session that
	// has just joined.
	InitialStateEvent DocEventType = "initial_state"

	// DeniedEvent signals the sender that its request was rejected. It is
	// never broadcast.
	DeniedEvent DocEventType = "denied"

	// PeerJoinedEvent notifies room members that a session joined.
	PeerJoinedEvent DocEventType = "peer_joined"

	// PeerLeftEvent notifies room members that a session left.
	PeerLeftEvent DocEventType = "peer_left"

	// DocClosedEvent notifies room members that the document was deleted
	// and the room is being torn down.
	DocClosedEvent DocEventType = "doc_closed"
)

// DocEvent is an event frame scoped to one document.
type DocEvent struct {
	// Type is the type of this event.
	Type DocEventType `json:"type"`

	// DocID is the document the event is scoped to.
	DocID types.ID `json:"doc_id,omitempty"`

	// Actor is the user the event originates from.
	Actor types.ID `json:"actor,omitempty"`

	// Payload is the type-specific body: an encoded delta, an encoded state
	// snapshot, or a presence position.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Reason carries the denial reason for DeniedEvent frames.
	Reason string `json:"reason,omitempty"`
}
