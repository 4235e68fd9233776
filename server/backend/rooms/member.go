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

package rooms

import (
	"sync"
	gotime "time"

	"github.com/rs/xid"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/api/types/events"
)

const (
	// publishTimeout is the timeout for publishing an event to a member.
	publishTimeout = 100 * gotime.Millisecond

	// eventBufferSize is the size of each member's event buffer.
	eventBufferSize = 64
)

// Member represents a session joined to a room. Events published to the
// room are delivered on its channel.
type Member struct {
	id     string
	actor  types.ID
	mu     sync.Mutex
	closed bool
	events chan *events.DocEvent
}

// newMember creates a new instance of Member.
func newMember(actor types.ID) *Member {
	return &Member{
		id:     xid.New().String(),
		actor:  actor,
		events: make(chan *events.DocEvent, eventBufferSize),
	}
}

// ID returns the id of this member.
func (m *Member) ID() string {
	return m.id
}

// Actor returns the user this member belongs to.
func (m *Member) Actor() types.ID {
	return m.actor
}

// Events returns the event channel of this member.
func (m *Member) Events() <-chan *events.DocEvent {
	return m.events
}

// Close closes all resources of this member.
func (m *Member) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.events)
	}
}

// Publish delivers the given event to this member. Delivery is best-effort:
// when the member cannot keep up within publishTimeout, the event is dropped
// and false is returned.
func (m *Member) Publish(event *events.DocEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	select {
	case m.events <- event:
		return true
	case <-gotime.After(publishTimeout):
		return false
	}
}
