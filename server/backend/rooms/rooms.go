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

// Package rooms tracks which sessions are joined to which documents and
// fans events out to them. It is the memory implementation for a single
// server.
package rooms

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/api/types/events"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/profiling/prometheus"
)

// ErrTooManyMembers is returned when the room member limit is exceeded.
var ErrTooManyMembers = errors.Unavailable("room member limit exceeded").WithCode("ErrTooManyMembers")

type room struct {
	mu      sync.RWMutex
	members map[string]*Member
}

func (r *room) values() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Member, 0, len(r.members))
	for _, member := range r.members {
		members = append(members, member)
	}
	return members
}

// Rooms is the registry of active rooms, one per loaded document.
type Rooms struct {
	mu      sync.RWMutex
	rooms   map[types.ID]*room
	metrics *prometheus.Metrics
}

// New creates an instance of Rooms.
func New(metrics *prometheus.Metrics) *Rooms {
	return &Rooms{
		rooms:   make(map[types.ID]*room),
		metrics: metrics,
	}
}

// Join adds a member for the given user to the document's room and returns
// it together with the actors of the members already present.
func (m *Rooms) Join(
	ctx context.Context,
	docID types.ID,
	actor types.ID,
	limit int,
) (*Member, []types.ID, error) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Join(%s,%s) Start`, docID, actor)
	}

	m.mu.Lock()
	r, ok := m.rooms[docID]
	if !ok {
		r = &room{members: make(map[string]*Member)}
		m.rooms[docID] = r
	}
	m.mu.Unlock()

	r.mu.Lock()
	if limit > 0 && len(r.members) >= limit {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%d members allowed per document: %w", limit, ErrTooManyMembers)
	}

	var peers []types.ID
	for _, member := range r.members {
		peers = append(peers, member.Actor())
	}

	member := newMember(actor)
	r.members[member.ID()] = member
	r.mu.Unlock()

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Join(%s,%s) End`, docID, actor)
	}
	return member, peers, nil
}

// Leave removes the member from the document's room. The empty room is
// dropped from the registry.
func (m *Rooms) Leave(ctx context.Context, docID types.ID, member *Member) {
	member.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[docID]
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.members, member.ID())
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		delete(m.rooms, docID)
	}
}

// Publish delivers the given event to every member of the document's room
// except the one identified by excludeID. Delivery is best-effort.
func (m *Rooms) Publish(
	ctx context.Context,
	docID types.ID,
	event *events.DocEvent,
	excludeID string,
) {
	m.mu.RLock()
	r, ok := m.rooms[docID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	delivered := 0
	for _, member := range r.values() {
		if member.ID() == excludeID {
			continue
		}

		if member.Publish(event) {
			delivered++
			continue
		}

		m.metrics.AddBroadcastDrop()
		logging.From(ctx).Warnf(
			`Publish(%s,%s) dropped for %s`,
			docID,
			event.Type,
			member.Actor(),
		)
	}

	m.metrics.AddBroadcastEvents(string(event.Type), delivered)
}

// CloseRoom notifies every member that the document is gone and drops the
// room. Used when the document is deleted.
func (m *Rooms) CloseRoom(ctx context.Context, docID types.ID, reason string) {
	m.mu.Lock()
	r, ok := m.rooms[docID]
	if ok {
		delete(m.rooms, docID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	event := &events.DocEvent{
		Type:   events.DocClosedEvent,
		DocID:  docID,
		Reason: reason,
	}
	for _, member := range r.values() {
		member.Publish(event)
		member.Close()
	}
}

// Members returns the actors of the members joined to the document.
func (m *Rooms) Members(docID types.ID) []types.ID {
	m.mu.RLock()
	r, ok := m.rooms[docID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	var ids []types.ID
	for _, member := range r.values() {
		ids = append(ids, member.Actor())
	}
	return ids
}
