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

package sync_test

import (
	"context"
	"encoding/json"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/api/types/events"
	"github.com/margolab/margo/pkg/statedoc"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/sync"
	"github.com/margolab/margo/test/helper"
)

// recorder collects the events a session sends to its client.
type recorder struct {
	mu     gosync.Mutex
	events []*events.DocEvent
}

func (r *recorder) send(event *events.DocEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) snapshot() []*events.DocEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.DocEvent{}, r.events...)
}

// waitFor polls until the recorder holds an event of the given type.
func (r *recorder) waitFor(t *testing.T, eventType events.DocEventType) *events.DocEvent {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, event := range r.snapshot() {
			if event.Type == eventType {
				return event
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event received", eventType)
	return nil
}

func (r *recorder) count(eventType events.DocEventType) int {
	count := 0
	for _, event := range r.snapshot() {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

func joinedSession(
	t *testing.T,
	be *backend.Backend,
	user *database.UserInfo,
	docID types.ID,
) (*sync.Session, *recorder) {
	t.Helper()

	rec := &recorder{}
	session := sync.NewSession(be, user.ID, rec.send)
	t.Cleanup(func() { session.Close(context.Background()) })

	joinFrame, err := json.Marshal(events.DocEvent{Type: events.JoinEvent, DocID: docID})
	assert.NoError(t, err)
	assert.NoError(t, session.HandleEvent(context.Background(), joinFrame))
	rec.waitFor(t, events.InitialStateEvent)
	return session, rec
}

func deltaFrame(t *testing.T, docID types.ID, class statedoc.OpClass, field string, lamport uint64) []byte {
	t.Helper()

	value, err := json.Marshal("value-" + field)
	assert.NoError(t, err)

	delta := statedoc.Delta{Ops: []statedoc.Op{{
		Field:  field,
		Class:  class,
		Value:  value,
		Ticket: statedoc.Ticket{Lamport: lamport, Actor: "test-actor"},
	}}}
	payload, err := delta.Encode()
	assert.NoError(t, err)

	frame, err := json.Marshal(events.DocEvent{
		Type:    events.DeltaEvent,
		DocID:   docID,
		Payload: payload,
	})
	assert.NoError(t, err)
	return frame
}

func TestSession(t *testing.T) {
	t.Run("join delivers initial state and notifies peers test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		_, recA := joinedSession(t, be, owner, docInfo.ID)

		viewer := helper.CreateUser(t, be, "viewer")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, viewer.ID, types.RoleViewer)
		assert.NoError(t, err)

		_, recB := joinedSession(t, be, viewer, docInfo.ID)

		initial := recB.waitFor(t, events.InitialStateEvent)
		var state struct {
			State json.RawMessage `json:"state"`
			Peers []types.ID      `json:"peers"`
		}
		assert.NoError(t, json.Unmarshal(initial.Payload, &state))
		assert.Equal(t, []types.ID{owner.ID}, state.Peers)

		joined := recA.waitFor(t, events.PeerJoinedEvent)
		assert.Equal(t, viewer.ID, joined.Actor)
	})

	t.Run("join without view permission is denied test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		stranger := helper.CreateUser(t, be, "stranger")

		rec := &recorder{}
		session := sync.NewSession(be, stranger.ID, rec.send)
		defer session.Close(context.Background())

		frame, err := json.Marshal(events.DocEvent{Type: events.JoinEvent, DocID: docInfo.ID})
		assert.NoError(t, err)
		assert.NoError(t, session.HandleEvent(context.Background(), frame))

		rec.waitFor(t, events.DeniedEvent)
		assert.Zero(t, rec.count(events.InitialStateEvent))

		// The session survives the denial: a later grant makes the same
		// join succeed.
		_, err = access.Grant(
			context.Background(), be, docInfo.ID, owner.ID, stranger.ID, types.RoleViewer,
		)
		assert.NoError(t, err)
		assert.NoError(t, session.HandleEvent(context.Background(), frame))
		rec.waitFor(t, events.InitialStateEvent)
	})

	t.Run("commenter comment delta is merged and broadcast test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		commenter := helper.CreateUser(t, be, "commenter")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, commenter.ID, types.RoleCommenter)
		assert.NoError(t, err)

		_, recOwner := joinedSession(t, be, owner, docInfo.ID)
		sessionC, recC := joinedSession(t, be, commenter, docInfo.ID)

		frame := deltaFrame(t, docInfo.ID, statedoc.CommentOp, "comments/1", 1)
		assert.NoError(t, sessionC.HandleEvent(ctx, frame))

		broadcast := recOwner.waitFor(t, events.DeltaEvent)
		assert.Equal(t, commenter.ID, broadcast.Actor)
		// The sender does not receive its own delta.
		assert.Zero(t, recC.count(events.DeltaEvent))

		entry, err := be.States.Acquire(ctx, docInfo.ID)
		assert.NoError(t, err)
		value, ok := entry.Doc().Get("comments/1")
		assert.True(t, ok)
		assert.JSONEq(t, `"value-comments/1"`, string(value))
	})

	t.Run("commenter content delta is rejected and never broadcast test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		commenter := helper.CreateUser(t, be, "commenter")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, commenter.ID, types.RoleCommenter)
		assert.NoError(t, err)

		_, recOwner := joinedSession(t, be, owner, docInfo.ID)
		sessionC, recC := joinedSession(t, be, commenter, docInfo.ID)

		frame := deltaFrame(t, docInfo.ID, statedoc.ContentOp, "annotations/1", 1)
		assert.NoError(t, sessionC.HandleEvent(ctx, frame))

		recC.waitFor(t, events.DeniedEvent)
		assert.Zero(t, recOwner.count(events.DeltaEvent))
		assert.Zero(t, recOwner.count(events.DeniedEvent))

		entry, err := be.States.Acquire(ctx, docInfo.ID)
		assert.NoError(t, err)
		_, ok := entry.Doc().Get("annotations/1")
		assert.False(t, ok)

		// Upgrading the grant mid-session makes the next content delta go
		// through without reconnecting.
		_, err = access.Grant(ctx, be, docInfo.ID, owner.ID, commenter.ID, types.RoleEditor)
		assert.NoError(t, err)
		assert.NoError(t, sessionC.HandleEvent(ctx, frame))
		recOwner.waitFor(t, events.DeltaEvent)
	})

	t.Run("mixed delta needs the stronger permission test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		commenter := helper.CreateUser(t, be, "commenter")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, commenter.ID, types.RoleCommenter)
		assert.NoError(t, err)

		session, rec := joinedSession(t, be, commenter, docInfo.ID)

		mixed := statedoc.Delta{Ops: []statedoc.Op{
			{
				Field:  "comments/1",
				Class:  statedoc.CommentOp,
				Value:  json.RawMessage(`"a comment"`),
				Ticket: statedoc.Ticket{Lamport: 1, Actor: "test-actor"},
			},
			{
				Field:  "annotations/1",
				Class:  statedoc.ContentOp,
				Value:  json.RawMessage(`"a highlight"`),
				Ticket: statedoc.Ticket{Lamport: 2, Actor: "test-actor"},
			},
		}}
		payload, err := mixed.Encode()
		assert.NoError(t, err)
		frame, err := json.Marshal(events.DocEvent{
			Type:    events.DeltaEvent,
			DocID:   docInfo.ID,
			Payload: payload,
		})
		assert.NoError(t, err)

		assert.NoError(t, session.HandleEvent(ctx, frame))
		rec.waitFor(t, events.DeniedEvent)

		// Neither op of the rejected delta is merged.
		entry, err := be.States.Acquire(ctx, docInfo.ID)
		assert.NoError(t, err)
		_, ok := entry.Doc().Get("comments/1")
		assert.False(t, ok)
	})

	t.Run("presence is broadcast but never merged test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		viewer := helper.CreateUser(t, be, "viewer")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, viewer.ID, types.RoleViewer)
		assert.NoError(t, err)

		_, recOwner := joinedSession(t, be, owner, docInfo.ID)
		sessionV, _ := joinedSession(t, be, viewer, docInfo.ID)

		frame, err := json.Marshal(events.DocEvent{
			Type:    events.PresenceEvent,
			DocID:   docInfo.ID,
			Payload: json.RawMessage(`{"page":3,"x":0.4,"y":0.7}`),
		})
		assert.NoError(t, err)
		assert.NoError(t, sessionV.HandleEvent(ctx, frame))

		presence := recOwner.waitFor(t, events.PresenceEvent)
		assert.Equal(t, viewer.ID, presence.Actor)
		assert.JSONEq(t, `{"page":3,"x":0.4,"y":0.7}`, string(presence.Payload))

		// Cursor positions never reach the durable state.
		entry, err := be.States.Acquire(ctx, docInfo.ID)
		assert.NoError(t, err)
		assert.Zero(t, entry.Doc().Len())
	})

	t.Run("delta before join is rejected test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")

		rec := &recorder{}
		session := sync.NewSession(be, owner.ID, rec.send)
		defer session.Close(context.Background())

		frame := deltaFrame(t, docInfo.ID, statedoc.CommentOp, "comments/1", 1)
		err := session.HandleEvent(context.Background(), frame)
		assert.ErrorIs(t, err, sync.ErrNotJoined)
	})

	t.Run("leave notifies peers and allows rejoin test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		viewer := helper.CreateUser(t, be, "viewer")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, viewer.ID, types.RoleViewer)
		assert.NoError(t, err)

		_, recOwner := joinedSession(t, be, owner, docInfo.ID)
		sessionV, _ := joinedSession(t, be, viewer, docInfo.ID)

		leaveFrame, err := json.Marshal(events.DocEvent{Type: events.LeaveEvent})
		assert.NoError(t, err)
		assert.NoError(t, sessionV.HandleEvent(ctx, leaveFrame))

		left := recOwner.waitFor(t, events.PeerLeftEvent)
		assert.Equal(t, viewer.ID, left.Actor)
		assert.Equal(t, []types.ID{owner.ID}, be.Rooms.Members(docInfo.ID))

		joinFrame, err := json.Marshal(events.DocEvent{Type: events.JoinEvent, DocID: docInfo.ID})
		assert.NoError(t, err)
		assert.NoError(t, sessionV.HandleEvent(ctx, joinFrame))
	})

	t.Run("malformed delta is rejected test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		session, _ := joinedSession(t, be, owner, docInfo.ID)

		frame, err := json.Marshal(events.DocEvent{
			Type:    events.DeltaEvent,
			DocID:   docInfo.ID,
			Payload: json.RawMessage(`{"ops":[]}`),
		})
		assert.NoError(t, err)
		assert.ErrorIs(t, session.HandleEvent(ctx, frame), statedoc.ErrInvalidDelta)
	})

	t.Run("room member limit test", func(t *testing.T) {
		be := helper.TestBackend(t)
		be.Config.RoomMemberLimit = 1
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "notes.pdf")
		ctx := context.Background()

		viewer := helper.CreateUser(t, be, "viewer")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, viewer.ID, types.RoleViewer)
		assert.NoError(t, err)

		joinedSession(t, be, owner, docInfo.ID)

		rec := &recorder{}
		session := sync.NewSession(be, viewer.ID, rec.send)
		defer session.Close(ctx)

		frame, err := json.Marshal(events.DocEvent{Type: events.JoinEvent, DocID: docInfo.ID})
		assert.NoError(t, err)
		assert.NoError(t, session.HandleEvent(ctx, frame))
		rec.waitFor(t, events.DeniedEvent)
		assert.Zero(t, rec.count(events.InitialStateEvent))
	})
}
