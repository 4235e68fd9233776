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

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/api/types/events"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/pkg/statedoc"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/backend/rooms"
	"github.com/margolab/margo/server/logging"
)

// sessionState is the lifecycle state of a session.
type sessionState int

const (
	// stateAuthenticated is a connected session that has not joined a
	// document yet, or has left one.
	stateAuthenticated sessionState = iota
	// stateJoined is a session joined to a document room.
	stateJoined
	// stateClosed is a torn-down session.
	stateClosed
)

var (
	// ErrNotJoined is returned when a delta or presence frame arrives
	// before the session joined a document.
	ErrNotJoined = errors.FailedPrecond("session has not joined a document").WithCode("ErrNotJoined")

	// ErrAlreadyJoined is returned when a joined session requests another
	// join without leaving first.
	ErrAlreadyJoined = errors.FailedPrecond("session has already joined a document").WithCode("ErrAlreadyJoined")

	// ErrSessionClosed is returned when a frame arrives on a closed session.
	ErrSessionClosed = errors.Unavailable("session closed").WithCode("ErrSessionClosed")

	// ErrUnknownEvent is returned for inbound frames of unknown type.
	ErrUnknownEvent = errors.InvalidArgument("unknown event type").WithCode("ErrUnknownEvent")
)

// SendFunc delivers an outbound event to the session's client.
type SendFunc func(event *events.DocEvent) error

// initialState is the payload of the InitialStateEvent frame.
type initialState struct {
	State json.RawMessage `json:"state"`
	Peers []types.ID      `json:"peers"`
}

// Session handles one connected client: it authenticates frames against the
// access evaluator, feeds allowed deltas into the document state and fans
// them out to the room. It holds no document state itself beyond which
// document and which user.
type Session struct {
	id     string
	be     *backend.Backend
	userID types.ID
	send   SendFunc

	// mu guards the session lifecycle fields below. Inbound frames of one
	// session are handled in order.
	mu     sync.Mutex
	state  sessionState
	docID  types.ID
	entry  *docstate.Entry
	member *rooms.Member

	// pumpDone is closed when the room-event pump of the current join has
	// drained.
	pumpDone chan struct{}
}

// NewSession creates a session for the given authenticated user. Outbound
// events are passed to send; send must be safe for concurrent use.
func NewSession(be *backend.Backend, userID types.ID, send SendFunc) *Session {
	be.Metrics.AddSyncSession()
	return &Session{
		id:     xid.New().String(),
		be:     be,
		userID: userID,
		send:   send,
		state:  stateAuthenticated,
	}
}

// ID returns the id of this session.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the user this session authenticated as.
func (s *Session) UserID() types.ID {
	return s.userID
}

// HandleEvent dispatches one inbound frame. A permission denial is reported
// to the sender only and keeps the session alive; other errors are returned
// to the transport.
func (s *Session) HandleEvent(ctx context.Context, raw []byte) error {
	event := events.DocEvent{}
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("decode frame: %w", ErrUnknownEvent)
	}

	switch event.Type {
	case events.JoinEvent:
		return s.handleJoin(ctx, event.DocID)
	case events.LeaveEvent:
		return s.handleLeave(ctx)
	case events.DeltaEvent:
		return s.handleDelta(ctx, event.Payload)
	case events.PresenceEvent:
		return s.handlePresence(ctx, event.Payload)
	default:
		return fmt.Errorf("%s: %w", event.Type, ErrUnknownEvent)
	}
}

// handleJoin joins the document room and delivers the current encoded state
// as the initial synchronization payload. A denial leaves the session in
// the authenticated state.
func (s *Session) handleJoin(ctx context.Context, docID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrSessionClosed
	case stateJoined:
		return ErrAlreadyJoined
	}

	docInfo, err := s.be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		// A missing document is indistinguishable from an inaccessible one.
		if errors.IsStatus(err, errors.ErrCodeNotFound) {
			return s.deny(docID, err)
		}
		return err
	}

	if err := access.CanPerform(ctx, s.be.DB, docInfo, s.userID, access.ActionView); err != nil {
		if errors.IsStatus(err, errors.ErrCodePermissionDenied) {
			return s.deny(docID, err)
		}
		return err
	}

	entry, err := s.be.States.Acquire(ctx, docID)
	if err != nil {
		return err
	}

	member, peers, err := s.be.Rooms.Join(ctx, docID, s.userID, s.be.Config.RoomMemberLimit)
	if err != nil {
		return s.deny(docID, err)
	}

	encoded, err := entry.EncodedState()
	if err != nil {
		s.be.Rooms.Leave(ctx, docID, member)
		return err
	}

	payload, err := json.Marshal(initialState{State: encoded, Peers: peers})
	if err != nil {
		s.be.Rooms.Leave(ctx, docID, member)
		return fmt.Errorf("marshal initial state: %w", err)
	}

	s.state = stateJoined
	s.docID = docID
	s.entry = entry
	s.member = member
	s.pumpDone = make(chan struct{})

	go s.pump(ctx, member, s.pumpDone)

	if err := s.send(&events.DocEvent{
		Type:    events.InitialStateEvent,
		DocID:   docID,
		Payload: payload,
	}); err != nil {
		return err
	}

	s.be.Rooms.Publish(ctx, docID, &events.DocEvent{
		Type:  events.PeerJoinedEvent,
		DocID: docID,
		Actor: s.userID,
	}, member.ID())

	logging.From(ctx).Debugf("session %s joined %s", s.id, docID)
	return nil
}

// handleDelta merges an allowed delta into the shared state and broadcasts
// the raw delta to the rest of the room. A denied delta is dropped and
// signaled to the sender only.
func (s *Session) handleDelta(ctx context.Context, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateJoined {
		return ErrNotJoined
	}

	delta, err := statedoc.DecodeDelta(raw)
	if err != nil {
		return err
	}
	if err := delta.Validate(); err != nil {
		return err
	}

	action := access.ActionComment
	if delta.Class() == statedoc.ContentOp {
		action = access.ActionEditContent
	}

	// Grants can change between deltas within one session, so the document
	// and grant state are read fresh for every delta.
	docInfo, err := s.be.DB.FindDocInfoByID(ctx, s.docID)
	if err != nil {
		return err
	}
	if err := access.CanPerform(ctx, s.be.DB, docInfo, s.userID, action); err != nil {
		if errors.IsStatus(err, errors.ErrCodePermissionDenied) {
			s.be.Metrics.AddDeniedDeltas(string(action))
			return s.deny(s.docID, err)
		}
		return err
	}

	s.entry.ApplyDelta(delta)
	s.be.Metrics.AddAppliedDeltas(string(delta.Class()))

	s.be.Rooms.Publish(ctx, s.docID, &events.DocEvent{
		Type:    events.DeltaEvent,
		DocID:   s.docID,
		Actor:   s.userID,
		Payload: raw,
	}, s.member.ID())

	return nil
}

// handlePresence broadcasts a cursor position to the rest of the room. It
// is never merged into durable state.
func (s *Session) handlePresence(ctx context.Context, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateJoined {
		return ErrNotJoined
	}

	s.be.Rooms.Publish(ctx, s.docID, &events.DocEvent{
		Type:    events.PresenceEvent,
		DocID:   s.docID,
		Actor:   s.userID,
		Payload: raw,
	}, s.member.ID())

	return nil
}

// handleLeave leaves the current room and returns the session to the
// authenticated state.
func (s *Session) handleLeave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateJoined {
		return ErrNotJoined
	}

	s.leaveLocked(ctx)
	s.state = stateAuthenticated
	return nil
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return
	}
	if s.state == stateJoined {
		s.leaveLocked(ctx)
	}
	s.state = stateClosed
	s.be.Metrics.RemoveSyncSession()
}

// leaveLocked deregisters from the room and notifies the peers. The caller
// holds s.mu.
func (s *Session) leaveLocked(ctx context.Context) {
	docID, member, pumpDone := s.docID, s.member, s.pumpDone
	s.docID, s.entry, s.member, s.pumpDone = "", nil, nil, nil

	s.be.Rooms.Publish(ctx, docID, &events.DocEvent{
		Type:  events.PeerLeftEvent,
		DocID: docID,
		Actor: s.userID,
	}, member.ID())
	s.be.Rooms.Leave(ctx, docID, member)
	<-pumpDone
}

// pump forwards room events of one join to the client until the member is
// closed.
func (s *Session) pump(ctx context.Context, member *rooms.Member, done chan struct{}) {
	defer close(done)

	for event := range member.Events() {
		if err := s.send(event); err != nil {
			logging.From(ctx).Warnf("send to session %s: %v", s.id, err)
			return
		}
	}
}

// deny reports a rejected request to the sender only. It is never
// broadcast, and it does not terminate the session.
func (s *Session) deny(docID types.ID, cause error) error {
	return s.send(&events.DocEvent{
		Type:   events.DeniedEvent,
		DocID:  docID,
		Reason: cause.Error(),
	})
}
