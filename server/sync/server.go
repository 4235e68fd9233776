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

// Package sync implements the live synchronization endpoint: a websocket
// per session carrying join, delta and presence frames.
package sync

import (
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/margolab/margo/api/types/events"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/users"
)

// Server upgrades authenticated HTTP requests to websocket sessions.
type Server struct {
	conf     *Config
	be       *backend.Backend
	tokens   *users.TokenManager
	upgrader websocket.Upgrader
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, be *backend.Backend, tokens *users.TokenManager) *Server {
	return &Server{
		conf:   conf,
		be:     be,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser clients carry their credential in the token
			// query parameter, not in a cookie, so any origin is fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the request, upgrades it and runs the session's
// read loop until the client goes away or stays idle too long.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.tokens.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.DefaultLogger().Warnf("upgrade: %v", err)
		return
	}

	ctx := r.Context()
	idleTimeout := s.conf.ParseIdleTimeout()

	// Concurrent writers share the connection: the read loop answers
	// frames while the room pump forwards broadcasts.
	var writeMu gosync.Mutex
	send := func(event *events.DocEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(event)
	}

	session := NewSession(s.be, userID, send)
	defer func() {
		session.Close(ctx)
		if err := conn.Close(); err != nil {
			logging.From(ctx).Warnf("close connection: %v", err)
		}
	}()

	conn.SetReadLimit(s.conf.MaxMessageSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				logging.From(ctx).Warnf("session %s: %v", session.ID(), err)
			}
			return
		}

		if err := session.HandleEvent(ctx, raw); err != nil {
			if sendErr := send(&events.DocEvent{
				Type:   events.DeniedEvent,
				Reason: err.Error(),
			}); sendErr != nil {
				return
			}
		}
	}
}

// bearerToken extracts the credential from the Authorization header or,
// for browser websocket clients that cannot set headers, from the token
// query parameter.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}
