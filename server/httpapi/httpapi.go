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

// Package httpapi exposes the REST surface of the server: accounts,
// documents, grants and version history. The live synchronization endpoint
// is mounted alongside it.
package httpapi

import (
	"net/http"

	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/sync"
	"github.com/margolab/margo/server/users"
)

// Handler serves the REST API.
type Handler struct {
	be     *backend.Backend
	tokens *users.TokenManager
}

// NewHandler creates the API handler and mounts every route, including the
// websocket endpoint of the given sync server.
func NewHandler(be *backend.Backend, tokens *users.TokenManager, syncServer *sync.Server) http.Handler {
	h := &Handler{be: be, tokens: tokens}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/signup", h.signUp)
	mux.HandleFunc("POST /api/users/login", h.logIn)
	mux.Handle("GET /api/users/me", h.withAuth(h.me))

	mux.Handle("POST /api/documents", h.withAuth(h.createDocument))
	mux.Handle("GET /api/documents", h.withAuth(h.listDocuments))
	mux.Handle("GET /api/documents/{id}", h.withAuth(h.getDocument))
	mux.Handle("PATCH /api/documents/{id}", h.withAuth(h.renameDocument))
	mux.Handle("DELETE /api/documents/{id}", h.withAuth(h.deleteDocument))

	mux.Handle("GET /api/documents/{id}/grants", h.withAuth(h.listGrants))
	mux.Handle("PUT /api/documents/{id}/grants", h.withAuth(h.upsertGrant))
	mux.Handle("DELETE /api/documents/{id}/grants/{userID}", h.withAuth(h.revokeGrant))

	mux.Handle("GET /api/documents/{id}/versions", h.withAuth(h.listVersions))
	mux.Handle("POST /api/documents/{id}/versions", h.withAuth(h.createVersion))
	mux.Handle("POST /api/documents/{id}/versions/{version}/restore", h.withAuth(h.restoreVersion))

	mux.Handle("GET /sync", syncServer)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}
