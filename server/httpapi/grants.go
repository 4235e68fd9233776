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

package httpapi

import (
	"net/http"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/access"
)

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	summaries, err := access.ListGrants(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) upsertGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID types.ID   `json:"user_id"`
		Role   types.Role `json:"role"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := access.Grant(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
		body.UserID, body.Role,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	err := access.Revoke(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
		types.ID(r.PathValue("userID")),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
