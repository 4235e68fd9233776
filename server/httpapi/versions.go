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
	"strconv"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/versions"
)

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	summaries, err := versions.ListVersions(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) createVersion(w http.ResponseWriter, r *http.Request) {
	file, header, err := uploadedFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := versions.CreateVersion(
		r.Context(),
		h.be,
		types.ID(r.PathValue("id")),
		actorFrom(r.Context()),
		file,
		header.Size,
		contentTypeOf(header),
		r.FormValue("note"),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) restoreVersion(w http.ResponseWriter, r *http.Request) {
	targetVersion, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, r, errors.InvalidArgument("invalid version number").WithCode("ErrInvalidVersion"))
		return
	}

	summary, err := versions.RestoreVersion(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()), targetVersion,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
