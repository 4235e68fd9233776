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
	"mime/multipart"
	"net/http"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/documents"
)

// maxUploadSize bounds the in-memory part of a multipart upload; larger
// files spill to disk.
const maxUploadSize = 32 << 20

// ErrMissingFile is returned when an upload request has no file part.
var ErrMissingFile = errors.InvalidArgument("missing file part").WithCode("ErrMissingFile")

// uploadedFile pulls the file part out of a multipart upload.
func uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, nil, errors.InvalidArgument("invalid multipart form").WithCode("ErrInvalidUpload")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, ErrMissingFile
	}
	return file, header, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	if contentType := header.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := uploadedFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	summary, err := documents.Create(
		r.Context(),
		h.be,
		actorFrom(r.Context()),
		title,
		file,
		header.Size,
		contentTypeOf(header),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	summaries, err := documents.List(r.Context(), h.be, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	summary, err := documents.Get(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) renameDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := documents.Rename(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()), body.Title,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := documents.Delete(
		r.Context(), h.be, types.ID(r.PathValue("id")), actorFrom(r.Context()),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
