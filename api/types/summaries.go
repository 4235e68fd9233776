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

package types

import "time"

// DocumentSummary is the caller-facing view of a document.
type DocumentSummary struct {
	// ID is the unique identifier of the document.
	ID ID `json:"id"`

	// Title is the display title of the document.
	Title string `json:"title"`

	// Owner is the user holding exclusive administrative authority.
	Owner ID `json:"owner"`

	// Version is the current version number, monotonic and starting at 1.
	Version int `json:"version"`

	// Size is the size of the current content blob in bytes.
	Size int64 `json:"size"`

	// DownloadURL is a short-lived signed URL for the current content blob.
	// It is only set on single-document fetches.
	DownloadURL string `json:"download_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionSummary is one entry of a document's version history.
type VersionSummary struct {
	// Version is the version number this entry describes.
	Version int `json:"version"`

	// Current marks the synthesized entry for the live version. It has no
	// archived snapshot record behind it.
	Current bool `json:"current,omitempty"`

	// BlobRef is the content blob reference of this version.
	BlobRef string `json:"blob_ref"`

	// Size is the size of the content blob in bytes.
	Size int64 `json:"size"`

	// Note is the optional note recorded when the version was archived.
	Note string `json:"note,omitempty"`

	// Author is the user whose action archived this version.
	Author ID `json:"author,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GrantSummary is the caller-facing view of a permission grant.
type GrantSummary struct {
	DocumentID ID        `json:"document_id"`
	UserID     ID        `json:"user_id"`
	Role       Role      `json:"role"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserSummary is the caller-facing view of a user.
type UserSummary struct {
	ID        ID        `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
