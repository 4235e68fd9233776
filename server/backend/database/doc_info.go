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

package database

import (
	"time"

	"github.com/margolab/margo/api/types"
)

// InitialVersion is the version number a freshly created document starts at.
const InitialVersion = 1

// DocInfo is a record of a document the system holds.
type DocInfo struct {
	// ID is the unique identifier of the document.
	ID types.ID `bson:"_id" json:"id"`

	// Title is the display title of the document.
	Title string `bson:"title" json:"title"`

	// Owner is the user with exclusive administrative authority over the
	// document.
	Owner types.ID `bson:"owner" json:"owner"`

	// BlobRef is the reference of the current content blob.
	BlobRef string `bson:"blob_ref" json:"blob_ref"`

	// Version is the current version number. Monotonic, starts at 1, never
	// reused.
	Version int `bson:"version" json:"version"`

	// Size is the size of the current content blob in bytes.
	Size int64 `bson:"size" json:"size"`

	// CreatedAt is the time the document was created.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	// UpdatedAt is the time the document metadata was last changed.
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	// AccessedAt is the time the document was last opened by a session.
	AccessedAt time.Time `bson:"accessed_at" json:"accessed_at"`
}

// DeepCopy returns a deep copy of this DocInfo.
func (i *DocInfo) DeepCopy() *DocInfo {
	if i == nil {
		return nil
	}

	copied := *i
	return &copied
}

// Summary converts this DocInfo into a caller-facing summary.
func (i *DocInfo) Summary() *types.DocumentSummary {
	return &types.DocumentSummary{
		ID:        i.ID,
		Title:     i.Title,
		Owner:     i.Owner,
		Version:   i.Version,
		Size:      i.Size,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}
