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

// VersionInfo is an immutable record of what a document version used to be.
// It is written when the document advances past that version and never
// mutated afterwards; it is removed only together with the parent document.
type VersionInfo struct {
	ID      types.ID `bson:"_id" json:"id"`
	DocID   types.ID `bson:"doc_id" json:"doc_id"`
	Version int      `bson:"version" json:"version"`
	BlobRef string   `bson:"blob_ref" json:"blob_ref"`
	Size    int64    `bson:"size" json:"size"`
	Note    string   `bson:"note" json:"note"`

	// Author is the user whose action archived this version.
	Author types.ID `bson:"author" json:"author"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// DeepCopy returns a deep copy of this VersionInfo.
func (i *VersionInfo) DeepCopy() *VersionInfo {
	if i == nil {
		return nil
	}

	copied := *i
	return &copied
}

// Summary converts this VersionInfo into a history entry.
func (i *VersionInfo) Summary() *types.VersionSummary {
	return &types.VersionSummary{
		Version:   i.Version,
		BlobRef:   i.BlobRef,
		Size:      i.Size,
		Note:      i.Note,
		Author:    i.Author,
		CreatedAt: i.CreatedAt,
	}
}
