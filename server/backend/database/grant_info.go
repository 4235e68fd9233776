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

// GrantInfo is a record relating one user to one document with exactly one
// role. There is at most one grant per (document, user) pair; re-granting
// overwrites the role.
type GrantInfo struct {
	ID        types.ID   `bson:"_id" json:"id"`
	DocID     types.ID   `bson:"doc_id" json:"doc_id"`
	UserID    types.ID   `bson:"user_id" json:"user_id"`
	Role      types.Role `bson:"role" json:"role"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// DeepCopy returns a deep copy of this GrantInfo.
func (i *GrantInfo) DeepCopy() *GrantInfo {
	if i == nil {
		return nil
	}

	copied := *i
	return &copied
}

// Summary converts this GrantInfo into a caller-facing summary.
func (i *GrantInfo) Summary() *types.GrantSummary {
	return &types.GrantSummary{
		DocumentID: i.DocID,
		UserID:     i.UserID,
		Role:       i.Role,
		UpdatedAt:  i.UpdatedAt,
	}
}
