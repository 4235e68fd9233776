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

// StateInfo is the latest persisted encoded snapshot of a document's
// synchronized state. The in-memory state object is the source of truth; this
// record only trails it by at most one in-flight write-back.
type StateInfo struct {
	DocID     types.ID  `bson:"_id" json:"doc_id"`
	Snapshot  []byte    `bson:"snapshot" json:"snapshot"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DeepCopy returns a deep copy of this StateInfo.
func (i *StateInfo) DeepCopy() *StateInfo {
	if i == nil {
		return nil
	}

	copied := *i
	copied.Snapshot = make([]byte, len(i.Snapshot))
	copy(copied.Snapshot, i.Snapshot)
	return &copied
}
