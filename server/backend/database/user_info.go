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

// UserInfo is a record of a registered user.
type UserInfo struct {
	ID             types.ID  `bson:"_id" json:"id"`
	Username       string    `bson:"username" json:"username"`
	HashedPassword string    `bson:"hashed_password" json:"hashed_password"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// DeepCopy returns a deep copy of this UserInfo.
func (i *UserInfo) DeepCopy() *UserInfo {
	if i == nil {
		return nil
	}

	copied := *i
	return &copied
}

// Summary converts this UserInfo into a caller-facing summary. The hashed
// password is never exposed.
func (i *UserInfo) Summary() *types.UserSummary {
	return &types.UserSummary{
		ID:        i.ID,
		Username:  i.Username,
		CreatedAt: i.CreatedAt,
	}
}
