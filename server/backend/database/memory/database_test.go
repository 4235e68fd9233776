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

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/backend/database/memory"
)

func TestDB(t *testing.T) {
	ctx := context.Background()

	t.Run("user create and find test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		info, err := db.CreateUserInfo(ctx, "alice", "hashed")
		assert.NoError(t, err)
		assert.Equal(t, "alice", info.Username)

		_, err = db.CreateUserInfo(ctx, "alice", "other")
		assert.ErrorIs(t, err, database.ErrUserAlreadyExists)

		found, err := db.FindUserInfoByUsername(ctx, "alice")
		assert.NoError(t, err)
		assert.Equal(t, info.ID, found.ID)

		_, err = db.FindUserInfoByID(ctx, types.NewID())
		assert.ErrorIs(t, err, database.ErrUserNotFound)
	})

	t.Run("document lifecycle test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		owner, err := db.CreateUserInfo(ctx, "owner", "hashed")
		assert.NoError(t, err)

		docInfo, err := db.CreateDocInfo(ctx, owner.ID, "report.pdf", "blobs/r1", 1024)
		assert.NoError(t, err)
		assert.Equal(t, database.InitialVersion, docInfo.Version)

		renamed, err := db.UpdateDocTitle(ctx, docInfo.ID, "final-report.pdf")
		assert.NoError(t, err)
		assert.Equal(t, "final-report.pdf", renamed.Title)

		advanced, err := db.AdvanceDocVersion(ctx, docInfo.ID, 1, "blobs/r2", 2048)
		assert.NoError(t, err)
		assert.Equal(t, 2, advanced.Version)
		assert.Equal(t, "blobs/r2", advanced.BlobRef)

		// A stale expected version must not advance the counter.
		_, err = db.AdvanceDocVersion(ctx, docInfo.ID, 1, "blobs/r3", 1)
		assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

		docs, err := db.FindDocInfosByOwner(ctx, owner.ID)
		assert.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("grant upsert overwrites test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		docID := types.NewID()
		userID := types.NewID()

		first, err := db.UpsertGrantInfo(ctx, docID, userID, types.RoleCommenter)
		assert.NoError(t, err)

		second, err := db.UpsertGrantInfo(ctx, docID, userID, types.RoleEditor)
		assert.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		grants, err := db.FindGrantInfosByDoc(ctx, docID)
		assert.NoError(t, err)
		assert.Len(t, grants, 1)
		assert.Equal(t, types.RoleEditor, grants[0].Role)

		assert.NoError(t, db.DeleteGrantInfo(ctx, docID, userID))
		_, err = db.FindGrantInfo(ctx, docID, userID)
		assert.ErrorIs(t, err, database.ErrGrantNotFound)
	})

	t.Run("version history order test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		docID := types.NewID()
		for v := 1; v <= 3; v++ {
			_, err := db.CreateVersionInfo(ctx, &database.VersionInfo{
				DocID:   docID,
				Version: v,
				BlobRef: "blobs/v",
			})
			assert.NoError(t, err)
		}

		infos, err := db.FindVersionInfosByDoc(ctx, docID)
		assert.NoError(t, err)
		assert.Len(t, infos, 3)
		assert.Equal(t, 3, infos[0].Version)
		assert.Equal(t, 1, infos[2].Version)

		_, err = db.FindVersionInfo(ctx, docID, 9)
		assert.ErrorIs(t, err, database.ErrVersionNotFound)
	})

	t.Run("state put and find test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		docID := types.NewID()
		_, err = db.FindStateInfo(ctx, docID)
		assert.ErrorIs(t, err, database.ErrStateNotFound)

		assert.NoError(t, db.PutStateInfo(ctx, docID, []byte("snapshot-1")))
		assert.NoError(t, db.PutStateInfo(ctx, docID, []byte("snapshot-2")))

		info, err := db.FindStateInfo(ctx, docID)
		assert.NoError(t, err)
		assert.Equal(t, []byte("snapshot-2"), info.Snapshot)
	})

	t.Run("document delete cascade test", func(t *testing.T) {
		db, err := memory.New()
		assert.NoError(t, err)

		owner, err := db.CreateUserInfo(ctx, "owner", "hashed")
		assert.NoError(t, err)
		docInfo, err := db.CreateDocInfo(ctx, owner.ID, "doc", "blobs/d1", 10)
		assert.NoError(t, err)

		_, err = db.UpsertGrantInfo(ctx, docInfo.ID, types.NewID(), types.RoleViewer)
		assert.NoError(t, err)
		_, err = db.CreateVersionInfo(ctx, &database.VersionInfo{DocID: docInfo.ID, Version: 1})
		assert.NoError(t, err)
		assert.NoError(t, db.PutStateInfo(ctx, docInfo.ID, []byte("s")))

		assert.NoError(t, db.DeleteDocInfo(ctx, docInfo.ID))

		_, err = db.FindDocInfoByID(ctx, docInfo.ID)
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
		grants, err := db.FindGrantInfosByDoc(ctx, docInfo.ID)
		assert.NoError(t, err)
		assert.Empty(t, grants)
		versions, err := db.FindVersionInfosByDoc(ctx, docInfo.ID)
		assert.NoError(t, err)
		assert.Empty(t, versions)
		_, err = db.FindStateInfo(ctx, docInfo.ID)
		assert.ErrorIs(t, err, database.ErrStateNotFound)
	})
}
