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

package documents_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/api/types/events"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/documents"
	"github.com/margolab/margo/test/helper"
)

func TestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")

		payload := []byte("%PDF-1.7 upload")
		summary, err := documents.Create(
			ctx, be, owner.ID, "thesis.pdf",
			bytes.NewReader(payload), int64(len(payload)), "application/pdf",
		)
		assert.NoError(t, err)
		assert.Equal(t, 1, summary.Version)

		fetched, err := documents.Get(ctx, be, summary.ID, owner.ID)
		assert.NoError(t, err)
		assert.Equal(t, "thesis.pdf", fetched.Title)
		assert.NotEmpty(t, fetched.DownloadURL)
	})

	t.Run("get requires view test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		stranger := helper.CreateUser(t, be, "stranger")
		docInfo := helper.CreateDoc(t, be, owner, "secret.pdf")

		_, err := documents.Get(ctx, be, docInfo.ID, stranger.ID)
		assert.ErrorIs(t, err, access.ErrPermissionDenied)

		_, err = be.DB.UpsertGrantInfo(ctx, docInfo.ID, stranger.ID, types.RoleViewer)
		assert.NoError(t, err)
		_, err = documents.Get(ctx, be, docInfo.ID, stranger.ID)
		assert.NoError(t, err)
	})

	t.Run("rename is owner only test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		admin := helper.CreateUser(t, be, "doc-admin")
		docInfo := helper.CreateDoc(t, be, owner, "draft.pdf")

		_, err := be.DB.UpsertGrantInfo(ctx, docInfo.ID, admin.ID, types.RoleAdmin)
		assert.NoError(t, err)

		_, err = documents.Rename(ctx, be, docInfo.ID, admin.ID, "hijacked.pdf")
		assert.ErrorIs(t, err, access.ErrPermissionDenied)

		renamed, err := documents.Rename(ctx, be, docInfo.ID, owner.ID, "final.pdf")
		assert.NoError(t, err)
		assert.Equal(t, "final.pdf", renamed.Title)
	})

	t.Run("list returns owned documents newest first test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		other := helper.CreateUser(t, be, "other")

		helper.CreateDoc(t, be, owner, "one.pdf")
		helper.CreateDoc(t, be, owner, "two.pdf")
		helper.CreateDoc(t, be, other, "theirs.pdf")

		summaries, err := documents.List(ctx, be, owner.ID)
		assert.NoError(t, err)
		assert.Len(t, summaries, 2)
	})

	t.Run("delete cascades and disconnects members test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		docInfo := helper.CreateDoc(t, be, owner, "doomed.pdf")

		member, _, err := be.Rooms.Join(ctx, docInfo.ID, owner.ID, 0)
		assert.NoError(t, err)

		_, err = be.States.Acquire(ctx, docInfo.ID)
		assert.NoError(t, err)

		assert.NoError(t, documents.Delete(ctx, be, docInfo.ID, owner.ID))

		event := <-member.Events()
		assert.Equal(t, events.DocClosedEvent, event.Type)

		_, err = be.DB.FindDocInfoByID(ctx, docInfo.ID)
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
		assert.Equal(t, 0, be.States.Len())
	})

	t.Run("delete is owner only test", func(t *testing.T) {
		be := helper.TestBackend(t)
		owner := helper.CreateUser(t, be, "owner")
		editor := helper.CreateUser(t, be, "editor")
		docInfo := helper.CreateDoc(t, be, owner, "kept.pdf")

		_, err := be.DB.UpsertGrantInfo(ctx, docInfo.ID, editor.ID, types.RoleEditor)
		assert.NoError(t, err)

		err = documents.Delete(ctx, be, docInfo.ID, editor.ID)
		assert.ErrorIs(t, err, access.ErrPermissionDenied)
	})
}
