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

package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/test/helper"
)

func TestCanPerform(t *testing.T) {
	ctx := context.Background()
	be := helper.TestBackend(t)

	owner := helper.CreateUser(t, be, "owner")
	docInfo := helper.CreateDoc(t, be, owner, "contract.pdf")

	t.Run("owner may do everything test", func(t *testing.T) {
		for _, action := range []access.Action{
			access.ActionView, access.ActionComment, access.ActionEditContent,
			access.ActionManagePermissions, access.ActionRename, access.ActionDelete,
			access.ActionCreateVersion, access.ActionRestoreVersion,
		} {
			assert.NoError(t, access.CanPerform(ctx, be.DB, docInfo, owner.ID, action))
		}
	})

	t.Run("no grant denies every action test", func(t *testing.T) {
		stranger := helper.CreateUser(t, be, "stranger")
		for _, action := range []access.Action{
			access.ActionView, access.ActionComment, access.ActionEditContent,
		} {
			err := access.CanPerform(ctx, be.DB, docInfo, stranger.ID, action)
			assert.ErrorIs(t, err, access.ErrPermissionDenied)
		}
	})

	t.Run("role allow sets test", func(t *testing.T) {
		allowed := map[types.Role][]access.Action{
			types.RoleViewer:    {access.ActionView},
			types.RoleCommenter: {access.ActionView, access.ActionComment},
			types.RoleEditor: {
				access.ActionView, access.ActionComment,
				access.ActionEditContent, access.ActionCreateVersion,
			},
			types.RoleAdmin: {
				access.ActionView, access.ActionComment, access.ActionEditContent,
				access.ActionCreateVersion, access.ActionManagePermissions,
			},
		}
		denied := map[types.Role][]access.Action{
			types.RoleViewer:    {access.ActionComment, access.ActionEditContent, access.ActionManagePermissions},
			types.RoleCommenter: {access.ActionEditContent, access.ActionCreateVersion},
			types.RoleEditor:    {access.ActionManagePermissions},
			types.RoleAdmin:     {access.ActionRename, access.ActionDelete, access.ActionRestoreVersion},
		}

		for role, actions := range allowed {
			user := helper.CreateUser(t, be, "user-"+string(role))
			_, err := be.DB.UpsertGrantInfo(ctx, docInfo.ID, user.ID, role)
			assert.NoError(t, err)

			for _, action := range actions {
				assert.NoError(t, access.CanPerform(ctx, be.DB, docInfo, user.ID, action), "%s %s", role, action)
			}
			for _, action := range denied[role] {
				err := access.CanPerform(ctx, be.DB, docInfo, user.ID, action)
				assert.ErrorIs(t, err, access.ErrPermissionDenied, "%s %s", role, action)
			}
		}
	})

	t.Run("grant change takes effect immediately test", func(t *testing.T) {
		user := helper.CreateUser(t, be, "promoted")
		_, err := be.DB.UpsertGrantInfo(ctx, docInfo.ID, user.ID, types.RoleCommenter)
		assert.NoError(t, err)
		assert.ErrorIs(t,
			access.CanPerform(ctx, be.DB, docInfo, user.ID, access.ActionEditContent),
			access.ErrPermissionDenied,
		)

		_, err = be.DB.UpsertGrantInfo(ctx, docInfo.ID, user.ID, types.RoleEditor)
		assert.NoError(t, err)
		assert.NoError(t, access.CanPerform(ctx, be.DB, docInfo, user.ID, access.ActionEditContent))
	})
}

func TestGrants(t *testing.T) {
	ctx := context.Background()
	be := helper.TestBackend(t)

	owner := helper.CreateUser(t, be, "owner")
	docInfo := helper.CreateDoc(t, be, owner, "draft.pdf")

	t.Run("owner grants and lists test", func(t *testing.T) {
		subject := helper.CreateUser(t, be, "subject")

		summary, err := access.Grant(ctx, be, docInfo.ID, owner.ID, subject.ID, types.RoleCommenter)
		assert.NoError(t, err)
		assert.Equal(t, types.RoleCommenter, summary.Role)

		grants, err := access.ListGrants(ctx, be, docInfo.ID, owner.ID)
		assert.NoError(t, err)
		assert.Len(t, grants, 1)

		// the grantee may not list grants
		_, err = access.ListGrants(ctx, be, docInfo.ID, subject.ID)
		assert.ErrorIs(t, err, access.ErrPermissionDenied)
	})

	t.Run("admin grantee manages grants but commenter does not test", func(t *testing.T) {
		admin := helper.CreateUser(t, be, "doc-admin")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, admin.ID, types.RoleAdmin)
		assert.NoError(t, err)

		other := helper.CreateUser(t, be, "other")
		_, err = access.Grant(ctx, be, docInfo.ID, admin.ID, other.ID, types.RoleViewer)
		assert.NoError(t, err)

		_, err = access.Grant(ctx, be, docInfo.ID, other.ID, admin.ID, types.RoleViewer)
		assert.ErrorIs(t, err, access.ErrPermissionDenied)
	})

	t.Run("granting the owner is rejected test", func(t *testing.T) {
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, owner.ID, types.RoleEditor)
		assert.Error(t, err)
	})

	t.Run("self revocation test", func(t *testing.T) {
		subject := helper.CreateUser(t, be, "self-revoker")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, subject.ID, types.RoleEditor)
		assert.NoError(t, err)

		assert.NoError(t, access.Revoke(ctx, be, docInfo.ID, subject.ID, subject.ID))
		assert.ErrorIs(t,
			access.CanPerform(ctx, be.DB, docInfo, subject.ID, access.ActionView),
			access.ErrPermissionDenied,
		)
	})

	t.Run("revoking someone else requires manage permissions test", func(t *testing.T) {
		victim := helper.CreateUser(t, be, "victim")
		meddler := helper.CreateUser(t, be, "meddler")
		_, err := access.Grant(ctx, be, docInfo.ID, owner.ID, victim.ID, types.RoleViewer)
		assert.NoError(t, err)

		err = access.Revoke(ctx, be, docInfo.ID, meddler.ID, victim.ID)
		assert.ErrorIs(t, err, access.ErrPermissionDenied)

		assert.NoError(t, access.Revoke(ctx, be, docInfo.ID, owner.ID, victim.ID))
	})
}
