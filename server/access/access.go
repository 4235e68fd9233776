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

// Package access decides whether a user may perform an action on a document.
// The decision is a pure function of ownership and the current permission
// grant, read fresh on every call.
package access

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/database"
)

// Action is a named operation gated by the evaluator.
type Action string

// The actions a user can request on a document.
const (
	ActionView              Action = "VIEW"
	ActionComment           Action = "COMMENT"
	ActionEditContent       Action = "EDIT_CONTENT"
	ActionManagePermissions Action = "MANAGE_PERMISSIONS"
	ActionRename            Action = "RENAME"
	ActionDelete            Action = "DELETE"
	ActionCreateVersion     Action = "CREATE_VERSION"
	ActionRestoreVersion    Action = "RESTORE_VERSION"
)

// ErrPermissionDenied is returned when the evaluator denies the action.
var ErrPermissionDenied = errors.PermissionDenied("permission denied").WithCode("ErrPermissionDenied")

// ownerOnly are the actions no grant role can reach. An ADMIN grant manages
// other users' access but cannot destroy or roll back the document.
var ownerOnly = map[Action]bool{
	ActionRename:         true,
	ActionDelete:         true,
	ActionRestoreVersion: true,
}

// roleActions is the allow set per grant role.
var roleActions = map[types.Role]map[Action]bool{
	types.RoleViewer: {
		ActionView: true,
	},
	types.RoleCommenter: {
		ActionView:    true,
		ActionComment: true,
	},
	types.RoleEditor: {
		ActionView:          true,
		ActionComment:       true,
		ActionEditContent:   true,
		ActionCreateVersion: true,
	},
	types.RoleAdmin: {
		ActionView:              true,
		ActionComment:           true,
		ActionEditContent:       true,
		ActionCreateVersion:     true,
		ActionManagePermissions: true,
	},
}

// CanPerform checks whether the user may perform the action on the document.
// The document owner may perform everything; other users are checked against
// their grant role. First match wins.
func CanPerform(
	ctx context.Context,
	db database.Database,
	docInfo *database.DocInfo,
	userID types.ID,
	action Action,
) error {
	if docInfo.Owner == userID {
		return nil
	}

	if ownerOnly[action] {
		return fmt.Errorf("%s is owner-only: %w", action, ErrPermissionDenied)
	}

	grantInfo, err := db.FindGrantInfo(ctx, docInfo.ID, userID)
	if err != nil {
		if errors.IsStatus(err, errors.ErrCodeNotFound) {
			return fmt.Errorf("no grant for %s: %w", action, ErrPermissionDenied)
		}
		return err
	}

	if !roleActions[grantInfo.Role][action] {
		return fmt.Errorf("%s may not %s: %w", grantInfo.Role, action, ErrPermissionDenied)
	}

	return nil
}

// Grant creates or overwrites the subject's grant on the document. Requires
// MANAGE_PERMISSIONS. Granting a role to the owner is rejected since the
// owner already holds every permission.
func Grant(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
	subject types.ID,
	role types.Role,
) (*types.GrantSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := CanPerform(ctx, be.DB, docInfo, actor, ActionManagePermissions); err != nil {
		return nil, err
	}

	if subject == docInfo.Owner {
		return nil, errors.InvalidArgument("owner cannot be granted a role").WithCode("ErrGrantOwner")
	}

	if _, err := be.DB.FindUserInfoByID(ctx, subject); err != nil {
		return nil, err
	}

	grantInfo, err := be.DB.UpsertGrantInfo(ctx, docID, subject, role)
	if err != nil {
		return nil, err
	}

	if err := be.MsgBroker.Produce(ctx, broker.GrantEventMessage{
		EventType: "grant-upserted",
		DocID:     docID,
		Actor:     actor,
		Subject:   subject,
		Role:      role,
		Timestamp: gotime.Now(),
	}); err != nil {
		return nil, err
	}

	return grantInfo.Summary(), nil
}

// Revoke removes the subject's grant on the document. The owner and users
// with MANAGE_PERMISSIONS can revoke anyone; every user can revoke their own
// grant.
func Revoke(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
	subject types.ID,
) error {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return err
	}

	if actor != subject {
		if err := CanPerform(ctx, be.DB, docInfo, actor, ActionManagePermissions); err != nil {
			return err
		}
	}

	if err := be.DB.DeleteGrantInfo(ctx, docID, subject); err != nil {
		return err
	}

	return be.MsgBroker.Produce(ctx, broker.GrantEventMessage{
		EventType: "grant-revoked",
		DocID:     docID,
		Actor:     actor,
		Subject:   subject,
		Timestamp: gotime.Now(),
	})
}

// ListGrants returns all grants on the document. Requires
// MANAGE_PERMISSIONS: the grant list reveals who may access the document.
func ListGrants(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
) ([]*types.GrantSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := CanPerform(ctx, be.DB, docInfo, actor, ActionManagePermissions); err != nil {
		return nil, err
	}

	grantInfos, err := be.DB.FindGrantInfosByDoc(ctx, docID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.GrantSummary, 0, len(grantInfos))
	for _, info := range grantInfos {
		summaries = append(summaries, info.Summary())
	}
	return summaries, nil
}
