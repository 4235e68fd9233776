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

// Package versions provides the version history of documents: archiving
// the current state as an immutable snapshot and restoring earlier ones.
package versions

import (
	"context"
	"fmt"
	"io"
	gotime "time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/logging"
)

func lockKey(docID types.ID) string {
	return "versions/" + docID.String()
}

// archiveCurrent snapshots the document's current (version, blob reference)
// pair as an immutable history entry. The snapshot always records the state
// being replaced, never the new one.
func archiveCurrent(
	ctx context.Context,
	be *backend.Backend,
	docInfo *database.DocInfo,
	author types.ID,
	note string,
) (*database.VersionInfo, error) {
	return be.DB.CreateVersionInfo(ctx, &database.VersionInfo{
		DocID:   docInfo.ID,
		Version: docInfo.Version,
		BlobRef: docInfo.BlobRef,
		Size:    docInfo.Size,
		Note:    note,
		Author:  author,
	})
}

// CreateVersion uploads a new content blob, archives the replaced state and
// advances the document's version counter. Requires CREATE_VERSION.
func CreateVersion(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
	payload io.Reader,
	size int64,
	contentType string,
	note string,
) (*types.DocumentSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionCreateVersion); err != nil {
		return nil, err
	}

	be.Lockers.Lock(lockKey(docID))
	defer func() {
		if err := be.Lockers.Unlock(lockKey(docID)); err != nil {
			logging.From(ctx).Warn(err)
		}
	}()

	// Re-read under the lock; another writer may have advanced the version.
	docInfo, err = be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	newRef := "blobs/" + types.NewID().String()
	if err := be.Blob.Put(ctx, newRef, payload, size, contentType); err != nil {
		return nil, err
	}

	if _, err := archiveCurrent(ctx, be, docInfo, actor, note); err != nil {
		return nil, err
	}

	advanced, err := be.DB.AdvanceDocVersion(ctx, docID, docInfo.Version, newRef, size)
	if err != nil {
		return nil, err
	}

	if err := be.MsgBroker.Produce(ctx, broker.DocEventMessage{
		EventType: "version-created",
		DocID:     docID,
		Actor:     actor,
		Title:     advanced.Title,
		Version:   advanced.Version,
		Timestamp: gotime.Now(),
	}); err != nil {
		return nil, err
	}

	return advanced.Summary(), nil
}

// RestoreVersion points the document back at the blob of the given version.
// The current state is archived first with a synthesized note, and the
// version counter advances: a restore is itself a new version, never a
// silent rewind. Owner-only.
func RestoreVersion(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
	targetVersion int,
) (*types.DocumentSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionRestoreVersion); err != nil {
		return nil, err
	}

	be.Lockers.Lock(lockKey(docID))
	defer func() {
		if err := be.Lockers.Unlock(lockKey(docID)); err != nil {
			logging.From(ctx).Warn(err)
		}
	}()

	docInfo, err = be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	target, err := be.DB.FindVersionInfo(ctx, docID, targetVersion)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("replaced by restore of version %d", targetVersion)
	if _, err := archiveCurrent(ctx, be, docInfo, actor, note); err != nil {
		return nil, err
	}

	advanced, err := be.DB.AdvanceDocVersion(ctx, docID, docInfo.Version, target.BlobRef, target.Size)
	if err != nil {
		return nil, err
	}

	if err := be.MsgBroker.Produce(ctx, broker.DocEventMessage{
		EventType: "version-restored",
		DocID:     docID,
		Actor:     actor,
		Title:     advanced.Title,
		Version:   advanced.Version,
		Timestamp: gotime.Now(),
	}); err != nil {
		return nil, err
	}

	return advanced.Summary(), nil
}

// ListVersions returns the archived snapshots of the document plus a
// synthesized entry for the live version, newest first. Requires VIEW.
func ListVersions(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
) ([]*types.VersionSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionView); err != nil {
		return nil, err
	}

	versionInfos, err := be.DB.FindVersionInfosByDoc(ctx, docID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.VersionSummary, 0, len(versionInfos)+1)
	summaries = append(summaries, &types.VersionSummary{
		Version:   docInfo.Version,
		Current:   true,
		BlobRef:   docInfo.BlobRef,
		Size:      docInfo.Size,
		CreatedAt: docInfo.UpdatedAt,
	})
	for _, info := range versionInfos {
		summaries = append(summaries, info.Summary())
	}
	return summaries, nil
}
