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

// Package documents provides the document lifecycle: upload, lookup,
// rename and delete.
package documents

import (
	"context"
	"io"
	gotime "time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/internal/validation"
	"github.com/margolab/margo/server/access"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/blob"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/logging"
)

type titleField struct {
	Title string `validate:"required,min=1,max=255"`
}

func lockKey(docID types.ID) string {
	return "documents/" + docID.String()
}

// Create uploads the payload as a new document owned by the given user. The
// document starts at version 1.
func Create(
	ctx context.Context,
	be *backend.Backend,
	owner types.ID,
	title string,
	payload io.Reader,
	size int64,
	contentType string,
) (*types.DocumentSummary, error) {
	if err := validation.ValidateStruct(&titleField{Title: title}); err != nil {
		return nil, err
	}

	ref := "blobs/" + types.NewID().String()
	if err := be.Blob.Put(ctx, ref, payload, size, contentType); err != nil {
		return nil, err
	}

	docInfo, err := be.DB.CreateDocInfo(ctx, owner, title, ref, size)
	if err != nil {
		if dErr := be.Blob.Delete(ctx, ref); dErr != nil {
			logging.From(ctx).Warnf("delete orphaned blob %s: %v", ref, dErr)
		}
		return nil, err
	}

	if err := be.MsgBroker.Produce(ctx, broker.DocEventMessage{
		EventType: "document-created",
		DocID:     docInfo.ID,
		Actor:     owner,
		Title:     title,
		Version:   docInfo.Version,
		Timestamp: gotime.Now(),
	}); err != nil {
		return nil, err
	}

	return docInfo.Summary(), nil
}

// Get returns the document together with a time-limited download URL of its
// current blob. Requires VIEW.
func Get(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
) (*types.DocumentSummary, error) {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionView); err != nil {
		return nil, err
	}

	summary := docInfo.Summary()
	url, err := be.Blob.SignedGetURL(ctx, docInfo.BlobRef, blob.DefaultSignedURLExpiry)
	if err != nil {
		return nil, err
	}
	summary.DownloadURL = url

	return summary, nil
}

// List returns the documents owned by the given user, most recently updated
// first.
func List(
	ctx context.Context,
	be *backend.Backend,
	owner types.ID,
) ([]*types.DocumentSummary, error) {
	docInfos, err := be.DB.FindDocInfosByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.DocumentSummary, 0, len(docInfos))
	for _, info := range docInfos {
		summaries = append(summaries, info.Summary())
	}
	return summaries, nil
}

// Rename changes the document's title. Owner-only.
func Rename(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
	title string,
) (*types.DocumentSummary, error) {
	if err := validation.ValidateStruct(&titleField{Title: title}); err != nil {
		return nil, err
	}

	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionRename); err != nil {
		return nil, err
	}

	renamed, err := be.DB.UpdateDocTitle(ctx, docID, title)
	if err != nil {
		return nil, err
	}

	if err := be.MsgBroker.Produce(ctx, broker.DocEventMessage{
		EventType: "document-renamed",
		DocID:     docID,
		Actor:     actor,
		Title:     title,
		Timestamp: gotime.Now(),
	}); err != nil {
		return nil, err
	}

	return renamed.Summary(), nil
}

// Delete removes the document. Owner-only. The in-memory state is discarded
// before the database cascade so that no flush can resurrect a deleted
// document; joined sessions are disconnected with a closed event.
func Delete(
	ctx context.Context,
	be *backend.Backend,
	docID types.ID,
	actor types.ID,
) error {
	docInfo, err := be.DB.FindDocInfoByID(ctx, docID)
	if err != nil {
		return err
	}

	if err := access.CanPerform(ctx, be.DB, docInfo, actor, access.ActionDelete); err != nil {
		return err
	}

	be.Lockers.Lock(lockKey(docID))
	defer func() {
		if err := be.Lockers.Unlock(lockKey(docID)); err != nil {
			logging.From(ctx).Warn(err)
		}
	}()

	if err := be.States.Evict(ctx, docID, true, docstate.EvictReasonDeleted); err != nil {
		return err
	}
	be.Rooms.CloseRoom(ctx, docID, "document deleted")

	versionInfos, err := be.DB.FindVersionInfosByDoc(ctx, docID)
	if err != nil {
		return err
	}

	if err := be.DB.DeleteDocInfo(ctx, docID); err != nil {
		return err
	}

	// Blob removal is best-effort; the records are already gone.
	refs := []string{docInfo.BlobRef}
	for _, info := range versionInfos {
		refs = append(refs, info.BlobRef)
	}
	for _, ref := range refs {
		if err := be.Blob.Delete(ctx, ref); err != nil {
			logging.From(ctx).Warnf("delete blob %s: %v", ref, err)
		}
	}

	return be.MsgBroker.Produce(ctx, broker.DocEventMessage{
		EventType: "document-deleted",
		DocID:     docID,
		Actor:     actor,
		Timestamp: gotime.Now(),
	})
}
