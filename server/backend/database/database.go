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

// Package database provides the database interface for the server backend.
package database

import (
	"context"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
)

var (
	// ErrUserNotFound is returned when the user could not be found.
	ErrUserNotFound = errors.NotFound("user not found").WithCode("ErrUserNotFound")

	// ErrUserAlreadyExists is returned when the username is already taken.
	ErrUserAlreadyExists = errors.AlreadyExists("user already exists").WithCode("ErrUserAlreadyExists")

	// ErrDocumentNotFound is returned when the document could not be found.
	ErrDocumentNotFound = errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	// ErrGrantNotFound is returned when no grant exists for the given
	// document and user.
	ErrGrantNotFound = errors.NotFound("grant not found").WithCode("ErrGrantNotFound")

	// ErrVersionNotFound is returned when the requested version snapshot
	// does not exist. Distinct from a permission denial.
	ErrVersionNotFound = errors.NotFound("version not found").WithCode("ErrVersionNotFound")

	// ErrStateNotFound is returned when no synchronized state has been
	// persisted for the document yet.
	ErrStateNotFound = errors.NotFound("state not found").WithCode("ErrStateNotFound")

	// ErrConflictOnUpdate is returned when a compare-and-set update lost
	// against a concurrent writer.
	ErrConflictOnUpdate = errors.FailedPrecond("conflict on update").WithCode("ErrConflictOnUpdate")
)

// Database reads and saves the server's durable data: users, documents,
// permission grants, version snapshots and the latest encoded synchronized
// state per document.
type Database interface {
	// Close closes all resources of this database.
	Close() error

	// CreateUserInfo creates a new user.
	CreateUserInfo(ctx context.Context, username string, hashedPassword string) (*UserInfo, error)

	// FindUserInfoByID returns a user by ID.
	FindUserInfoByID(ctx context.Context, id types.ID) (*UserInfo, error)

	// FindUserInfoByUsername returns a user by username.
	FindUserInfoByUsername(ctx context.Context, username string) (*UserInfo, error)

	// CreateDocInfo creates a new document owned by the given user. The
	// document starts at version 1 pointing at the given blob reference.
	CreateDocInfo(ctx context.Context, owner types.ID, title string, blobRef string, size int64) (*DocInfo, error)

	// FindDocInfoByID returns a document by ID.
	FindDocInfoByID(ctx context.Context, id types.ID) (*DocInfo, error)

	// FindDocInfosByOwner returns the documents owned by the given user,
	// most recently updated first.
	FindDocInfosByOwner(ctx context.Context, owner types.ID) ([]*DocInfo, error)

	// UpdateDocTitle renames the document.
	UpdateDocTitle(ctx context.Context, id types.ID, title string) (*DocInfo, error)

	// AdvanceDocVersion atomically advances the document's version counter
	// by one and points it at the given blob reference. It fails with
	// ErrConflictOnUpdate when the current version differs from expected.
	AdvanceDocVersion(ctx context.Context, id types.ID, expectedVersion int, blobRef string, size int64) (*DocInfo, error)

	// DeleteDocInfo removes the document and cascades to its grants,
	// version snapshots and persisted state.
	DeleteDocInfo(ctx context.Context, id types.ID) error

	// UpsertGrantInfo creates or overwrites the grant for the given
	// document and user. Grants are unique per (document, user) pair.
	UpsertGrantInfo(ctx context.Context, docID types.ID, userID types.ID, role types.Role) (*GrantInfo, error)

	// FindGrantInfo returns the grant of the given user on the document.
	FindGrantInfo(ctx context.Context, docID types.ID, userID types.ID) (*GrantInfo, error)

	// FindGrantInfosByDoc returns all grants on the document.
	FindGrantInfosByDoc(ctx context.Context, docID types.ID) ([]*GrantInfo, error)

	// DeleteGrantInfo removes the grant of the given user on the document.
	DeleteGrantInfo(ctx context.Context, docID types.ID, userID types.ID) error

	// CreateVersionInfo stores an immutable version snapshot.
	CreateVersionInfo(ctx context.Context, info *VersionInfo) (*VersionInfo, error)

	// FindVersionInfo returns the snapshot of the given version number.
	FindVersionInfo(ctx context.Context, docID types.ID, version int) (*VersionInfo, error)

	// FindVersionInfosByDoc returns all snapshots of the document, newest
	// first.
	FindVersionInfosByDoc(ctx context.Context, docID types.ID) ([]*VersionInfo, error)

	// FindStateInfo returns the latest persisted encoded state of the
	// document.
	FindStateInfo(ctx context.Context, docID types.ID) (*StateInfo, error)

	// PutStateInfo stores the encoded state of the document, replacing any
	// previous snapshot. Only one writer per document key exists within a
	// process, so last-write-wins at the key level is acceptable.
	PutStateInfo(ctx context.Context, docID types.ID, snapshot []byte) error
}
