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

// Package memory implements the database interface using an in-memory
// database. It is used for standalone mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/backend/database"
)

// DB is an in-memory database for testing or standalone deployments.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// CreateUserInfo creates a new user.
func (d *DB) CreateUserInfo(
	_ context.Context,
	username string,
	hashedPassword string,
) (*database.UserInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblUsers, "username", username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserAlreadyExists)
	}

	info := &database.UserInfo{
		ID:             types.NewID(),
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      gotime.Now(),
	}
	if err := txn.Insert(tblUsers, info); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindUserInfoByID returns a user by ID.
func (d *DB) FindUserInfoByID(_ context.Context, id types.ID) (*database.UserInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrUserNotFound)
	}

	return raw.(*database.UserInfo).DeepCopy(), nil
}

// FindUserInfoByUsername returns a user by username.
func (d *DB) FindUserInfoByUsername(_ context.Context, username string) (*database.UserInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "username", username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", username, database.ErrUserNotFound)
	}

	return raw.(*database.UserInfo).DeepCopy(), nil
}

// CreateDocInfo creates a new document owned by the given user.
func (d *DB) CreateDocInfo(
	_ context.Context,
	owner types.ID,
	title string,
	blobRef string,
	size int64,
) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	now := gotime.Now()
	info := &database.DocInfo{
		ID:         types.NewID(),
		Title:      title,
		Owner:      owner,
		BlobRef:    blobRef,
		Version:    database.InitialVersion,
		Size:       size,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindDocInfoByID returns a document by ID.
func (d *DB) FindDocInfoByID(_ context.Context, id types.ID) (*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	return d.findDocInfo(txn, id)
}

func (d *DB) findDocInfo(txn *memdb.Txn, id types.ID) (*database.DocInfo, error) {
	raw, err := txn.First(tblDocuments, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", id, database.ErrDocumentNotFound)
	}

	return raw.(*database.DocInfo).DeepCopy(), nil
}

// FindDocInfosByOwner returns the documents owned by the given user.
func (d *DB) FindDocInfosByOwner(_ context.Context, owner types.ID) ([]*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblDocuments, "owner", owner.String())
	if err != nil {
		return nil, fmt.Errorf("find documents by owner: %w", err)
	}

	var infos []*database.DocInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.DocInfo).DeepCopy())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// UpdateDocTitle renames the document.
func (d *DB) UpdateDocTitle(_ context.Context, id types.ID, title string) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, id)
	if err != nil {
		return nil, err
	}

	info.Title = title
	info.UpdatedAt = gotime.Now()
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("update document title: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// AdvanceDocVersion atomically advances the document's version counter.
func (d *DB) AdvanceDocVersion(
	_ context.Context,
	id types.ID,
	expectedVersion int,
	blobRef string,
	size int64,
) (*database.DocInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, id)
	if err != nil {
		return nil, err
	}

	if info.Version != expectedVersion {
		return nil, fmt.Errorf(
			"version %d expected, current %d: %w",
			expectedVersion,
			info.Version,
			database.ErrConflictOnUpdate,
		)
	}

	info.Version++
	info.BlobRef = blobRef
	info.Size = size
	info.UpdatedAt = gotime.Now()
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("advance document version: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// DeleteDocInfo removes the document and cascades to its grants, version
// snapshots and persisted state.
func (d *DB) DeleteDocInfo(_ context.Context, id types.ID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := d.findDocInfo(txn, id)
	if err != nil {
		return err
	}

	if _, err := txn.DeleteAll(tblGrants, "doc_id", id.String()); err != nil {
		return fmt.Errorf("delete grants of %s: %w", id, err)
	}
	if _, err := txn.DeleteAll(tblVersions, "doc_id", id.String()); err != nil {
		return fmt.Errorf("delete versions of %s: %w", id, err)
	}
	if _, err := txn.DeleteAll(tblStates, "id", id.String()); err != nil {
		return fmt.Errorf("delete state of %s: %w", id, err)
	}
	if err := txn.Delete(tblDocuments, info); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	txn.Commit()

	return nil
}

// UpsertGrantInfo creates or overwrites the grant for the given document and
// user.
func (d *DB) UpsertGrantInfo(
	_ context.Context,
	docID types.ID,
	userID types.ID,
	role types.Role,
) (*database.GrantInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.GrantInfo{
		ID:        types.NewID(),
		DocID:     docID,
		UserID:    userID,
		Role:      role,
		UpdatedAt: gotime.Now(),
	}

	raw, err := txn.First(tblGrants, "doc_user", docID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("find grant: %w", err)
	}
	if raw != nil {
		// Re-granting overwrites the role, keeping the grant identity.
		info.ID = raw.(*database.GrantInfo).ID
	}

	if err := txn.Insert(tblGrants, info); err != nil {
		return nil, fmt.Errorf("upsert grant: %w", err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindGrantInfo returns the grant of the given user on the document.
func (d *DB) FindGrantInfo(
	_ context.Context,
	docID types.ID,
	userID types.ID,
) (*database.GrantInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblGrants, "doc_user", docID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("find grant: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s on %s: %w", userID, docID, database.ErrGrantNotFound)
	}

	return raw.(*database.GrantInfo).DeepCopy(), nil
}

// FindGrantInfosByDoc returns all grants on the document.
func (d *DB) FindGrantInfosByDoc(_ context.Context, docID types.ID) ([]*database.GrantInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblGrants, "doc_id", docID.String())
	if err != nil {
		return nil, fmt.Errorf("find grants by doc: %w", err)
	}

	var infos []*database.GrantInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.GrantInfo).DeepCopy())
	}
	return infos, nil
}

// DeleteGrantInfo removes the grant of the given user on the document.
func (d *DB) DeleteGrantInfo(_ context.Context, docID types.ID, userID types.ID) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblGrants, "doc_user", docID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("find grant: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s on %s: %w", userID, docID, database.ErrGrantNotFound)
	}

	if err := txn.Delete(tblGrants, raw); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	txn.Commit()

	return nil
}

// CreateVersionInfo stores an immutable version snapshot.
func (d *DB) CreateVersionInfo(
	_ context.Context,
	info *database.VersionInfo,
) (*database.VersionInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	copied := info.DeepCopy()
	if copied.ID == "" {
		copied.ID = types.NewID()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = gotime.Now()
	}

	if err := txn.Insert(tblVersions, copied); err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	txn.Commit()

	return copied.DeepCopy(), nil
}

// FindVersionInfo returns the snapshot of the given version number.
func (d *DB) FindVersionInfo(
	_ context.Context,
	docID types.ID,
	version int,
) (*database.VersionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblVersions, "doc_version", docID.String(), version)
	if err != nil {
		return nil, fmt.Errorf("find version: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("version %d of %s: %w", version, docID, database.ErrVersionNotFound)
	}

	return raw.(*database.VersionInfo).DeepCopy(), nil
}

// FindVersionInfosByDoc returns all snapshots of the document, newest first.
func (d *DB) FindVersionInfosByDoc(_ context.Context, docID types.ID) ([]*database.VersionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblVersions, "doc_id", docID.String())
	if err != nil {
		return nil, fmt.Errorf("find versions by doc: %w", err)
	}

	var infos []*database.VersionInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		infos = append(infos, raw.(*database.VersionInfo).DeepCopy())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Version > infos[j].Version
	})
	return infos, nil
}

// FindStateInfo returns the latest persisted encoded state of the document.
func (d *DB) FindStateInfo(_ context.Context, docID types.ID) (*database.StateInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblStates, "id", docID.String())
	if err != nil {
		return nil, fmt.Errorf("find state: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", docID, database.ErrStateNotFound)
	}

	return raw.(*database.StateInfo).DeepCopy(), nil
}

// PutStateInfo stores the encoded state of the document.
func (d *DB) PutStateInfo(_ context.Context, docID types.ID, snapshot []byte) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info := &database.StateInfo{
		DocID:     docID,
		UpdatedAt: gotime.Now(),
	}
	info.Snapshot = make([]byte, len(snapshot))
	copy(info.Snapshot, snapshot)

	if err := txn.Insert(tblStates, info); err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	txn.Commit()

	return nil
}
