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

// Package mongo implements database interfaces using MongoDB.
package mongo

import (
	"context"
	"fmt"
	gotime "time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/logging"
)

// docCacheSize is the size of the per-client DocInfo read cache.
const docCacheSize = 1000

// Client is a client that connects to Mongo DB and reads or saves Margo data.
type Client struct {
	config *Config
	client *mongo.Client

	docCache *lru.Cache[types.ID, *database.DocInfo]
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancel()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.MargoDatabase)); err != nil {
		return nil, err
	}

	docCache, err := lru.New[types.ID, *database.DocInfo](docCacheSize)
	if err != nil {
		return nil, fmt.Errorf("initialize docinfo cache: %w", err)
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.MargoDatabase)

	return &Client{
		config:   conf,
		client:   client,
		docCache: docCache,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// CreateUserInfo creates a new user.
func (c *Client) CreateUserInfo(
	ctx context.Context,
	username string,
	hashedPassword string,
) (*database.UserInfo, error) {
	info := &database.UserInfo{
		ID:             types.NewID(),
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      gotime.Now(),
	}

	if _, err := c.collection(ColUsers).InsertOne(ctx, info); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", username, database.ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("create user info: %w", err)
	}

	return info, nil
}

// FindUserInfoByID returns a user by ID.
func (c *Client) FindUserInfoByID(ctx context.Context, id types.ID) (*database.UserInfo, error) {
	result := c.collection(ColUsers).FindOne(ctx, bson.M{"_id": id})

	info := database.UserInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", id, database.ErrUserNotFound)
		}
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	return &info, nil
}

// FindUserInfoByUsername returns a user by username.
func (c *Client) FindUserInfoByUsername(ctx context.Context, username string) (*database.UserInfo, error) {
	result := c.collection(ColUsers).FindOne(ctx, bson.M{"username": username})

	info := database.UserInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", username, database.ErrUserNotFound)
		}
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	return &info, nil
}

// CreateDocInfo creates a new document owned by the given user.
func (c *Client) CreateDocInfo(
	ctx context.Context,
	owner types.ID,
	title string,
	blobRef string,
	size int64,
) (*database.DocInfo, error) {
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

	if _, err := c.collection(ColDocuments).InsertOne(ctx, info); err != nil {
		return nil, fmt.Errorf("create doc info: %w", err)
	}

	c.docCache.Add(info.ID, info.DeepCopy())
	return info, nil
}

// FindDocInfoByID returns a document by ID.
func (c *Client) FindDocInfoByID(ctx context.Context, id types.ID) (*database.DocInfo, error) {
	if info, ok := c.docCache.Get(id); ok {
		return info.DeepCopy(), nil
	}

	result := c.collection(ColDocuments).FindOne(ctx, bson.M{"_id": id})

	info := database.DocInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", id, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("decode doc info: %w", err)
	}

	c.docCache.Add(id, info.DeepCopy())
	return &info, nil
}

// FindDocInfosByOwner returns the documents owned by the given user.
func (c *Client) FindDocInfosByOwner(ctx context.Context, owner types.ID) ([]*database.DocInfo, error) {
	cursor, err := c.collection(ColDocuments).Find(
		ctx,
		bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find doc infos: %w", err)
	}

	var infos []*database.DocInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode doc infos: %w", err)
	}

	return infos, nil
}

// UpdateDocTitle renames the document.
func (c *Client) UpdateDocTitle(ctx context.Context, id types.ID, title string) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"title":      title,
			"updated_at": gotime.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	info := database.DocInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", id, database.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("decode doc info: %w", err)
	}

	c.docCache.Add(id, info.DeepCopy())
	return &info, nil
}

// AdvanceDocVersion advances the document's version counter with a
// compare-and-set on the expected version.
func (c *Client) AdvanceDocVersion(
	ctx context.Context,
	id types.ID,
	expectedVersion int,
	blobRef string,
	size int64,
) (*database.DocInfo, error) {
	result := c.collection(ColDocuments).FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":     id,
			"version": expectedVersion,
		},
		bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{
				"blob_ref":   blobRef,
				"size":       size,
				"updated_at": gotime.Now(),
			},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	info := database.DocInfo{}
	if err := result.Decode(&info); err != nil {
		if err != mongo.ErrNoDocuments {
			return nil, fmt.Errorf("decode doc info: %w", err)
		}

		// The filter missed: either the document is gone or the version
		// moved under us. Tell the two apart for the caller.
		if _, err := c.FindDocInfoByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("advance version of %s: %w", id, database.ErrConflictOnUpdate)
	}

	c.docCache.Add(id, info.DeepCopy())
	return &info, nil
}

// DeleteDocInfo removes the document and cascades to its grants, version
// snapshots and persisted state.
func (c *Client) DeleteDocInfo(ctx context.Context, id types.ID) error {
	deleteResult, err := c.collection(ColDocuments).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete doc info: %w", err)
	}
	if deleteResult.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", id, database.ErrDocumentNotFound)
	}

	c.docCache.Remove(id)

	if _, err := c.collection(ColGrants).DeleteMany(ctx, bson.M{"doc_id": id}); err != nil {
		return fmt.Errorf("delete grants of %s: %w", id, err)
	}
	if _, err := c.collection(ColVersions).DeleteMany(ctx, bson.M{"doc_id": id}); err != nil {
		return fmt.Errorf("delete versions of %s: %w", id, err)
	}
	if _, err := c.collection(ColStates).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete state of %s: %w", id, err)
	}

	return nil
}

// UpsertGrantInfo creates or overwrites the grant for the given document
// and user.
func (c *Client) UpsertGrantInfo(
	ctx context.Context,
	docID types.ID,
	userID types.ID,
	role types.Role,
) (*database.GrantInfo, error) {
	result := c.collection(ColGrants).FindOneAndUpdate(
		ctx,
		bson.M{
			"doc_id":  docID,
			"user_id": userID,
		},
		bson.M{
			"$set": bson.M{
				"role":       role,
				"updated_at": gotime.Now(),
			},
			"$setOnInsert": bson.M{
				"_id": types.NewID(),
			},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)

	info := database.GrantInfo{}
	if err := result.Decode(&info); err != nil {
		return nil, fmt.Errorf("decode grant info: %w", err)
	}

	return &info, nil
}

// FindGrantInfo returns the grant of the given user on the document.
func (c *Client) FindGrantInfo(ctx context.Context, docID types.ID, userID types.ID) (*database.GrantInfo, error) {
	result := c.collection(ColGrants).FindOne(ctx, bson.M{
		"doc_id":  docID,
		"user_id": userID,
	})

	info := database.GrantInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s on %s: %w", userID, docID, database.ErrGrantNotFound)
		}
		return nil, fmt.Errorf("decode grant info: %w", err)
	}

	return &info, nil
}

// FindGrantInfosByDoc returns all grants on the document.
func (c *Client) FindGrantInfosByDoc(ctx context.Context, docID types.ID) ([]*database.GrantInfo, error) {
	cursor, err := c.collection(ColGrants).Find(ctx, bson.M{"doc_id": docID})
	if err != nil {
		return nil, fmt.Errorf("find grant infos: %w", err)
	}

	var infos []*database.GrantInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode grant infos: %w", err)
	}

	return infos, nil
}

// DeleteGrantInfo removes the grant of the given user on the document.
func (c *Client) DeleteGrantInfo(ctx context.Context, docID types.ID, userID types.ID) error {
	deleteResult, err := c.collection(ColGrants).DeleteOne(ctx, bson.M{
		"doc_id":  docID,
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("delete grant info: %w", err)
	}
	if deleteResult.DeletedCount == 0 {
		return fmt.Errorf("%s on %s: %w", userID, docID, database.ErrGrantNotFound)
	}

	return nil
}

// CreateVersionInfo stores an immutable version snapshot.
func (c *Client) CreateVersionInfo(ctx context.Context, info *database.VersionInfo) (*database.VersionInfo, error) {
	info = info.DeepCopy()
	if info.ID == "" {
		info.ID = types.NewID()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = gotime.Now()
	}

	if _, err := c.collection(ColVersions).InsertOne(ctx, info); err != nil {
		return nil, fmt.Errorf("create version info: %w", err)
	}

	return info, nil
}

// FindVersionInfo returns the snapshot of the given version number.
func (c *Client) FindVersionInfo(ctx context.Context, docID types.ID, version int) (*database.VersionInfo, error) {
	result := c.collection(ColVersions).FindOne(ctx, bson.M{
		"doc_id":  docID,
		"version": version,
	})

	info := database.VersionInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s@%d: %w", docID, version, database.ErrVersionNotFound)
		}
		return nil, fmt.Errorf("decode version info: %w", err)
	}

	return &info, nil
}

// FindVersionInfosByDoc returns all snapshots of the document, newest first.
func (c *Client) FindVersionInfosByDoc(ctx context.Context, docID types.ID) ([]*database.VersionInfo, error) {
	cursor, err := c.collection(ColVersions).Find(
		ctx,
		bson.M{"doc_id": docID},
		options.Find().SetSort(bson.D{{Key: "version", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find version infos: %w", err)
	}

	var infos []*database.VersionInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode version infos: %w", err)
	}

	return infos, nil
}

// FindStateInfo returns the latest persisted encoded state of the document.
func (c *Client) FindStateInfo(ctx context.Context, docID types.ID) (*database.StateInfo, error) {
	result := c.collection(ColStates).FindOne(ctx, bson.M{"_id": docID})

	info := database.StateInfo{}
	if err := result.Decode(&info); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", docID, database.ErrStateNotFound)
		}
		return nil, fmt.Errorf("decode state info: %w", err)
	}

	return &info, nil
}

// PutStateInfo stores the encoded state of the document, replacing any
// previous snapshot.
func (c *Client) PutStateInfo(ctx context.Context, docID types.ID, snapshot []byte) error {
	_, err := c.collection(ColStates).UpdateOne(
		ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{
			"snapshot":   snapshot,
			"updated_at": gotime.Now(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put state info: %w", err)
	}

	return nil
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.MargoDatabase).Collection(name)
}
