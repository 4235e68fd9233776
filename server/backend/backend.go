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

// Package backend provides the backend implementation of the Margo server.
// This package is responsible for managing the database and other resources
// required to serve documents.
package backend

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/pkg/locker"
	"github.com/margolab/margo/server/backend/background"
	"github.com/margolab/margo/server/backend/blob"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/database"
	memdb "github.com/margolab/margo/server/backend/database/memory"
	"github.com/margolab/margo/server/backend/database/mongo"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/backend/housekeeping"
	"github.com/margolab/margo/server/backend/rooms"
	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/profiling/prometheus"
)

// Backend manages the server's resources: database, blob store, in-memory
// document states, rooms and background tasks.
type Backend struct {
	Config *Config

	// Rooms tracks joined sessions and fans out document events.
	Rooms *rooms.Rooms
	// States keeps the in-memory document states and flushes them.
	States *docstate.Manager
	// Lockers is used to lock/unlock resources.
	Lockers *locker.Locker

	// Background is used to manage background tasks.
	Background *background.Background
	// Housekeeping is used to manage background batch tasks.
	Housekeeping *housekeeping.Housekeeping

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
	// Blob is the blob store instance.
	Blob blob.Store
	// MsgBroker is the message producer instance.
	MsgBroker broker.Broker
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	blobConf *blob.Config,
	docstateConf *docstate.Config,
	housekeepingConf *housekeeping.Config,
	metrics *prometheus.Metrics,
	kafkaConf *broker.Config,
) (*Backend, error) {
	// 01. Build the server info with the given hostname or the hostname of
	// the current machine.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the lockers, rooms and the background task manager.
	lockers := locker.New()
	roomSet := rooms.New(metrics)
	bg := background.New(metrics)

	// 03. Create the database instance. If the MongoDB configuration is
	// given, create a MongoDB instance. Otherwise, create a memory database.
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	// 04. Create the blob store. Without an endpoint the blobs are kept in
	// process memory.
	var blobStore blob.Store
	if blobConf != nil && blobConf.Endpoint != "" {
		blobStore, err = blob.NewMinioStore(context.Background(), blobConf)
		if err != nil {
			return nil, err
		}
	} else {
		blobStore = blob.NewMemoryStore()
	}

	// 05. Create the document state manager and the housekeeping instance.
	states := docstate.New(docstateConf, db, metrics)
	housekeeper, err := housekeeping.New(housekeepingConf)
	if err != nil {
		return nil, err
	}
	housekeeper.RegisterTask("evictIdleDocs", func(ctx context.Context) error {
		states.EvictIdle(ctx, func(docID types.ID) bool {
			return len(roomSet.Members(docID)) > 0
		})
		return nil
	})

	// 06. Create the message broker instance.
	msgBroker := broker.Ensure(kafkaConf)

	// 07. Ensure the default admin user.
	if conf.UseDefaultUser {
		if err := ensureDefaultUser(context.Background(), db, conf.AdminUser, conf.AdminPassword); err != nil {
			return nil, err
		}
	}

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config: conf,

		Rooms:   roomSet,
		States:  states,
		Lockers: lockers,

		Background:   bg,
		Housekeeping: housekeeper,

		Metrics:   metrics,
		DB:        db,
		Blob:      blobStore,
		MsgBroker: msgBroker,
	}, nil
}

// Start starts the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(); err != nil {
		return err
	}

	b.Background.AttachGoroutine(b.States.Run, "flushStates")

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}

	b.States.Close(context.Background())
	b.Background.Close()

	if err := b.MsgBroker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.Blob.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return goerrors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}

// ensureDefaultUser creates the default admin user if it does not exist.
func ensureDefaultUser(
	ctx context.Context,
	db database.Database,
	username string,
	password string,
) error {
	_, err := db.FindUserInfoByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.IsStatus(err, errors.ErrCodeNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := db.CreateUserInfo(ctx, username, string(hashed)); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("default user created: %s", username)
	return nil
}
