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

// Package helper provides helpers for testing.
package helper

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/backend/housekeeping"
	"github.com/margolab/margo/server/profiling/prometheus"
)

// TestBackend creates a backend on the memory database and blob store. It is
// shut down when the test finishes.
func TestBackend(t *testing.T) *backend.Backend {
	t.Helper()

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)

	be, err := backend.New(
		&backend.Config{
			AdminUser:         "admin",
			AdminPassword:     "admin",
			SecretKey:         "margo-test-secret",
			AuthTokenDuration: "1h",
			Hostname:          "test",
		},
		nil,
		nil,
		&docstate.Config{
			FlushInterval:   "100ms",
			MaxFlushRetries: 3,
			MaxIdleTime:     "1h",
		},
		&housekeeping.Config{Interval: "1h"},
		metrics,
		nil,
	)
	assert.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, be.Shutdown())
	})
	return be
}

// CreateUser creates a user with the given name.
func CreateUser(t *testing.T, be *backend.Backend, username string) *database.UserInfo {
	t.Helper()

	info, err := be.DB.CreateUserInfo(context.Background(), username, "hashed-"+username)
	assert.NoError(t, err)
	return info
}

// CreateDoc creates a document owned by the given user with a small blob.
func CreateDoc(t *testing.T, be *backend.Backend, owner *database.UserInfo, title string) *database.DocInfo {
	t.Helper()

	ctx := context.Background()
	payload := []byte("%PDF-1.7 test payload")
	ref := "blobs/" + title

	err := be.Blob.Put(ctx, ref, bytes.NewReader(payload), int64(len(payload)), "application/pdf")
	assert.NoError(t, err)

	info, err := be.DB.CreateDocInfo(ctx, owner.ID, title, ref, int64(len(payload)))
	assert.NoError(t, err)
	return info
}
