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

package docstate_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/statedoc"
	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/backend/database/memory"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/profiling/prometheus"
)

func setUpManager(t *testing.T) (*docstate.Manager, database.Database) {
	t.Helper()

	db, err := memory.New()
	assert.NoError(t, err)

	metrics, err := prometheus.NewMetrics()
	assert.NoError(t, err)

	conf := &docstate.Config{
		FlushInterval:   "10ms",
		MaxFlushRetries: 3,
		MaxIdleTime:     "50ms",
	}
	assert.NoError(t, conf.Validate())

	return docstate.New(conf, db, metrics), db
}

func editDelta(actor string, field, value string) statedoc.Delta {
	scratch := statedoc.New()
	return scratch.Edit(actor, statedoc.CommentOp, map[string]json.RawMessage{
		field: json.RawMessage(value),
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire shares one entry per document test", func(t *testing.T) {
		mgr, _ := setUpManager(t)
		docID := types.NewID()

		entryA, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		entryB, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		assert.Same(t, entryA, entryB)
		assert.Equal(t, 1, mgr.Len())
	})

	t.Run("flush persists dirty state test", func(t *testing.T) {
		mgr, db := setUpManager(t)
		docID := types.NewID()

		entry, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		entry.ApplyDelta(editDelta("actor-a", "note-1", `"first"`))

		mgr.FlushAll(ctx)

		info, err := db.FindStateInfo(ctx, docID)
		assert.NoError(t, err)

		doc, err := statedoc.Decode(info.Snapshot)
		assert.NoError(t, err)
		value, ok := doc.Get("note-1")
		assert.True(t, ok)
		assert.JSONEq(t, `"first"`, string(value))
	})

	t.Run("evict flushes then reloads test", func(t *testing.T) {
		mgr, _ := setUpManager(t)
		docID := types.NewID()

		entry, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		entry.ApplyDelta(editDelta("actor-a", "note-1", `"kept"`))

		assert.NoError(t, mgr.Evict(ctx, docID, false, docstate.EvictReasonIdle))
		assert.Equal(t, 0, mgr.Len())

		reloaded, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		assert.NotSame(t, entry, reloaded)

		value, ok := reloaded.Doc().Get("note-1")
		assert.True(t, ok)
		assert.JSONEq(t, `"kept"`, string(value))
	})

	t.Run("evict with discard drops pending changes test", func(t *testing.T) {
		mgr, db := setUpManager(t)
		docID := types.NewID()

		entry, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		entry.ApplyDelta(editDelta("actor-a", "note-1", `"dropped"`))

		assert.NoError(t, mgr.Evict(ctx, docID, true, docstate.EvictReasonDeleted))

		_, err = db.FindStateInfo(ctx, docID)
		assert.ErrorIs(t, err, database.ErrStateNotFound)
	})

	t.Run("evict idle skips occupied documents test", func(t *testing.T) {
		mgr, _ := setUpManager(t)
		occupiedID, idleID := types.NewID(), types.NewID()

		_, err := mgr.Acquire(ctx, occupiedID)
		assert.NoError(t, err)
		_, err = mgr.Acquire(ctx, idleID)
		assert.NoError(t, err)

		time.Sleep(60 * time.Millisecond)
		mgr.EvictIdle(ctx, func(id types.ID) bool {
			return id == occupiedID
		})

		assert.Equal(t, 1, mgr.Len())
		entry, err := mgr.Acquire(ctx, occupiedID)
		assert.NoError(t, err)
		assert.Equal(t, occupiedID, entry.DocID())
	})

	t.Run("close flushes everything test", func(t *testing.T) {
		mgr, db := setUpManager(t)
		docID := types.NewID()

		entry, err := mgr.Acquire(ctx, docID)
		assert.NoError(t, err)
		entry.ApplyDelta(editDelta("actor-a", "note-1", `"flushed"`))

		mgr.Close(ctx)
		assert.Equal(t, 0, mgr.Len())

		_, err = db.FindStateInfo(ctx, docID)
		assert.NoError(t, err)
	})
}
