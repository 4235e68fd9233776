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

package statedoc_test

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/pkg/statedoc"
)

func fields(kv ...string) map[string]json.RawMessage {
	m := make(map[string]json.RawMessage)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i]] = json.RawMessage(`"` + kv[i+1] + `"`)
	}
	return m
}

func TestStateDoc(t *testing.T) {
	t.Run("convergence under arbitrary delivery order test", func(t *testing.T) {
		source := statedoc.New()
		var deltas []statedoc.Delta
		for i := 0; i < 20; i++ {
			actor := "actor-a"
			if i%2 == 1 {
				actor = "actor-b"
			}
			deltas = append(deltas, source.Edit(actor, statedoc.ContentOp,
				fields("annotation/"+string(rune('a'+i%5)), "v")))
		}

		base := statedoc.New()
		for _, d := range deltas {
			base.ApplyDelta(d)
		}

		for trial := 0; trial < 10; trial++ {
			shuffled := make([]statedoc.Delta, len(deltas))
			copy(shuffled, deltas)
			rand.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			replica := statedoc.New()
			for _, d := range shuffled {
				replica.ApplyDelta(d)
			}
			assert.Equal(t, base.Checksum(), replica.Checksum())
		}
	})

	t.Run("idempotent merge test", func(t *testing.T) {
		doc := statedoc.New()
		delta := doc.Edit("actor-a", statedoc.CommentOp, fields("comments/1", "hello"))

		replica := statedoc.New()
		replica.ApplyDelta(delta)
		before := replica.Checksum()

		replica.ApplyDelta(delta)
		replica.ApplyDelta(delta)
		assert.Equal(t, before, replica.Checksum())
	})

	t.Run("concurrent writes to one field resolve deterministically test", func(t *testing.T) {
		docA := statedoc.New()
		docB := statedoc.New()

		deltaA := docA.Edit("actor-a", statedoc.ContentOp, fields("annotation/1", "from-a"))
		deltaB := docB.Edit("actor-b", statedoc.ContentOp, fields("annotation/1", "from-b"))

		docA.ApplyDelta(deltaB)
		docB.ApplyDelta(deltaA)

		assert.Equal(t, docA.Checksum(), docB.Checksum())
		// Equal lamport clocks: the higher actor id wins the tie.
		value, ok := docA.Get("annotation/1")
		assert.True(t, ok)
		assert.JSONEq(t, `"from-b"`, string(value))
	})

	t.Run("encode decode round trip test", func(t *testing.T) {
		doc := statedoc.New()
		doc.Edit("actor-a", statedoc.ContentOp, fields("annotation/1", "x", "annotation/2", "y"))
		doc.Edit("actor-a", statedoc.CommentOp, fields("comments/1", "hi"))

		snapshot, err := doc.Encode()
		assert.NoError(t, err)

		decoded, err := statedoc.Decode(snapshot)
		assert.NoError(t, err)
		assert.Equal(t, doc.Checksum(), decoded.Checksum())
		assert.Equal(t, doc.Len(), decoded.Len())
	})

	t.Run("diff returns only newer registers test", func(t *testing.T) {
		source := statedoc.New()
		first := source.Edit("actor-a", statedoc.ContentOp, fields("annotation/1", "x"))

		replica := statedoc.New()
		replica.ApplyDelta(first)

		source.Edit("actor-a", statedoc.ContentOp, fields("annotation/2", "y"))
		diff := source.Diff(replica)
		assert.Len(t, diff.Ops, 1)
		assert.Equal(t, "annotation/2", diff.Ops[0].Field)

		replica.ApplyDelta(diff)
		assert.Equal(t, source.Checksum(), replica.Checksum())
	})

	t.Run("delta class and validation test", func(t *testing.T) {
		doc := statedoc.New()
		comment := doc.Edit("actor-a", statedoc.CommentOp, fields("comments/1", "hi"))
		assert.Equal(t, statedoc.CommentOp, comment.Class())

		mixed := doc.Edit("actor-a", statedoc.ContentOp, fields("annotation/1", "x"))
		mixed.Ops = append(mixed.Ops, comment.Ops...)
		assert.Equal(t, statedoc.ContentOp, mixed.Class())

		_, err := statedoc.DecodeDelta([]byte(`{"ops":[]}`))
		assert.ErrorIs(t, err, statedoc.ErrInvalidDelta)

		_, err = statedoc.DecodeDelta([]byte(`not json`))
		assert.ErrorIs(t, err, statedoc.ErrInvalidDelta)

		raw, err := comment.Encode()
		assert.NoError(t, err)
		decoded, err := statedoc.DecodeDelta(raw)
		assert.NoError(t, err)
		assert.Equal(t, comment, decoded)
	})
}
