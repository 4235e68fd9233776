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

package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/server/backend/database"
	"github.com/margolab/margo/server/users"
	"github.com/margolab/margo/test/helper"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	be := helper.TestBackend(t)
	tokens := users.NewTokenManager(be.Config.SecretKey, be.Config.ParseAuthTokenDuration())

	t.Run("sign up and log in test", func(t *testing.T) {
		summary, err := users.SignUp(ctx, be, "alice", "correct-horse")
		assert.NoError(t, err)
		assert.Equal(t, "alice", summary.Username)

		token, err := users.LogIn(ctx, be, tokens, "alice", "correct-horse")
		assert.NoError(t, err)

		userID, err := tokens.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, summary.ID, userID)
	})

	t.Run("duplicate username test", func(t *testing.T) {
		_, err := users.SignUp(ctx, be, "bob", "password-one")
		assert.NoError(t, err)
		_, err = users.SignUp(ctx, be, "bob", "password-two")
		assert.ErrorIs(t, err, database.ErrUserAlreadyExists)
	})

	t.Run("invalid username test", func(t *testing.T) {
		_, err := users.SignUp(ctx, be, "no spaces allowed", "long-enough")
		assert.Error(t, err)
	})

	t.Run("wrong password and unknown user are indistinguishable test", func(t *testing.T) {
		_, err := users.SignUp(ctx, be, "carol", "right-password")
		assert.NoError(t, err)

		_, err = users.LogIn(ctx, be, tokens, "carol", "wrong-password")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)

		_, err = users.LogIn(ctx, be, tokens, "nobody", "whatever-pass")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)
	})

	t.Run("tampered token test", func(t *testing.T) {
		other := users.NewTokenManager("other-secret", time.Hour)
		summary, err := users.SignUp(ctx, be, "dave", "long-password")
		assert.NoError(t, err)

		token, err := other.Issue(summary.ID)
		assert.NoError(t, err)

		_, err = tokens.Verify(token)
		assert.ErrorIs(t, err, users.ErrInvalidToken)
	})
}
