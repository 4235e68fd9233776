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

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
)

type userIDKey struct{}

// ErrMissingCredential is returned when a protected route is called without
// a bearer token.
var ErrMissingCredential = errors.Unauthenticated("missing credential").WithCode("ErrMissingCredential")

// withAuth verifies the bearer token and stores the user on the request
// context.
func (h *Handler) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, r, ErrMissingCredential)
			return
		}

		userID, err := h.tokens.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

// actorFrom returns the authenticated user of the request.
func actorFrom(ctx context.Context) types.ID {
	userID, _ := ctx.Value(userIDKey{}).(types.ID)
	return userID
}
