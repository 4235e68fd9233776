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

package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/pkg/errors"
)

// ErrInvalidToken is returned when the session token is malformed, expired
// or signed with a different key.
var ErrInvalidToken = errors.Unauthenticated("invalid token").WithCode("ErrInvalidToken")

// TokenManager issues and verifies the session tokens that authenticate
// users on the HTTP API and the synchronization endpoint.
type TokenManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewTokenManager creates an instance of TokenManager.
func NewTokenManager(secretKey string, tokenDuration time.Duration) *TokenManager {
	return &TokenManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Issue returns a signed token carrying the user's ID.
func (m *TokenManager) Issue(userID types.ID) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
	})

	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token's signature and expiry and returns the user ID it
// was issued for.
func (m *TokenManager) Verify(token string) (types.ID, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return m.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("parse token: %w", ErrInvalidToken)
	}

	userID := types.ID(claims.Subject)
	if err := userID.Validate(); err != nil {
		return "", fmt.Errorf("token subject: %w", ErrInvalidToken)
	}

	return userID, nil
}
