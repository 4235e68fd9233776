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

// Package users provides sign-up and log-in of users.
package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/internal/validation"
	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/backend"
)

// ErrInvalidCredentials is returned when the username or password does not
// match. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.Unauthenticated("invalid credentials").WithCode("ErrInvalidCredentials")

type signUpFields struct {
	Username string `validate:"required,min=3,max=30,username"`
	Password string `validate:"required,min=8,max=64"`
}

// SignUp creates a user with the given username and password.
func SignUp(
	ctx context.Context,
	be *backend.Backend,
	username string,
	password string,
) (*types.UserSummary, error) {
	if err := validation.ValidateStruct(&signUpFields{
		Username: username,
		Password: password,
	}); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("hash password").WithCode("ErrHashPassword")
	}

	info, err := be.DB.CreateUserInfo(ctx, username, string(hashed))
	if err != nil {
		return nil, err
	}

	return info.Summary(), nil
}

// LogIn checks the credentials and issues a session token.
func LogIn(
	ctx context.Context,
	be *backend.Backend,
	tokens *TokenManager,
	username string,
	password string,
) (string, error) {
	info, err := be.DB.FindUserInfoByUsername(ctx, username)
	if err != nil {
		if errors.IsStatus(err, errors.ErrCodeNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(info.HashedPassword),
		[]byte(password),
	); err != nil {
		return "", ErrInvalidCredentials
	}

	return tokens.Issue(info.ID)
}

// GetByID returns the user of the given ID.
func GetByID(ctx context.Context, be *backend.Backend, id types.ID) (*types.UserSummary, error) {
	info, err := be.DB.FindUserInfoByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return info.Summary(), nil
}
