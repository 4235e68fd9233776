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

// Package types provides the types shared between the server surfaces and
// their callers.
package types

import (
	"github.com/rs/xid"

	"github.com/margolab/margo/pkg/errors"
)

// ErrInvalidID is returned when the given ID is not in a valid format.
var ErrInvalidID = errors.InvalidArgument("invalid ID").WithCode("ErrInvalidID")

// ID is the unique identifier of a stored entity.
type ID string

// NewID creates a new random ID.
func NewID() ID {
	return ID(xid.New().String())
}

// String returns the string representation of this ID.
func (id ID) String() string {
	return string(id)
}

// Validate returns an error if this ID is empty or not parsable.
func (id ID) Validate() error {
	if _, err := xid.FromString(string(id)); err != nil {
		return ErrInvalidID
	}
	return nil
}
