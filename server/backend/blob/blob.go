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

// Package blob provides storage for opaque document payloads such as the
// uploaded PDF files and archived version snapshots.
package blob

import (
	"context"
	"io"
	"time"

	"github.com/margolab/margo/pkg/errors"
)

// ErrBlobNotFound is returned when the referenced object does not exist.
var ErrBlobNotFound = errors.NotFound("blob not found").WithCode("ErrBlobNotFound")

// DefaultSignedURLExpiry is how long a download URL stays valid.
const DefaultSignedURLExpiry = 15 * time.Minute

// Store reads and writes opaque blobs addressed by reference strings. The
// synchronization layer never interprets blob contents.
type Store interface {
	// Put uploads the given payload under the reference.
	Put(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error

	// SignedGetURL returns a time-limited URL from which the blob can be
	// downloaded directly.
	SignedGetURL(ctx context.Context, ref string, expiry time.Duration) (string, error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, ref string) error

	// Close closes the store.
	Close() error
}
