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

package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory. It backs standalone and test
// deployments where no object storage is available.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Put uploads the given payload under the reference.
func (s *MemoryStore) Put(ctx context.Context, ref string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", ref, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = data
	return nil
}

// SignedGetURL returns a pseudo URL for the blob. Memory-stored blobs are
// not downloadable from outside the process.
func (s *MemoryStore) SignedGetURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.blobs[ref]; !ok {
		return "", fmt.Errorf("%s: %w", ref, ErrBlobNotFound)
	}

	return "memory://" + ref, nil
}

// Delete removes the blob.
func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
	return nil
}

// Get returns the raw payload of the blob. Used by tests.
func (s *MemoryStore) Get(ref string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	return data, ok
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	return nil
}
