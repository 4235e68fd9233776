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

// Package locker provides a mutex keyed by name. Locks for distinct keys are
// independent; a lock's bookkeeping is released once no goroutine waits on it.
package locker

import (
	"errors"
	"sync"
)

// ErrNoSuchLock is returned when unlocking a key that is not locked.
var ErrNoSuchLock = errors.New("no such lock")

type lockEntry struct {
	mu      sync.Mutex
	waiters int
}

// Locker is a set of mutexes addressed by key.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{
		locks: make(map[string]*lockEntry),
	}
}

// Lock locks the mutex of the given key, creating it if absent.
func (l *Locker) Lock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.waiters++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock unlocks the mutex of the given key. The entry is dropped once the
// last waiter releases it.
func (l *Locker) Unlock(key string) error {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		l.mu.Unlock()
		return ErrNoSuchLock
	}

	entry.waiters--
	if entry.waiters <= 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
	return nil
}
