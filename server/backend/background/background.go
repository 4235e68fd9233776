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

// Package background tracks the long-running goroutines of the backend so
// that shutdown can wait for them to drain.
package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/profiling/prometheus"
)

// Background runs server goroutines and waits for them on Close.
type Background struct {
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	nextID  atomic.Int64
	metrics *prometheus.Metrics
}

// New creates a new background service.
func New(metrics *prometheus.Metrics) *Background {
	return &Background{
		metrics: metrics,
	}
}

// AttachGoroutine runs f in a tracked goroutine with its own named logger.
// Attaching after Close is a no-op.
func (b *Background) AttachGoroutine(f func(ctx context.Context), taskType string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logging.DefaultLogger().Warnf("background closed; dropping %s goroutine", taskType)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	logger := logging.New(fmt.Sprintf("bg-%d", b.nextID.Add(1)))
	b.metrics.AddBackgroundGoroutines(taskType)

	go func() {
		defer func() {
			b.metrics.RemoveBackgroundGoroutines(taskType)
			b.wg.Done()
		}()
		f(logging.With(context.Background(), logger))
	}()
}

// Close stops accepting goroutines and waits for the running ones to exit.
func (b *Background) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
}
