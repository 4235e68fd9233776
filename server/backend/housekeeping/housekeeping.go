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

package housekeeping

import (
	"context"
	"sync"
	"time"

	"github.com/margolab/margo/server/logging"
)

// Task is a unit of periodic work, such as evicting idle document states.
type Task func(ctx context.Context) error

// Housekeeping is the housekeeping service. It periodically runs registered
// tasks against the backend.
type Housekeeping struct {
	interval time.Duration

	mu    sync.Mutex
	tasks map[string]Task

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// New creates a new housekeeping instance.
func New(conf *Config) (*Housekeeping, error) {
	interval, err := conf.ParseInterval()
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())

	return &Housekeeping{
		interval:   interval,
		tasks:      make(map[string]Task),
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}, nil
}

// RegisterTask registers a named task to run every interval.
func (h *Housekeeping) RegisterTask(name string, task Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[name] = task
}

// Start starts the housekeeping service.
func (h *Housekeeping) Start() error {
	go h.run()
	return nil
}

// Stop stops the housekeeping service.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()

	return nil
}

// run is the housekeeping loop.
func (h *Housekeeping) run() {
	for {
		select {
		case <-time.After(h.interval):
		case <-h.ctx.Done():
			return
		}

		ctx := context.Background()
		for name, task := range h.snapshot() {
			start := time.Now()
			if err := task(ctx); err != nil {
				logging.From(ctx).Errorf("HSKP %s: %v", name, err)
				continue
			}

			if elapsed := time.Since(start); elapsed > h.interval {
				logging.From(ctx).Warnf("HSKP %s took %s", name, elapsed)
			}
		}
	}
}

func (h *Housekeeping) snapshot() map[string]Task {
	h.mu.Lock()
	defer h.mu.Unlock()

	tasks := make(map[string]Task, len(h.tasks))
	for name, task := range h.tasks {
		tasks[name] = task
	}
	return tasks
}
