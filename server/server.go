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

// Package server provides the Margo server which is the main entry point of
// the Margo system. The server wires the backend to the API and profiling
// surfaces.
package server

import (
	gosync "sync"

	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/httpapi"
	"github.com/margolab/margo/server/profiling"
	"github.com/margolab/margo/server/profiling/prometheus"
	"github.com/margolab/margo/server/sync"
	"github.com/margolab/margo/server/users"
)

// Margo is a server of Margo. The server receives deltas from clients,
// stores them in the repository, and propagates them to the clients
// subscribed to the document.
type Margo struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	apiServer       *httpapi.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Margo.
func New(conf *Config) (*Margo, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Mongo,
		conf.Blob,
		conf.DocState,
		conf.Housekeeping,
		metrics,
		conf.Kafka,
	)
	if err != nil {
		return nil, err
	}

	tokens := users.NewTokenManager(
		conf.Backend.SecretKey,
		conf.Backend.ParseAuthTokenDuration(),
	)
	syncServer := sync.NewServer(conf.Sync, be, tokens)
	apiServer := httpapi.NewServer(conf.API, be, tokens, syncServer)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Margo{
		conf:            conf,
		backend:         be,
		apiServer:       apiServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the API port.
func (r *Margo) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.apiServer.Start()
}

// Shutdown shuts down this Margo server.
func (r *Margo) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.apiServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Margo) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// APIAddr returns the address of the API.
func (r *Margo) APIAddr() string {
	return r.conf.APIAddr()
}
