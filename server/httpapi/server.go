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
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/logging"
	"github.com/margolab/margo/server/sync"
	"github.com/margolab/margo/server/users"
)

const gracefulTimeout = 10 * time.Second

// Server serves the REST API and the websocket synchronization endpoint.
type Server struct {
	conf       *Config
	httpServer *http.Server
}

// NewServer creates a new instance of Server.
func NewServer(
	conf *Config,
	be *backend.Backend,
	tokens *users.TokenManager,
	syncServer *sync.Server,
) *Server {
	return &Server{
		conf: conf,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", conf.Port),
			Handler:           NewHandler(be, tokens, syncServer),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start starts this server by opening the API port.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		logging.DefaultLogger().Error(err)
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		logging.DefaultLogger().Infof("serving API on %d", s.conf.Port)

		var err error
		if s.conf.CertFile != "" && s.conf.KeyFile != "" {
			err = s.httpServer.ServeTLS(lis, s.conf.CertFile, s.conf.KeyFile)
		} else {
			err = s.httpServer.Serve(lis)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Error(err)
		}
	}()

	return nil
}

// Shutdown shuts down this server. The graceful flag waits for in-flight
// requests to finish before closing.
func (s *Server) Shutdown(graceful bool) {
	if !graceful {
		if err := s.httpServer.Close(); err != nil {
			logging.DefaultLogger().Error(err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.DefaultLogger().Error(err)
	}
}
