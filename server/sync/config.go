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

package sync

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for the synchronization endpoint.
type Config struct {
	// IdleTimeout is how long a session may stay silent before it is
	// treated as disconnected.
	IdleTimeout string `yaml:"IdleTimeout"`

	// MaxMessageSize is the maximum size of an inbound message in bytes.
	MaxMessageSize int64 `yaml:"MaxMessageSize"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.IdleTimeout); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--sync-idle-timeout" flag: %w`,
			c.IdleTimeout,
			err,
		)
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf(
			`invalid argument %d for "--sync-max-message-size" flag`,
			c.MaxMessageSize,
		)
	}

	return nil
}

// ParseIdleTimeout returns the idle timeout duration.
func (c *Config) ParseIdleTimeout() time.Duration {
	result, err := time.ParseDuration(c.IdleTimeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse idle timeout: %w", err)
		os.Exit(1)
	}

	return result
}
