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

package docstate

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for the document state manager.
type Config struct {
	// FlushInterval is how often dirty states are persisted.
	FlushInterval string `yaml:"FlushInterval"`

	// MaxFlushRetries is how many consecutive flush failures are tolerated
	// before the failure is escalated to the error log.
	MaxFlushRetries int `yaml:"MaxFlushRetries"`

	// MaxIdleTime is how long an unoccupied state stays in memory before
	// it is flushed and evicted by housekeeping.
	MaxIdleTime string `yaml:"MaxIdleTime"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.FlushInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--docstate-flush-interval" flag: %w`,
			c.FlushInterval,
			err,
		)
	}

	if c.MaxFlushRetries < 0 {
		return fmt.Errorf(
			`invalid argument %d for "--docstate-max-flush-retries" flag`,
			c.MaxFlushRetries,
		)
	}

	if _, err := time.ParseDuration(c.MaxIdleTime); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--docstate-max-idle-time" flag: %w`,
			c.MaxIdleTime,
			err,
		)
	}

	return nil
}

// ParseFlushInterval returns the flush interval duration.
func (c *Config) ParseFlushInterval() time.Duration {
	result, err := time.ParseDuration(c.FlushInterval)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse flush interval: %w", err)
		os.Exit(1)
	}

	return result
}

// ParseMaxIdleTime returns the max idle time duration.
func (c *Config) ParseMaxIdleTime() time.Duration {
	result, err := time.ParseDuration(c.MaxIdleTime)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse max idle time: %w", err)
		os.Exit(1)
	}

	return result
}
