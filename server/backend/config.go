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

package backend

import (
	"fmt"
	"os"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// AdminUser is the name of the default admin user.
	AdminUser string `yaml:"AdminUser"`

	// AdminPassword is the password of the default admin user.
	AdminPassword string `yaml:"AdminPassword"`

	// UseDefaultUser determines whether to ensure the default admin user on
	// startup.
	UseDefaultUser bool `yaml:"UseDefaultUser"`

	// SecretKey is the secret key that signs session tokens.
	SecretKey string `yaml:"SecretKey"`

	// AuthTokenDuration is how long an issued session token stays valid.
	AuthTokenDuration string `yaml:"AuthTokenDuration"`

	// RoomMemberLimit is the maximum number of sessions joined to one
	// document. Zero means unlimited.
	RoomMemberLimit int `yaml:"RoomMemberLimit"`

	// Hostname is the hostname of the server.
	Hostname string `yaml:"Hostname"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.AuthTokenDuration); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--backend-auth-token-duration" flag: %w`,
			c.AuthTokenDuration,
			err,
		)
	}

	if c.RoomMemberLimit < 0 {
		return fmt.Errorf(
			`invalid argument %d for "--backend-room-member-limit" flag`,
			c.RoomMemberLimit,
		)
	}

	return nil
}

// ParseAuthTokenDuration returns the auth token duration.
func (c *Config) ParseAuthTokenDuration() time.Duration {
	result, err := time.ParseDuration(c.AuthTokenDuration)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse auth token duration: %w", err)
		os.Exit(1)
	}

	return result
}
