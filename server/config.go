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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/backend/blob"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/database/mongo"
	"github.com/margolab/margo/server/backend/docstate"
	"github.com/margolab/margo/server/backend/housekeeping"
	"github.com/margolab/margo/server/httpapi"
	"github.com/margolab/margo/server/profiling"
	"github.com/margolab/margo/server/sync"
)

// Below are the values of the default values of Margo config.
const (
	DefaultAPIPort       = 8080
	DefaultProfilingPort = 8081

	DefaultHousekeepingInterval = 30 * time.Second

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoMargoDatabase     = "margo-meta"

	DefaultBlobBucket = "margo-blobs"

	DefaultKafkaTopic = "doc-events"

	DefaultAdminUser     = "admin"
	DefaultAdminPassword = "admin"
	DefaultSecretKey     = "margo-secret"

	DefaultAuthTokenDuration = 7 * 24 * time.Hour
	DefaultRoomMemberLimit   = 100

	DefaultDocStateFlushInterval   = 5 * time.Second
	DefaultDocStateMaxFlushRetries = 3
	DefaultDocStateMaxIdleTime     = 10 * time.Minute

	DefaultSyncIdleTimeout    = 5 * time.Minute
	DefaultSyncMaxMessageSize = 1 << 20

	DefaultHostname = ""
)

// Config is the configuration for creating a Margo instance.
type Config struct {
	API          *httpapi.Config      `yaml:"API"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	DocState     *docstate.Config     `yaml:"DocState"`
	Sync         *sync.Config         `yaml:"Sync"`
	Mongo        *mongo.Config        `yaml:"Mongo"`
	Blob         *blob.Config         `yaml:"Blob"`
	Kafka        *broker.Config       `yaml:"Kafka"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultAPIPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// APIAddr returns the API address.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("localhost:%d", c.API.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if err := c.DocState.Validate(); err != nil {
		return err
	}

	if err := c.Sync.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if c.Kafka != nil {
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.API == nil {
		c.API = &httpapi.Config{}
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping == nil {
		c.Housekeeping = &housekeeping.Config{}
	}
	if c.Housekeeping.Interval == "" {
		c.Housekeeping.Interval = DefaultHousekeepingInterval.String()
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.AdminUser == "" {
		c.Backend.AdminUser = DefaultAdminUser
	}
	if c.Backend.AdminPassword == "" {
		c.Backend.AdminPassword = DefaultAdminPassword
	}
	if c.Backend.SecretKey == "" {
		c.Backend.SecretKey = DefaultSecretKey
	}
	if c.Backend.AuthTokenDuration == "" {
		c.Backend.AuthTokenDuration = DefaultAuthTokenDuration.String()
	}
	if c.Backend.RoomMemberLimit == 0 {
		c.Backend.RoomMemberLimit = DefaultRoomMemberLimit
	}

	if c.DocState == nil {
		c.DocState = &docstate.Config{}
	}
	if c.DocState.FlushInterval == "" {
		c.DocState.FlushInterval = DefaultDocStateFlushInterval.String()
	}
	if c.DocState.MaxFlushRetries == 0 {
		c.DocState.MaxFlushRetries = DefaultDocStateMaxFlushRetries
	}
	if c.DocState.MaxIdleTime == "" {
		c.DocState.MaxIdleTime = DefaultDocStateMaxIdleTime.String()
	}

	if c.Sync == nil {
		c.Sync = &sync.Config{}
	}
	if c.Sync.IdleTimeout == "" {
		c.Sync.IdleTimeout = DefaultSyncIdleTimeout.String()
	}
	if c.Sync.MaxMessageSize == 0 {
		c.Sync.MaxMessageSize = DefaultSyncMaxMessageSize
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}
		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}
		if c.Mongo.MargoDatabase == "" {
			c.Mongo.MargoDatabase = DefaultMongoMargoDatabase
		}
		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}

	if c.Blob != nil && c.Blob.Endpoint != "" {
		if c.Blob.Bucket == "" {
			c.Blob.Bucket = DefaultBlobBucket
		}
	}

	if c.Kafka != nil && c.Kafka.Addresses != "" {
		if c.Kafka.Topic == "" {
			c.Kafka.Topic = DefaultKafkaTopic
		}
	}
}

func newConfig(port int, profilingPort int) *Config {
	conf := &Config{
		API: &httpapi.Config{
			Port: port,
		},
		Profiling: &profiling.Config{
			Port: profilingPort,
		},
	}
	conf.ensureDefaultValue()
	return conf
}
