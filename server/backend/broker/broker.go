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

// Package broker publishes document lifecycle events to an external message
// broker for downstream consumers such as mail or audit pipelines.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/logging"
)

// Message represents a message that can be sent to the message broker.
type Message interface {
	Marshal() ([]byte, error)
}

// DocEventMessage represents a document lifecycle event: creation, rename,
// deletion, version archival and restoration.
type DocEventMessage struct {
	EventType string    `json:"event_type"`
	DocID     types.ID  `json:"doc_id"`
	Actor     types.ID  `json:"actor"`
	Title     string    `json:"title,omitempty"`
	Version   int       `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GrantEventMessage represents a permission change on a document.
type GrantEventMessage struct {
	EventType string     `json:"event_type"`
	DocID     types.ID   `json:"doc_id"`
	Actor     types.ID   `json:"actor"`
	Subject   types.ID   `json:"subject"`
	Role      types.Role `json:"role,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Marshal marshals the document event message to JSON.
func (m DocEventMessage) Marshal() ([]byte, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	return encoded, nil
}

// Marshal marshals the grant event message to JSON.
func (m GrantEventMessage) Marshal() ([]byte, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	return encoded, nil
}

// Broker is an interface for the message broker.
type Broker interface {
	Produce(ctx context.Context, msg Message) error
	Close() error
}

// Ensure creates a message broker based on the given configuration. If the
// configuration is nil or invalid, it returns a DummyBroker so that callers
// can produce without nil checks.
func Ensure(conf *Config) Broker {
	if conf == nil {
		return &DummyBroker{}
	}

	if err := conf.Validate(); err != nil {
		logging.DefaultLogger().Warnf("invalid kafka configuration: %v", err)
		return &DummyBroker{}
	}

	logging.DefaultLogger().Infof(
		"connecting to kafka: %s, topic: %s",
		conf.Addresses,
		conf.Topic,
	)

	return newKafkaBroker(conf.SplitAddresses(), conf.Topic)
}
