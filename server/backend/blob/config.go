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

package blob

import "fmt"

// Config is the configuration for the blob store.
type Config struct {
	// Endpoint is the address of the S3-compatible object storage. When
	// empty, blobs are kept in process memory.
	Endpoint string `yaml:"Endpoint"`

	// Bucket is the bucket blobs are stored in.
	Bucket string `yaml:"Bucket"`

	// AccessKey is the access key of the object storage.
	AccessKey string `yaml:"AccessKey"`

	// SecretKey is the secret key of the object storage.
	SecretKey string `yaml:"SecretKey"`

	// UseSSL connects to the object storage over TLS.
	UseSSL bool `yaml:"UseSSL"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return nil
	}

	if c.Bucket == "" {
		return fmt.Errorf(`invalid argument "" for "--blob-bucket" flag`)
	}

	return nil
}
