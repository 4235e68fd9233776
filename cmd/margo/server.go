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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/margolab/margo/server"
	"github.com/margolab/margo/server/backend/blob"
	"github.com/margolab/margo/server/backend/broker"
	"github.com/margolab/margo/server/backend/database/mongo"
	"github.com/margolab/margo/server/logging"
)

var gracefulTimeout = 10 * time.Second

var (
	flagConfPath string
	flagLogLevel string

	authTokenDuration    time.Duration
	housekeepingInterval time.Duration
	flushInterval        time.Duration
	maxIdleTime          time.Duration
	syncIdleTimeout      time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoMargoDatabase     string
	mongoPingTimeout       time.Duration

	blobEndpoint  string
	blobBucket    string
	blobAccessKey string
	blobSecretKey string
	blobUseSSL    bool

	kafkaAddresses string
	kafkaTopic     string

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start Margo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Backend.AuthTokenDuration = authTokenDuration.String()
			conf.Housekeeping.Interval = housekeepingInterval.String()
			conf.DocState.FlushInterval = flushInterval.String()
			conf.DocState.MaxIdleTime = maxIdleTime.String()
			conf.Sync.IdleTimeout = syncIdleTimeout.String()

			if mongoConnectionURI != "" {
				conf.Mongo = &mongo.Config{
					ConnectionURI:     mongoConnectionURI,
					ConnectionTimeout: mongoConnectionTimeout.String(),
					MargoDatabase:     mongoMargoDatabase,
					PingTimeout:       mongoPingTimeout.String(),
				}
			}

			if blobEndpoint != "" {
				conf.Blob = &blob.Config{
					Endpoint:  blobEndpoint,
					Bucket:    blobBucket,
					AccessKey: blobAccessKey,
					SecretKey: blobSecretKey,
					UseSSL:    blobUseSSL,
				}
			}

			if kafkaAddresses != "" {
				conf.Kafka = &broker.Config{
					Addresses: kafkaAddresses,
					Topic:     kafkaTopic,
				}
			}

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			m, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := m.Start(); err != nil {
				return err
			}

			if code := handleSignal(m); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(m *server.Margo) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-m.ShutdownCh():
		// margo is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := m.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.API.Port,
		"api-port",
		server.DefaultAPIPort,
		"API port",
	)
	cmd.Flags().StringVar(
		&conf.API.CertFile,
		"api-cert-file",
		"",
		"API certification file's path",
	)
	cmd.Flags().StringVar(
		&conf.API.KeyFile,
		"api-key-file",
		"",
		"API key file's path",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().DurationVar(
		&housekeepingInterval,
		"housekeeping-interval",
		server.DefaultHousekeepingInterval,
		"Housekeeping interval between runs",
	)
	cmd.Flags().StringVar(
		&conf.Backend.AdminUser,
		"admin-user",
		server.DefaultAdminUser,
		"The name of the default admin user, who has full permissions.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.AdminPassword,
		"admin-password",
		server.DefaultAdminPassword,
		"The password of the default admin.",
	)
	cmd.Flags().BoolVar(
		&conf.Backend.UseDefaultUser,
		"use-default-user",
		false,
		"Whether to create the default admin user at startup.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.SecretKey,
		"secret-key",
		server.DefaultSecretKey,
		"The secret key for signing authentication tokens.",
	)
	cmd.Flags().DurationVar(
		&authTokenDuration,
		"auth-token-duration",
		server.DefaultAuthTokenDuration,
		"The duration of the authentication token.",
	)
	cmd.Flags().IntVar(
		&conf.Backend.RoomMemberLimit,
		"room-member-limit",
		server.DefaultRoomMemberLimit,
		"Maximum number of concurrent members per document room.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Margo Server Hostname",
	)
	cmd.Flags().DurationVar(
		&flushInterval,
		"flush-interval",
		server.DefaultDocStateFlushInterval,
		"Interval between flushes of dirty document states.",
	)
	cmd.Flags().IntVar(
		&conf.DocState.MaxFlushRetries,
		"max-flush-retries",
		server.DefaultDocStateMaxFlushRetries,
		"Number of consecutive flush failures tolerated before escalation.",
	)
	cmd.Flags().DurationVar(
		&maxIdleTime,
		"max-idle-time",
		server.DefaultDocStateMaxIdleTime,
		"Time without access after which a loaded document is evicted.",
	)
	cmd.Flags().DurationVar(
		&syncIdleTimeout,
		"sync-idle-timeout",
		server.DefaultSyncIdleTimeout,
		"Time without frames after which a sync connection is closed.",
	)
	cmd.Flags().Int64Var(
		&conf.Sync.MaxMessageSize,
		"sync-max-message-size",
		server.DefaultSyncMaxMessageSize,
		"Maximum size of an inbound sync frame in bytes.",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoMargoDatabase,
		"mongo-margo-database",
		server.DefaultMongoMargoDatabase,
		"Mongo DB's database name for Margo",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&blobEndpoint,
		"blob-endpoint",
		"",
		"S3-compatible blob storage endpoint",
	)
	cmd.Flags().StringVar(
		&blobBucket,
		"blob-bucket",
		server.DefaultBlobBucket,
		"Blob storage bucket name",
	)
	cmd.Flags().StringVar(
		&blobAccessKey,
		"blob-access-key",
		"",
		"Blob storage access key",
	)
	cmd.Flags().StringVar(
		&blobSecretKey,
		"blob-secret-key",
		"",
		"Blob storage secret key",
	)
	cmd.Flags().BoolVar(
		&blobUseSSL,
		"blob-use-ssl",
		false,
		"Use TLS when connecting to blob storage",
	)
	cmd.Flags().StringVar(
		&kafkaAddresses,
		"kafka-addresses",
		"",
		"Comma-separated list of Kafka addresses",
	)
	cmd.Flags().StringVar(
		&kafkaTopic,
		"kafka-topic",
		server.DefaultKafkaTopic,
		"Kafka topic name to produce document events",
	)

	rootCmd.AddCommand(cmd)
}
