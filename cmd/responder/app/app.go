/*
 * Copyright 2025 Carver Automation Corporation.
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


// Package app wires the responder components together and runs them until
// the process is signalled.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/tcpresponder/pkg/api"
	"github.com/carverauto/tcpresponder/pkg/cache"
	"github.com/carverauto/tcpresponder/pkg/cachesync"
	"github.com/carverauto/tcpresponder/pkg/cdc"
	"github.com/carverauto/tcpresponder/pkg/config"
	"github.com/carverauto/tcpresponder/pkg/db"
	"github.com/carverauto/tcpresponder/pkg/directory"
	"github.com/carverauto/tcpresponder/pkg/lifecycle"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
	"github.com/carverauto/tcpresponder/pkg/natsutil"
	"github.com/carverauto/tcpresponder/pkg/notifier"
	"github.com/carverauto/tcpresponder/pkg/responder"
	"github.com/carverauto/tcpresponder/pkg/version"
)

var errNoJetStream = errors.New("nats connection is not configured")

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// deps holds the shared connections the components are built from.
type deps struct {
	pool *pgxpool.Pool
	nc   *nats.Conn
	js   jetstream.JetStream
}

func (d *deps) close() {
	if d.nc != nil {
		d.nc.Close()
	}

	if d.pool != nil {
		d.pool.Close()
	}
}

// Run boots the responder using the provided options.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.ResponderConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "responder-main", cfg.Logging)
	if err != nil {
		return err
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			mainLogger.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}()

	if _, err := logger.InitializeTracing(ctx, cfg.Telemetry); err != nil {
		return err
	}

	if _, err := logger.InitializeMetrics(ctx, cfg.Telemetry); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		return err
	}

	mainLogger.Info().
		Str("version", version.GetFullVersion()).
		Interface("config", config.Sanitize(&cfg)).
		Msg("Starting tcpresponder")

	d, err := connect(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}
	defer d.close()

	services, err := buildServices(ctx, &cfg, d, mainLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunServices(ctx, mainLogger, services...)
}

func connect(ctx context.Context, cfg *models.ResponderConfig, log logger.Logger) (*deps, error) {
	d := &deps{}

	if cfg.Database != nil {
		pool, err := db.NewPool(ctx, cfg.Database, lifecycle.Child(log, "db"))
		if err != nil {
			return nil, err
		}

		d.pool = pool
	}

	if cfg.NATS != nil && cfg.NATS.URL != "" {
		nc, js, err := natsutil.Connect(ctx, cfg.NATS, lifecycle.Child(log, "nats"))
		if err != nil {
			d.close()

			return nil, err
		}

		d.nc = nc
		d.js = js
	}

	return d, nil
}

func buildDirectory(ctx context.Context, cfg *models.ResponderConfig, d *deps) (directory.Directory, error) {
	switch cfg.Directory.Backend {
	case models.DirectoryNATSKV:
		if d.js == nil {
			return nil, errNoJetStream
		}

		return directory.NewKVDirectory(ctx, d.js, cfg.Directory.Bucket)
	case models.DirectoryStatic:
		return directory.NewStatic(cfg.Directory.Devices), nil
	default:
		if cfg.Directory.EnsureSchema {
			if err := db.EnsureDirectorySchema(ctx, d.pool, cfg.Directory.Table); err != nil {
				return nil, err
			}
		}

		return db.NewDirectory(d.pool, cfg.Directory.Table), nil
	}
}

func buildServices(
	ctx context.Context, cfg *models.ResponderConfig, d *deps, log logger.Logger,
) (_ []lifecycle.Service, err error) {
	dir, err := buildDirectory(ctx, cfg, d)
	if err != nil {
		return nil, fmt.Errorf("failed to open device directory: %w", err)
	}

	dispatcher := notifier.NewDispatcher(dir, cfg.Notifier, lifecycle.Child(log, "notifier"))

	listener := responder.NewListener(cfg.Listener, dir, dispatcher, lifecycle.Child(log, "listener"))

	// Bind before anything else runs so a taken port fails startup.
	if err := listener.Listen(ctx); err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			listener.Stop()
		}
	}()

	services := []lifecycle.Service{dispatcher, listener}

	heartbeats := cache.New(time.Duration(cfg.Cache.TTL), cache.WithLogger(lifecycle.Child(log, "cache")))

	if d.pool == nil {
		return services, nil
	}

	loader := cachesync.NewLoader(db.NewHeartbeatReader(d.pool, cfg.Sync.MonitorRelation), cfg.Sync.Relation)

	if !cfg.Sync.Disabled {
		services = append(services, cachesync.NewPollAgent(
			heartbeats, loader, time.Duration(cfg.Sync.PollInterval), lifecycle.Child(log, "poll-sync"),
			cachesync.WithQueryTimeout(time.Duration(cfg.Sync.QueryTimeout)),
			cachesync.WithStartupDelay(time.Duration(cfg.Sync.StartupDelay)),
		))
	}

	streams, err := buildStreamAgents(ctx, cfg, d, heartbeats, log)
	if err != nil {
		return nil, err
	}

	services = append(services, streams...)

	if cfg.API.Enabled {
		services = append(services, api.NewServer(cfg.API, heartbeats, loader, lifecycle.Child(log, "api"),
			api.WithLoadTimeout(time.Duration(cfg.Sync.QueryTimeout))))
	}

	return services, nil
}

func buildStreamAgents(
	ctx context.Context, cfg *models.ResponderConfig, d *deps, c cachesync.Cache, log logger.Logger,
) ([]lifecycle.Service, error) {
	var agents []lifecycle.Service

	backoff := time.Duration(cfg.CDC.Backoff)

	if cfg.CDC.PGNotify.Enabled {
		if cfg.CDC.PGNotify.InstallTrigger {
			if err := cdc.InstallTrigger(ctx, d.pool, cfg.Sync.Relation, cfg.CDC.PGNotify.Channel); err != nil {
				return nil, err
			}
		}

		feed, err := cdc.NewPGNotifyFeed(cfg.Database, cfg.CDC.PGNotify.Channel, lifecycle.Child(log, "pg-notify"))
		if err != nil {
			return nil, err
		}

		agents = append(agents, cachesync.NewStreamAgent(feed, c, cfg.Sync.Relation, backoff,
			lifecycle.Child(log, "stream-sync")))
	}

	if cfg.CDC.JetStream.Enabled {
		if d.js == nil {
			return nil, errNoJetStream
		}

		feed, err := cdc.NewJetStreamFeed(d.js, cfg.CDC.JetStream, lifecycle.Child(log, "jetstream-feed"))
		if err != nil {
			return nil, err
		}

		agents = append(agents, cachesync.NewStreamAgent(feed, c, cfg.Sync.Relation, backoff,
			lifecycle.Child(log, "stream-sync")))
	}

	return agents, nil
}
