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

package db

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const (
	defaultPort    = 5432
	defaultAppName = "tcpresponder"
)

// NewPool dials the configured Postgres server and returns a pgx pool.
func NewPool(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errDatabaseConfig
	}

	poolConfig, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize pool: %w", ErrStoreUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: ping: %w", ErrStoreUnavailable, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to Postgres")

	return pool, nil
}

func buildPoolConfig(cfg *models.DatabaseConfig) (*pgxpool.Config, error) {
	connURL, err := buildConnURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime)
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod)
	}

	return poolConfig, nil
}

// ConnString renders cfg as a libpq URL. The LISTEN/NOTIFY feed uses it to
// open its dedicated connection outside the pool.
func ConnString(cfg *models.DatabaseConfig) (string, error) {
	if cfg == nil {
		return "", errDatabaseConfig
	}

	u, err := buildConnURL(cfg)
	if err != nil {
		return "", err
	}

	return u.String(), nil
}

// buildConnURL renders the libpq URL. TLS material is passed as sslcert,
// sslkey and sslrootcert so pgx builds the client config itself; relative
// paths resolve under cert_dir.
func buildConnURL(cfg *models.DatabaseConfig) (*url.URL, error) {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode

	if cfg.TLS != nil {
		switch sslMode {
		case "":
			sslMode = "verify-full"
		case "disable":
			return nil, ErrTLSDisabled
		}

		resolve := func(path string) string {
			if path == "" || filepath.IsAbs(path) || cfg.CertDir == "" {
				return path
			}

			return filepath.Join(cfg.CertDir, path)
		}

		certFile, keyFile, caFile := resolve(cfg.TLS.CertFile), resolve(cfg.TLS.KeyFile), resolve(cfg.TLS.CAFile)
		if certFile == "" || keyFile == "" || caFile == "" {
			return nil, errTLSFilesRequired
		}

		query.Set("sslcert", certFile)
		query.Set("sslkey", keyFile)
		query.Set("sslrootcert", caFile)
	}

	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	appName := cfg.ApplicationName
	if appName == "" {
		appName = defaultAppName
	}

	query.Set("application_name", appName)

	for k, v := range cfg.ExtraRuntimeParams {
		if k == "" {
			continue
		}

		query.Set(k, v)
	}

	if cfg.StatementTimeout > 0 {
		query.Set("statement_timeout", strconv.FormatInt(time.Duration(cfg.StatementTimeout).Milliseconds(), 10))
	}

	connURL.RawQuery = query.Encode()

	return connURL, nil
}
