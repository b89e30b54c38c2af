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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

func TestBuildConnURLDefaultsSSLModeDisable(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&models.DatabaseConfig{Host: "pg", Database: "kuma", Username: "responder", Password: "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, "pg:5432", u.Host)
	assert.Equal(t, "/kuma", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "tcpresponder", u.Query().Get("application_name"))

	password, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "s3cret", password)
}

func TestBuildConnURLDefaultsSSLModeVerifyFullWithTLS(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&models.DatabaseConfig{
		Host:     "pg",
		Database: "kuma",
		TLS:      &models.TLSConfig{CertFile: "client.crt", KeyFile: "client.key", CAFile: "ca.crt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "verify-full", u.Query().Get("sslmode"))
}

func TestBuildConnURLRejectsTLSWithSSLModeDisable(t *testing.T) {
	t.Parallel()

	_, err := buildConnURL(&models.DatabaseConfig{
		Host:     "pg",
		Database: "kuma",
		SSLMode:  "disable",
		TLS:      &models.TLSConfig{CertFile: "client.crt", KeyFile: "client.key", CAFile: "ca.crt"},
	})
	require.ErrorIs(t, err, ErrTLSDisabled)
}

func TestBuildConnURLTLSPathsResolveViaCertDir(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&models.DatabaseConfig{
		Host:     "pg",
		Database: "kuma",
		CertDir:  "/etc/tcpresponder/pg",
		TLS:      &models.TLSConfig{CertFile: "client.crt", KeyFile: "client.key", CAFile: "/abs/ca.crt"},
	})
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/etc/tcpresponder/pg/client.crt", q.Get("sslcert"))
	assert.Equal(t, "/etc/tcpresponder/pg/client.key", q.Get("sslkey"))
	assert.Equal(t, "/abs/ca.crt", q.Get("sslrootcert"))
}

func TestBuildConnURLRuntimeParams(t *testing.T) {
	t.Parallel()

	u, err := buildConnURL(&models.DatabaseConfig{
		Host:               "pg",
		Port:               6432,
		Database:           "kuma",
		StatementTimeout:   models.Duration(3 * time.Second),
		ExtraRuntimeParams: map[string]string{"search_path": "kuma", "": "ignored"},
	})
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "pg:6432", u.Host)
	assert.Equal(t, "3000", q.Get("statement_timeout"))
	assert.Equal(t, "kuma", q.Get("search_path"))
	assert.False(t, q.Has(""))
}

func TestBuildPoolConfigLimits(t *testing.T) {
	t.Parallel()

	cfg, err := buildPoolConfig(&models.DatabaseConfig{
		Host:            "pg",
		Database:        "kuma",
		MaxConnections:  7,
		MinConnections:  2,
		MaxConnLifetime: models.Duration(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
}

func TestNewPoolRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewPool(context.Background(), nil, logger.NewTestLogger())
	require.ErrorIs(t, err, errDatabaseConfig)

	_, err = ConnString(nil)
	require.ErrorIs(t, err, errDatabaseConfig)
}
