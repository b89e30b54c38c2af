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


package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

func staticConfig() *models.ResponderConfig {
	cfg := &models.ResponderConfig{
		Listener: models.ListenerConfig{ListenAddr: "127.0.0.1:0"},
		Directory: models.DirectoryConfig{
			Backend: models.DirectoryStatic,
			Devices: []models.DeviceIdentity{{Address: "127.0.0.1", DeviceName: "loopback"}},
		},
		Sync: models.SyncConfig{Disabled: true},
	}
	cfg.ApplyDefaults()

	return cfg
}

func TestBuildServicesStaticDirectory(t *testing.T) {
	cfg := staticConfig()
	require.NoError(t, cfg.Validate())

	services, err := buildServices(context.Background(), cfg, &deps{}, logger.NewTestLogger())
	require.NoError(t, err)

	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name())
	}

	assert.Equal(t, []string{"notifier", "listener"}, names)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, len(services))

	for _, svc := range services {
		go func() { errCh <- svc.Run(ctx) }()
	}

	cancel()

	for range services {
		select {
		case err := <-errCh:
			if err != nil {
				assert.ErrorIs(t, err, context.Canceled)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("service did not stop")
		}
	}
}

func TestBuildServicesPortInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = taken.Close() }()

	cfg := staticConfig()
	cfg.Listener.ListenAddr = taken.Addr().String()

	_, err = buildServices(context.Background(), cfg, &deps{}, logger.NewTestLogger())
	require.Error(t, err)
}

func TestBuildDirectoryNATSWithoutConnection(t *testing.T) {
	cfg := staticConfig()
	cfg.Directory.Backend = models.DirectoryNATSKV
	cfg.Directory.Bucket = "devices"

	_, err := buildDirectory(context.Background(), cfg, &deps{})
	require.ErrorIs(t, err, errNoJetStream)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responder.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"directory":{"backend":"ldap"}}`), 0o600))

	err := Run(context.Background(), Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
