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

package directory

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func newKVDirectory(t *testing.T) (*KVDirectory, jetstream.JetStream) {
	t.Helper()

	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	dir, err := NewKVDirectory(context.Background(), js, "devices")
	require.NoError(t, err)

	return dir, js
}

func TestKVDirectoryLookup(t *testing.T) {
	dir, _ := newKVDirectory(t)
	ctx := context.Background()

	require.NoError(t, dir.Put(ctx, models.DeviceIdentity{
		Address:              "10.0.0.5",
		DeviceName:           "fw-01",
		Organization:         "Acme",
		Location:             "HQ",
		NotificationEndpoint: "http://mon/x?msg=OK",
	}))

	res := dir.Lookup(ctx, "10.0.0.5")
	require.Equal(t, models.LookupFound, res.Status)
	assert.Equal(t, "fw-01", res.Identity.DeviceName)
	assert.Equal(t, "HQ", res.Identity.Location)

	endpoint, err := dir.NotificationEndpoint(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "http://mon/x?msg=OK", endpoint)

	res = dir.Lookup(ctx, "10.0.0.9")
	assert.Equal(t, models.LookupNotFound, res.Status)

	endpoint, err = dir.NotificationEndpoint(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.Empty(t, endpoint)
}

func TestKVDirectoryCorruptValueIsLookupFailure(t *testing.T) {
	dir, js := newKVDirectory(t)
	ctx := context.Background()

	kv, err := js.KeyValue(ctx, "devices")
	require.NoError(t, err)

	_, err = kv.Put(ctx, Key("10.0.0.7"), []byte("{not json"))
	require.NoError(t, err)

	res := dir.Lookup(ctx, "10.0.0.7")
	require.Equal(t, models.LookupFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrLookupFailed)
}

func TestKVDirectoryUnreachableIsLookupFailure(t *testing.T) {
	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL(), nats.NoReconnect())
	require.NoError(t, err)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	dir, err := NewKVDirectory(context.Background(), js, "devices")
	require.NoError(t, err)

	nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := dir.Lookup(ctx, "10.0.0.5")
	require.Equal(t, models.LookupFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrLookupFailed)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "10_0_0_5", Key("10.0.0.5"))
	assert.Equal(t, "2001_db8__1", Key("2001:db8::1"))
}
