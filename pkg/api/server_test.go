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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/cache"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

var watermark = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeLoader struct {
	mu    sync.Mutex
	rows  []models.HeartbeatRecord
	err   error
	calls int
}

func (f *fakeLoader) Load(context.Context) ([]models.HeartbeatRecord, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.err != nil {
		return nil, time.Time{}, f.err
	}

	return f.rows, watermark, nil
}

func newTestServer(cfg models.APIConfig, loader RowLoader) (*Server, *cache.HeartbeatCache) {
	c := cache.New(time.Minute)

	return NewServer(cfg, c, loader, logger.NewTestLogger()), c
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func TestHeartbeatsReadThrough(t *testing.T) {
	loader := &fakeLoader{rows: []models.HeartbeatRecord{
		{ID: 1, MonitorID: 10, Status: 1},
		{ID: 2, MonitorID: 10, Status: 0},
	}}
	s, c := newTestServer(models.APIConfig{}, loader)

	rr := get(t, s.Handler(), "/api/heartbeats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body HeartbeatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "store", body.Source)
	assert.Equal(t, 2, body.Count)
	assert.True(t, body.RefreshedAt.Equal(watermark))

	marker, ok := c.LastRefreshed()
	require.True(t, ok)
	assert.Equal(t, watermark, marker)

	rr = get(t, s.Handler(), "/api/heartbeats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "cache", body.Source)
	assert.Len(t, body.Records, 2)
	assert.Equal(t, 1, loader.calls)
}

func TestHeartbeatsStoreUnavailable(t *testing.T) {
	s, c := newTestServer(models.APIConfig{}, &fakeLoader{err: errors.New("connection refused")})

	rr := get(t, s.Handler(), "/api/heartbeats", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "heartbeat store unavailable", body["error"])

	_, ok := c.Get()
	assert.False(t, ok)
}

func TestHeartbeatsEmptyStore(t *testing.T) {
	s, _ := newTestServer(models.APIConfig{}, &fakeLoader{})

	rr := get(t, s.Handler(), "/api/heartbeats", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body HeartbeatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Records)
}

func TestStatusReportsCacheStats(t *testing.T) {
	s, c := newTestServer(models.APIConfig{}, &fakeLoader{})
	c.Set([]models.HeartbeatRecord{{ID: 1}}, watermark)

	rr := get(t, s.Handler(), "/api/heartbeats/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.True(t, stats.Present)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, "1m0s", stats.TTL)
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(models.APIConfig{APIKey: "secret"}, &fakeLoader{})

	rr := get(t, s.Handler(), "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Version)
	assert.NotEmpty(t, health.GoVersion)
	assert.Positive(t, health.Goroutines)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(0))
}

func TestAPIKeyProtectsHeartbeats(t *testing.T) {
	s, _ := newTestServer(models.APIConfig{APIKey: "secret"}, &fakeLoader{})

	rr := get(t, s.Handler(), "/api/heartbeats", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = get(t, s.Handler(), "/api/heartbeats", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(models.APIConfig{ListenAddr: "127.0.0.1:0"}, &fakeLoader{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	s, _ := newTestServer(models.APIConfig{ListenAddr: "256.0.0.1:bad"}, &fakeLoader{})

	err := s.Run(context.Background())
	require.Error(t, err)
}
