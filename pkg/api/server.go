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

// Package api serves the cached heartbeat view over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/singleflight"

	"github.com/carverauto/tcpresponder/pkg/cache"
	srHttp "github.com/carverauto/tcpresponder/pkg/http"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const (
	sourceCache = "cache"
	sourceStore = "store"

	defaultLoadTimeout     = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// HeartbeatCache is the cache surface the API reads and repopulates.
type HeartbeatCache interface {
	Get() (*models.CacheSnapshot, bool)
	Set(records []models.HeartbeatRecord, watermark time.Time) *models.CacheSnapshot
	Stats() cache.Stats
}

// RowLoader reads the heartbeat relation from the system of record.
type RowLoader interface {
	Load(ctx context.Context) ([]models.HeartbeatRecord, time.Time, error)
}

// HeartbeatsResponse is the body of GET /api/heartbeats.
type HeartbeatsResponse struct {
	Source      string                   `json:"source"`
	RefreshedAt time.Time                `json:"refreshed_at"`
	ExpiresAt   time.Time                `json:"expires_at"`
	Count       int                      `json:"count"`
	Records     []models.HeartbeatRecord `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the read API.
type Server struct {
	router      *mux.Router
	cache       HeartbeatCache
	loader      RowLoader
	config      models.APIConfig
	loadTimeout time.Duration
	log         logger.Logger
	started     time.Time

	// loads collapses concurrent cache misses into one store read.
	loads singleflight.Group
}

func WithLoadTimeout(d time.Duration) func(*Server) {
	return func(s *Server) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

func NewServer(config models.APIConfig, c HeartbeatCache, loader RowLoader, log logger.Logger, options ...func(*Server)) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		cache:       c,
		loader:      loader,
		config:      config,
		loadTimeout: defaultLoadTimeout,
		log:         log,
		started:     time.Now(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return srHttp.CommonMiddleware(next, s.config.CORS, s.log)
	})

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(srHttp.APIKeyMiddleware(s.config.APIKey, s.log))

	protected.HandleFunc("/heartbeats", s.handleHeartbeats).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/heartbeats/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (*Server) Name() string { return "api" }

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str("address", s.config.ListenAddr).Msg("Starting read API")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("read api: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("read api shutdown: %w", err)
	}

	s.log.Info().Msg("Read API stopped")

	return nil
}

// handleHeartbeats serves from the cache and falls back to the store on a
// miss, repopulating the cache with the rows it read.
func (s *Server) handleHeartbeats(w http.ResponseWriter, r *http.Request) {
	if snapshot, ok := s.cache.Get(); ok {
		s.writeJSON(w, http.StatusOK, newHeartbeatsResponse(sourceCache, snapshot))
		return
	}

	v, err, _ := s.loads.Do("heartbeats", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.loadTimeout)
		defer cancel()

		rows, watermark, err := s.loader.Load(ctx)
		if err != nil {
			return nil, err
		}

		return s.cache.Set(rows, watermark), nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load heartbeats from store")
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "heartbeat store unavailable"})

		return
	}

	snapshot, ok := v.(*models.CacheSnapshot)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unexpected load result"})
		return
	}

	s.writeJSON(w, http.StatusOK, newHeartbeatsResponse(sourceStore, snapshot))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func newHeartbeatsResponse(source string, snapshot *models.CacheSnapshot) HeartbeatsResponse {
	return HeartbeatsResponse{
		Source:      source,
		RefreshedAt: snapshot.RefreshedAt,
		ExpiresAt:   snapshot.ExpiresAt,
		Count:       snapshot.Len(),
		Records:     snapshot.Records,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
