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
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/carverauto/tcpresponder/pkg/version"
)

const healthProbeTimeout = 2 * time.Second

// HealthResponse is the body of GET /healthz. Resource fields are omitted
// when the host does not expose them.
type HealthResponse struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	GoVersion         string  `json:"go_version"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	Goroutines        int     `json:"goroutines"`
	RSSBytes          uint64  `json:"rss_bytes,omitempty"`
	OpenFiles         int32   `json:"open_files,omitempty"`
	HostMemoryUsedPct float64 `json:"host_memory_used_percent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	s.writeJSON(w, http.StatusOK, s.health(ctx))
}

func (s *Server) health(ctx context.Context) HealthResponse {
	build := version.Get()

	resp := HealthResponse{
		Status:        "ok",
		Version:       version.GetFullVersion(),
		GoVersion:     build.GoVersion,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err != nil { //nolint:gosec // pid fits in int32
		s.log.Debug().Err(err).Msg("Process stats unavailable")
	} else {
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
			resp.RSSBytes = memInfo.RSS
		}

		if fds, err := proc.NumFDsWithContext(ctx); err == nil {
			resp.OpenFiles = fds
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.log.Debug().Err(err).Msg("Host memory stats unavailable")
	} else {
		resp.HostMemoryUsedPct = vm.UsedPercent
	}

	return resp
}
