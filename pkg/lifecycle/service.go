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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/tcpresponder/pkg/logger"
)

// Service is a long-running component. Run blocks until ctx is cancelled or
// the component fails, and releases its resources before returning.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc struct {
	ServiceName string
	Fn          func(ctx context.Context) error
}

func (s ServiceFunc) Name() string { return s.ServiceName }

func (s ServiceFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// RunServices runs every service until SIGINT/SIGTERM, until ctx is
// cancelled, or until one of them fails. The first failure cancels the rest.
func RunServices(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for _, svc := range services {
		g.Go(func() error {
			log.Info().Str("service", svc.Name()).Msg("Starting service")

			err := svc.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("service", svc.Name()).Msg("Service failed")

				return fmt.Errorf("%s: %w", svc.Name(), err)
			}

			log.Info().Str("service", svc.Name()).Msg("Service stopped")

			return nil
		})
	}

	return g.Wait()
}
