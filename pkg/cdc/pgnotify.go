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

package cdc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/tcpresponder/pkg/db"
	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const (
	pgNotifySource    = "pg_notify"
	pgCloseTimeout    = 5 * time.Second
	triggerNamePrefix = "tcpresponder_notify_"
)

// PGNotifyFeed listens on a Postgres notification channel over a dedicated
// connection. Pool connections cannot be used because LISTEN is bound to the
// session.
type PGNotifyFeed struct {
	connString string
	channel    string
	log        logger.Logger
}

var _ Feed = (*PGNotifyFeed)(nil)

func NewPGNotifyFeed(cfg *models.DatabaseConfig, channel string, log logger.Logger) (*PGNotifyFeed, error) {
	connString, err := db.ConnString(cfg)
	if err != nil {
		return nil, err
	}

	if channel == "" {
		channel = models.DefaultNotifyChannel
	}

	return &PGNotifyFeed{connString: connString, channel: channel, log: log}, nil
}

func (*PGNotifyFeed) Name() string { return pgNotifySource }

func (f *PGNotifyFeed) Subscribe(ctx context.Context) (Subscription, error) {
	conn, err := pgx.Connect(ctx, f.connString)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", db.ErrStoreUnavailable, err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		closeConn(conn)

		return nil, fmt.Errorf("%w: listen %s: %w", db.ErrStoreUnavailable, f.channel, err)
	}

	f.log.Debug().Str("channel", f.channel).Msg("Listening for heartbeat changes")

	subCtx, cancel := context.WithCancel(context.Background())

	return &pgSubscription{
		conn:   conn,
		log:    f.log,
		ctx:    subCtx,
		cancel: cancel,
	}, nil
}

type pgSubscription struct {
	// mu serialises use of conn; pgx connections are not goroutine safe.
	mu     sync.Mutex
	conn   *pgx.Conn
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *pgSubscription) Next(ctx context.Context) (models.ChangeEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.ctx.Err() != nil || s.conn == nil {
			return models.ChangeEvent{}, ErrFeedTerminated
		}

		n, err := s.conn.WaitForNotification(ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return models.ChangeEvent{}, ErrFeedTerminated
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.ChangeEvent{}, ctxErr
			}

			return models.ChangeEvent{}, fmt.Errorf("%w: %w", ErrFeedTerminated, err)
		}

		ev, skip, err := DecodeEvent([]byte(n.Payload), pgNotifySource)
		if err != nil {
			s.log.Warn().Err(err).Str("channel", n.Channel).Msg("Skipping undecodable change notification")

			continue
		}

		if skip {
			continue
		}

		return ev, nil
	}
}

func (s *pgSubscription) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	closeConn(s.conn)
	s.conn = nil

	return nil
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), pgCloseTimeout)
	defer cancel()

	_ = conn.Close(ctx)
}

// InstallTrigger creates a statement level trigger on relation that
// publishes {"relation","op"} on channel after every insert, update or
// delete.
func InstallTrigger(ctx context.Context, q db.Querier, relation, channel string) error {
	if relation == "" {
		return errNoRelation
	}

	if channel == "" {
		channel = models.DefaultNotifyChannel
	}

	fn := pgx.Identifier{triggerNamePrefix + relation}.Sanitize()
	table := pgx.Identifier{relation}.Sanitize()

	stmts := []string{
		fmt.Sprintf(`
			CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
			BEGIN
				PERFORM pg_notify(%s, json_build_object('relation', TG_TABLE_NAME, 'op', TG_OP)::text);
				RETURN NULL;
			END;
			$$ LANGUAGE plpgsql`, fn, quoteLiteral(channel)),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", fn, table),
		fmt.Sprintf(`
			CREATE TRIGGER %s
			AFTER INSERT OR UPDATE OR DELETE ON %s
			FOR EACH STATEMENT EXECUTE FUNCTION %s()`, fn, table, fn),
	}

	for _, stmt := range stmts {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: change trigger on %s: %w", db.ErrFailedToInit, relation, err)
		}
	}

	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

