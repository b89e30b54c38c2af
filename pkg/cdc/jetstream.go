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
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/tcpresponder/pkg/logger"
	"github.com/carverauto/tcpresponder/pkg/models"
)

const jetStreamSource = "jetstream"

var errStreamRequired = errors.New("jetstream feed requires stream and subject")

// JetStreamFeed reads change envelopes, typically from a Debezium Server
// NATS JetStream sink, through an ephemeral ordered consumer. A subscription
// starts right after the stream's last sequence at Subscribe time, so every
// event published once Subscribe returns is delivered.
type JetStreamFeed struct {
	js      jetstream.JetStream
	stream  string
	subject string
	name    string
	log     logger.Logger
}

var _ Feed = (*JetStreamFeed)(nil)

func NewJetStreamFeed(js jetstream.JetStream, cfg models.JetStreamFeedConfig, log logger.Logger) (*JetStreamFeed, error) {
	if cfg.Stream == "" || cfg.Subject == "" {
		return nil, errStreamRequired
	}

	return &JetStreamFeed{
		js:      js,
		stream:  cfg.Stream,
		subject: cfg.Subject,
		name:    cfg.Consumer,
		log:     log,
	}, nil
}

func (*JetStreamFeed) Name() string { return jetStreamSource }

func (f *JetStreamFeed) Subscribe(ctx context.Context) (Subscription, error) {
	stream, err := f.js.Stream(ctx, f.stream)
	if err != nil {
		return nil, fmt.Errorf("%w: stream %s: %w", ErrFeedTerminated, f.stream, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stream info %s: %w", ErrFeedTerminated, f.stream, err)
	}

	startSeq := info.State.LastSeq + 1

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{f.subject},
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    startSeq,
	}

	if f.name != "" {
		cfg.NamePrefix = f.name
	}

	consumer, err := stream.OrderedConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: ordered consumer on %s: %w", ErrFeedTerminated, f.stream, err)
	}

	iter, err := consumer.Messages()
	if err != nil {
		return nil, fmt.Errorf("%w: consume %s: %w", ErrFeedTerminated, f.stream, err)
	}

	f.log.Debug().
		Str("stream", f.stream).
		Str("subject", f.subject).
		Uint64("start_seq", startSeq).
		Msg("Subscribed to change stream")

	return &jsSubscription{
		iter: iter,
		log:  f.log,
		done: make(chan struct{}),
	}, nil
}

type jsSubscription struct {
	// mu serialises Next; the iterator is single consumer.
	mu   sync.Mutex
	iter jetstream.MessagesContext
	log  logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func (s *jsSubscription) Next(ctx context.Context) (models.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stopping the iterator is the only way to unblock iter.Next.
	stop := context.AfterFunc(ctx, s.stop)
	defer stop()

	for {
		msg, err := s.iter.Next()
		if err != nil {
			select {
			case <-s.done:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return models.ChangeEvent{}, ctxErr
				}

				return models.ChangeEvent{}, ErrFeedTerminated
			default:
			}

			return models.ChangeEvent{}, fmt.Errorf("%w: %w", ErrFeedTerminated, err)
		}

		ev, skip, err := DecodeEvent(msg.Data(), jetStreamSource)
		if err != nil {
			s.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("Skipping undecodable change message")

			continue
		}

		if skip {
			continue
		}

		return ev, nil
	}
}

func (s *jsSubscription) stop() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.iter.Stop()
	})
}

func (s *jsSubscription) Close() error {
	s.stop()

	return nil
}
