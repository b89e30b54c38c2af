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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// Debezium op codes that do not describe a mutation.
const (
	debeziumSnapshotRead = "r"
	debeziumTruncate     = "t"
)

type plainEvent struct {
	Relation string `json:"relation"`
	Op       string `json:"op"`
}

type debeziumSource struct {
	Table  string `json:"table"`
	Schema string `json:"schema,omitempty"`
}

type debeziumPayload struct {
	Op     string          `json:"op"`
	Source *debeziumSource `json:"source"`
}

// debeziumEnvelope covers both converter layouts: with schemas enabled the
// change sits under "payload", without them it is the top level object.
type debeziumEnvelope struct {
	Payload *debeziumPayload `json:"payload"`
	debeziumPayload
}

// DecodeEvent parses a change payload. It accepts the plain
// {"relation","op"} form emitted by the Postgres trigger and Debezium change
// envelopes. skip is true for payloads that carry no mutation, such as
// Debezium snapshot reads.
func DecodeEvent(data []byte, source string) (ev models.ChangeEvent, skip bool, err error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return models.ChangeEvent{}, false, errEmptyPayload
	}

	var env debeziumEnvelope

	if err := json.Unmarshal(data, &env); err != nil {
		return models.ChangeEvent{}, false, fmt.Errorf("decode change payload: %w", err)
	}

	payload := &env.debeziumPayload
	if env.Payload != nil {
		payload = env.Payload
	}

	if payload.Source != nil {
		return decodeDebezium(payload, source)
	}

	var plain plainEvent

	if err := json.Unmarshal(data, &plain); err != nil {
		return models.ChangeEvent{}, false, fmt.Errorf("decode change payload: %w", err)
	}

	if plain.Relation == "" {
		return models.ChangeEvent{}, false, errNoRelation
	}

	op, err := models.ParseChangeOperation(plain.Op)
	if err != nil {
		return models.ChangeEvent{}, false, err
	}

	return models.ChangeEvent{Relation: plain.Relation, Operation: op, Source: source}, false, nil
}

func decodeDebezium(payload *debeziumPayload, source string) (models.ChangeEvent, bool, error) {
	if payload.Source.Table == "" {
		return models.ChangeEvent{}, false, errNoRelation
	}

	switch strings.ToLower(payload.Op) {
	case debeziumSnapshotRead:
		return models.ChangeEvent{}, true, nil
	case debeziumTruncate:
		// a truncate removes every row, which invalidates like a delete
		return models.ChangeEvent{Relation: payload.Source.Table, Operation: models.OpDelete, Source: source}, false, nil
	}

	op, err := models.ParseChangeOperation(payload.Op)
	if err != nil {
		return models.ChangeEvent{}, false, err
	}

	return models.ChangeEvent{Relation: payload.Source.Table, Operation: op, Source: source}, false, nil
}
