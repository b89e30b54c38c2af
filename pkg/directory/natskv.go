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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/tcpresponder/pkg/models"
)

// KVDirectory resolves devices from a NATS JetStream key-value bucket. Each
// key is the device address with separators replaced (see Key) and each
// value is a JSON DeviceIdentity.
type KVDirectory struct {
	kv jetstream.KeyValue
}

var _ Directory = (*KVDirectory)(nil)

// NewKVDirectory binds to bucket, creating it when missing.
func NewKVDirectory(ctx context.Context, js jetstream.JetStream, bucket string) (*KVDirectory, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	return &KVDirectory{kv: kv}, nil
}

// Key maps an address onto a valid KV key. Dots and colons are token
// separators or illegal in keys, so both become underscores.
func Key(address string) string {
	return strings.NewReplacer(".", "_", ":", "_").Replace(NormalizeAddress(address))
}

func (d *KVDirectory) Lookup(ctx context.Context, address string) models.LookupResult {
	identity, found, err := d.get(ctx, address)

	switch {
	case err != nil:
		return models.LookupError(err)
	case !found:
		return models.NotFound()
	default:
		return models.Found(identity)
	}
}

func (d *KVDirectory) NotificationEndpoint(ctx context.Context, address string) (string, error) {
	identity, _, err := d.get(ctx, address)
	if err != nil {
		return "", err
	}

	return identity.NotificationEndpoint, nil
}

// Put registers or replaces a device.
func (d *KVDirectory) Put(ctx context.Context, identity models.DeviceIdentity) error {
	identity.Address = NormalizeAddress(identity.Address)

	value, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal device %s: %w", identity.Address, err)
	}

	if _, err := d.kv.Put(ctx, Key(identity.Address), value); err != nil {
		return fmt.Errorf("failed to put device %s: %w", identity.Address, err)
	}

	return nil
}

func (d *KVDirectory) get(ctx context.Context, address string) (models.DeviceIdentity, bool, error) {
	var identity models.DeviceIdentity

	entry, err := d.kv.Get(ctx, Key(address))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return identity, false, nil
	}

	if err != nil {
		return identity, false, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	if err := json.Unmarshal(entry.Value(), &identity); err != nil {
		return identity, false, fmt.Errorf("%w: decode %s: %w", ErrLookupFailed, entry.Key(), err)
	}

	if identity.Address == "" {
		identity.Address = NormalizeAddress(address)
	}

	return identity, true, nil
}
