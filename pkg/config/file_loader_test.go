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


package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/tcpresponder/pkg/models"
)

func TestFileLoaderRejectsUnknownKeys(t *testing.T) {
	var cfg models.ResponderConfig

	err := (&FileConfigLoader{}).Load(context.Background(),
		writeConfig(t, `{"listener":{"listen_adr":"0.0.0.0:1"}}`), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_adr")
}

func TestFileLoaderAllowUnknownFields(t *testing.T) {
	var cfg models.ResponderConfig

	err := (&FileConfigLoader{AllowUnknownFields: true}).Load(context.Background(),
		writeConfig(t, `{"listener":{"listen_addr":"0.0.0.0:1"},"legacy":true}`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1", cfg.Listener.ListenAddr)
}

func TestFileLoaderRejectsTrailingData(t *testing.T) {
	var cfg models.ResponderConfig

	err := (&FileConfigLoader{}).Load(context.Background(),
		writeConfig(t, `{"cache":{"ttl":"1m"}} {"cache":{"ttl":"2m"}}`), &cfg)
	require.ErrorIs(t, err, errTrailingData)
}

func TestFileLoaderMissingFile(t *testing.T) {
	var cfg models.ResponderConfig

	err := (&FileConfigLoader{}).Load(context.Background(), t.TempDir()+"/absent.json", &cfg)
	require.ErrorIs(t, err, ErrConfigNotFound)
}
