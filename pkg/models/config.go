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

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/tcpresponder/pkg/logger"
)

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("5s") or a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	DefaultListenAddr      = "0.0.0.0:50000"
	DefaultMaxConnections  = 1024
	DefaultLookupTimeout   = 10 * time.Second
	DefaultWorkers         = 16
	DefaultQueueSize       = 1024
	DefaultRequestTimeout  = 10 * time.Second
	DefaultCacheTTL        = 300 * time.Second
	DefaultPollInterval    = 5 * time.Second
	DefaultQueryTimeout    = 30 * time.Second
	DefaultFeedBackoff     = 5 * time.Second
	DefaultNotifyChannel   = "heartbeat_changes"
	DefaultAPIListenAddr   = ":8090"
	DefaultDirectoryTable  = "allowed_ips"
	DefaultMonitorRelation = "monitor"
)

// Directory backends.
const (
	DirectoryPostgres = "postgres"
	DirectoryNATSKV   = "nats_kv"
	DirectoryStatic   = "static"
)

// ListenerConfig configures the inbound connection listener.
type ListenerConfig struct {
	ListenAddr     string   `json:"listen_addr"`
	MaxConnections int64    `json:"max_connections"`
	LookupTimeout  Duration `json:"lookup_timeout"`
}

// NotifierConfig configures outbound notification dispatch.
type NotifierConfig struct {
	Workers        int      `json:"workers"`
	QueueSize      int      `json:"queue_size"`
	RequestTimeout Duration `json:"request_timeout"`
	RatePerSecond  float64  `json:"rate_per_second,omitempty"`
	Burst          int      `json:"burst,omitempty"`
}

// DirectoryConfig selects and configures the device directory backend.
type DirectoryConfig struct {
	Backend      string           `json:"backend"`
	Table        string           `json:"table,omitempty"`
	EnsureSchema bool             `json:"ensure_schema,omitempty"`
	Bucket       string           `json:"bucket,omitempty"`
	Devices      []DeviceIdentity `json:"devices,omitempty"`
}

// TLSConfig holds client certificate paths.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// DatabaseConfig describes the Postgres system of record.
type DatabaseConfig struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password" sensitive:"true"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	CertDir            string            `json:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  Duration          `json:"health_check_period,omitempty"`
	StatementTimeout   Duration          `json:"statement_timeout,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// CacheConfig configures the heartbeat cache.
type CacheConfig struct {
	TTL Duration `json:"ttl"`
}

// SyncConfig configures the poll sync agent.
type SyncConfig struct {
	Relation        string   `json:"relation"`
	MonitorRelation string   `json:"monitor_relation"`
	PollInterval    Duration `json:"poll_interval"`
	QueryTimeout    Duration `json:"query_timeout"`
	StartupDelay    Duration `json:"startup_delay,omitempty"`
	Disabled        bool     `json:"disabled,omitempty"`
}

// PGNotifyFeedConfig enables the Postgres LISTEN/NOTIFY change feed.
type PGNotifyFeedConfig struct {
	Enabled        bool   `json:"enabled"`
	Channel        string `json:"channel"`
	InstallTrigger bool   `json:"install_trigger,omitempty"`
}

// JetStreamFeedConfig enables the NATS JetStream change feed.
type JetStreamFeedConfig struct {
	Enabled  bool   `json:"enabled"`
	Stream   string `json:"stream"`
	Subject  string `json:"subject"`
	Consumer string `json:"consumer,omitempty"`
}

// CDCConfig configures the change-stream sync agents.
type CDCConfig struct {
	Backoff   Duration            `json:"backoff"`
	PGNotify  PGNotifyFeedConfig  `json:"pg_notify"`
	JetStream JetStreamFeedConfig `json:"jetstream"`
}

// NATSConfig describes the NATS connection shared by the JetStream feed and
// the KV directory.
type NATSConfig struct {
	URL       string     `json:"url"`
	CredsFile string     `json:"creds_file,omitempty"`
	Domain    string     `json:"domain,omitempty"`
	TLS       *TLSConfig `json:"tls,omitempty"`
}

// CORSConfig is the CORS policy of the read API.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// APIConfig configures the read API.
type APIConfig struct {
	Enabled    bool       `json:"enabled"`
	ListenAddr string     `json:"listen_addr"`
	APIKey     string     `json:"api_key,omitempty" sensitive:"true"`
	CORS       CORSConfig `json:"cors"`
}

// ResponderConfig is the full configuration of the responder binary.
type ResponderConfig struct {
	Listener  ListenerConfig          `json:"listener"`
	Notifier  NotifierConfig          `json:"notifier"`
	Directory DirectoryConfig         `json:"directory"`
	Database  *DatabaseConfig         `json:"database,omitempty"`
	NATS      *NATSConfig             `json:"nats,omitempty"`
	Cache     CacheConfig             `json:"cache"`
	Sync      SyncConfig              `json:"sync"`
	CDC       CDCConfig               `json:"cdc"`
	API       APIConfig               `json:"api"`
	Logging   *logger.Config          `json:"logging,omitempty"`
	Telemetry *logger.TelemetryConfig `json:"telemetry,omitempty"`
}

// ApplyDefaults fills zero values with their defaults.
func (c *ResponderConfig) ApplyDefaults() {
	if c.Listener.ListenAddr == "" {
		c.Listener.ListenAddr = DefaultListenAddr
	}

	if c.Listener.MaxConnections <= 0 {
		c.Listener.MaxConnections = DefaultMaxConnections
	}

	if c.Listener.LookupTimeout <= 0 {
		c.Listener.LookupTimeout = Duration(DefaultLookupTimeout)
	}

	if c.Notifier.Workers <= 0 {
		c.Notifier.Workers = DefaultWorkers
	}

	if c.Notifier.QueueSize <= 0 {
		c.Notifier.QueueSize = DefaultQueueSize
	}

	if c.Notifier.RequestTimeout <= 0 {
		c.Notifier.RequestTimeout = Duration(DefaultRequestTimeout)
	}

	if c.Directory.Backend == "" {
		c.Directory.Backend = DirectoryPostgres
	}

	if c.Directory.Table == "" {
		c.Directory.Table = DefaultDirectoryTable
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = Duration(DefaultCacheTTL)
	}

	if c.Sync.Relation == "" {
		c.Sync.Relation = HeartbeatRelation
	}

	if c.Sync.MonitorRelation == "" {
		c.Sync.MonitorRelation = DefaultMonitorRelation
	}

	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = Duration(DefaultPollInterval)
	}

	if c.Sync.QueryTimeout <= 0 {
		c.Sync.QueryTimeout = Duration(DefaultQueryTimeout)
	}

	if c.CDC.Backoff <= 0 {
		c.CDC.Backoff = Duration(DefaultFeedBackoff)
	}

	if c.CDC.PGNotify.Channel == "" {
		c.CDC.PGNotify.Channel = DefaultNotifyChannel
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultAPIListenAddr
	}
}

// Validate checks the configuration for settings that cannot work at runtime.
func (c *ResponderConfig) Validate() error {
	c.ApplyDefaults()

	switch c.Directory.Backend {
	case DirectoryPostgres:
		if c.Database == nil {
			return fmt.Errorf("%w: directory backend %q", errDatabaseRequired, c.Directory.Backend)
		}
	case DirectoryNATSKV:
		if c.NATS == nil || c.NATS.URL == "" {
			return fmt.Errorf("%w: directory backend %q", errNATSRequired, c.Directory.Backend)
		}

		if c.Directory.Bucket == "" {
			return errDirectoryBucketRequired
		}
	case DirectoryStatic:
	default:
		return fmt.Errorf("%w: %q", errUnknownDirectory, c.Directory.Backend)
	}

	if c.Database != nil {
		if c.Database.Host == "" {
			return errDatabaseAddressRequired
		}

		if c.Database.Database == "" {
			return errDatabaseNameRequired
		}
	}

	if !c.Sync.Disabled && c.Database == nil {
		return fmt.Errorf("%w: poll sync", errDatabaseRequired)
	}

	if c.CDC.PGNotify.Enabled && c.Database == nil {
		return fmt.Errorf("%w: pg_notify feed", errDatabaseRequired)
	}

	if c.CDC.JetStream.Enabled {
		if c.NATS == nil || c.NATS.URL == "" {
			return fmt.Errorf("%w: jetstream feed", errNATSRequired)
		}

		if c.CDC.JetStream.Stream == "" || c.CDC.JetStream.Subject == "" {
			return errJetStreamSubjectRequired
		}
	}

	if c.API.Enabled && c.Database == nil {
		return fmt.Errorf("%w: read api", errDatabaseRequired)
	}

	return nil
}
