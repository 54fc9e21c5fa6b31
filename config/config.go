// Package config loads the daemon's runtime configuration from the
// environment, following the teacher's caarlos0/env + go-playground/
// validator convention, repointed from the Postgres/HTTP job-scheduler's
// fields to uSched's socket, persistence, scheduler, and admin-HTTP
// settings.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds every daemon-wide setting. cmd/usched lets a viper-loaded
// config file seed these as environment variables before Load runs, so
// flags/config-file/env/default layer the way the teacher's single
// env.Parse pass always has — env.Parse just sees a richer environment.
type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// Entry sockets (spec.md §4.1/§4.5)
	LocalSocketPath string `env:"LOCAL_SOCKET_PATH" envDefault:"/var/run/usched/usched.sock" validate:"required"`
	RemoteEnabled   bool   `env:"REMOTE_ENABLED" envDefault:"false"`
	RemoteAddr      string `env:"REMOTE_ADDR" envDefault:":2222"`
	RemoteTLSCert   string `env:"REMOTE_TLS_CERT"`
	RemoteTLSKey    string `env:"REMOTE_TLS_KEY"`
	ConnTimeoutSec  int    `env:"CONN_TIMEOUT_SEC" envDefault:"30" validate:"min=1"`
	MaxPayloadBytes uint32 `env:"MAX_PAYLOAD_BYTES" envDefault:"1048576" validate:"min=64"`

	// Persistence (spec.md §4.7)
	MarshalFilePath        string `env:"MARSHAL_FILE_PATH" envDefault:"/var/lib/usched/usched.db" validate:"required"`
	MarshalBackupDir       string `env:"MARSHAL_BACKUP_DIR" envDefault:"/var/lib/usched/backup"`
	MarshalBackupKeep      int    `env:"MARSHAL_BACKUP_KEEP" envDefault:"3" validate:"min=0,max=100"`
	MarshalSyncIntervalSec int    `env:"MARSHAL_SYNC_INTERVAL_SEC" envDefault:"30" validate:"min=1"`

	// Scheduler (spec.md §4.3)
	SchedulerWorkers int `env:"SCHEDULER_WORKERS" envDefault:"4" validate:"min=1,max=256"`
	PollIntervalSec  int `env:"POLL_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`

	// Daemon<->executor IPC (spec.md §11)
	IPCSocketPath     string `env:"IPC_SOCKET_PATH" envDefault:"/var/run/usched/uexecd.sock" validate:"required"`
	IPCStatSocketPath string `env:"IPC_STAT_SOCKET_PATH" envDefault:"/var/run/usched/ustatd.sock" validate:"required"`
	IPCMaxInFlight    int    `env:"IPC_MAX_IN_FLIGHT" envDefault:"64" validate:"min=1"`
	IPCSendTimeoutSec int    `env:"IPC_SEND_TIMEOUT_SEC" envDefault:"5" validate:"min=1"`

	// Admin/ops HTTP surface (internal/transport/adminhttp)
	AdminStoreDir  string `env:"ADMIN_STORE_DIR" envDefault:"/var/lib/usched/admin" validate:"required"`
	AdminHTTPAddr  string `env:"ADMIN_HTTP_ADDR" envDefault:":7990"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET" validate:"required"`

	// Execution telemetry (spec.md §4.8)
	StatReportPath        string `env:"STAT_REPORT_PATH"`
	StatReportIntervalSec int    `env:"STAT_REPORT_INTERVAL_SEC" envDefault:"60" validate:"min=1"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

// Load parses the process environment into a Config and validates it,
// matching the teacher's two-step env.Parse-then-validator.Struct.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
