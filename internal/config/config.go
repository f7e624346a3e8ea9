package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "chatline"
	DefaultPGSSLMode         = "disable"
	DefaultStorageRoot       = "data/media"
	DefaultStorageBaseURL    = "http://127.0.0.1:8080/media"
	DefaultLookupTimeoutSecs = 5
	DefaultTriggerTimeout    = 15
	DefaultOutboxPollSecs    = 5
	DefaultOutboxBatchSize   = 25
	DefaultOutboxMaxAttempts = 8
	DefaultOutboxBackoffSecs = 30
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Storage  StorageConfig  `toml:"storage"`
	Provider ProviderConfig `toml:"provider"`
	Triggers TriggersConfig `toml:"triggers"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// URL renders a connection URL usable by both pgx and golang-migrate.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type StorageConfig struct {
	Root    string `toml:"root"`
	BaseURL string `toml:"base_url"`
}

// ProviderConfig points at the channel provider API used for profile
// lookups, group metadata and outbound sends.
type ProviderConfig struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	LookupTimeoutSeconds int    `toml:"lookup_timeout_seconds"`
}

// TriggersConfig configures the async analysis/transcription outbox.
type TriggersConfig struct {
	AnalysisURL      string `toml:"analysis_url"`
	TranscriptionURL string `toml:"transcription_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	PollSeconds      int    `toml:"poll_seconds"`
	BatchSize        int    `toml:"batch_size"`
	MaxAttempts      int    `toml:"max_attempts"`
	BackoffSeconds   int    `toml:"backoff_seconds"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Storage: StorageConfig{
			Root:    DefaultStorageRoot,
			BaseURL: DefaultStorageBaseURL,
		},
		Provider: ProviderConfig{
			LookupTimeoutSeconds: DefaultLookupTimeoutSecs,
		},
		Triggers: TriggersConfig{
			TimeoutSeconds: DefaultTriggerTimeout,
			PollSeconds:    DefaultOutboxPollSecs,
			BatchSize:      DefaultOutboxBatchSize,
			MaxAttempts:    DefaultOutboxMaxAttempts,
			BackoffSeconds: DefaultOutboxBackoffSecs,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
