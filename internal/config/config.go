// Package config loads gardenkeep settings from .env files, the environment
// and command flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gardenkeep/internal/blob"
	"gardenkeep/internal/botanical"
	"gardenkeep/internal/core"
	"gardenkeep/internal/infra/persistence/postgres"
	"gardenkeep/internal/infra/persistence/sqlite"
	"gardenkeep/pkg/domain"
)

// EnvPrefix prefixes every environment variable except the botanical token,
// which is also read unprefixed.
const EnvPrefix = "GARDEN"

// DotEnvFiles are loaded in order when present. Values already in the
// environment win.
var DotEnvFiles = []string{".env.local", ".env"}

// Keys understood by Resolve.
const (
	KeyBotanicalToken     = "botanical_api_token"
	KeyBotanicalURL       = "botanical_api_url"
	KeyBotanicalTimeout   = "botanical_timeout"
	KeyStorageDriver      = "storage_driver"
	KeySQLitePath         = "sqlite_path"
	KeyPostgresDSN        = "postgres_dsn"
	KeyBlobDriver         = "blob_driver"
	KeyBlobFSRoot         = "blob_fs_root"
	KeyBlobS3Bucket       = "blob_s3_bucket"
	KeyBlobS3Region       = "blob_s3_region"
	KeyBlobS3Endpoint     = "blob_s3_endpoint"
	KeyBlobS3PathStyle    = "blob_s3_path_style"
	KeyHTTPAddr           = "http_addr"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeyCORSOrigins        = "cors_origins"
	KeyRecurrenceInterval = "recurrence_interval"
	KeyRecurrenceUsers    = "recurrence_users"
	KeyAPIURL             = "api_url"
)

// Config is the resolved application configuration.
type Config struct {
	BotanicalToken   string
	BotanicalURL     string
	BotanicalTimeout time.Duration

	Storage core.StorageConfig
	Blob    blob.Config

	HTTPAddr    string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string

	// RecurrenceInterval enables the recurrence worker when positive.
	RecurrenceInterval time.Duration
	RecurrenceUsers    []domain.UserID

	// APIURL is the server base URL used by the command line client.
	APIURL string
}

// New returns a viper instance bound to the environment with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBotanicalURL, botanical.DefaultBaseURL)
	v.SetDefault(KeyBotanicalTimeout, botanical.DefaultTimeout)
	v.SetDefault(KeyStorageDriver, string(core.StorageSQLite))
	v.SetDefault(KeySQLitePath, sqlite.DefaultPath)
	v.SetDefault(KeyPostgresDSN, postgres.DefaultDSN)
	v.SetDefault(KeyBlobDriver, string(blob.DriverFilesystem))
	v.SetDefault(KeyBlobFSRoot, "gardenkeep-images")
	v.SetDefault(KeyBlobS3Region, "us-east-1")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyCORSOrigins, "*")
	v.SetDefault(KeyRecurrenceInterval, time.Duration(0))
	v.SetDefault(KeyAPIURL, "http://localhost:8080")
	// Hosted deployments name the token without a prefix.
	_ = v.BindEnv(KeyBotanicalToken, EnvPrefix+"_BOTANICAL_API_TOKEN", "BOTANICAL_API_TOKEN")
	return v
}

// LoadDotEnv loads the files in DotEnvFiles that exist under dir.
func LoadDotEnv(dir string) error {
	for _, name := range DotEnvFiles {
		path := name
		if dir != "" {
			path = strings.TrimRight(dir, "/") + "/" + name
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads .env files from the working directory and resolves v.
func Load(v *viper.Viper) (Config, error) {
	if err := LoadDotEnv(""); err != nil {
		return Config{}, err
	}
	return Resolve(v)
}

// Resolve builds a Config from v without touching .env files.
func Resolve(v *viper.Viper) (Config, error) {
	cfg := Config{
		BotanicalToken:   strings.TrimSpace(v.GetString(KeyBotanicalToken)),
		BotanicalURL:     v.GetString(KeyBotanicalURL),
		BotanicalTimeout: v.GetDuration(KeyBotanicalTimeout),
		Storage: core.StorageConfig{
			Driver:     core.StorageDriver(strings.ToLower(v.GetString(KeyStorageDriver))),
			SQLitePath: v.GetString(KeySQLitePath),
			DSN:        v.GetString(KeyPostgresDSN),
		},
		Blob: blob.Config{
			Driver: blob.Driver(strings.ToLower(v.GetString(KeyBlobDriver))),
			FSRoot: v.GetString(KeyBlobFSRoot),
			S3: blob.S3Config{
				Bucket:    v.GetString(KeyBlobS3Bucket),
				Region:    v.GetString(KeyBlobS3Region),
				Endpoint:  v.GetString(KeyBlobS3Endpoint),
				PathStyle: v.GetBool(KeyBlobS3PathStyle),
			},
		},
		HTTPAddr:           v.GetString(KeyHTTPAddr),
		CORSOrigins:        splitList(v.GetString(KeyCORSOrigins)),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          v.GetString(KeyLogFormat),
		RecurrenceInterval: v.GetDuration(KeyRecurrenceInterval),
		APIURL:             strings.TrimRight(v.GetString(KeyAPIURL), "/"),
	}
	for _, u := range splitList(v.GetString(KeyRecurrenceUsers)) {
		cfg.RecurrenceUsers = append(cfg.RecurrenceUsers, domain.UserID(u))
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that cannot be used.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return &domain.ConfigError{Setting: "STORAGE_DRIVER", Reason: fmt.Sprintf("has unknown value %q", c.Storage.Driver)}
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return &domain.ConfigError{Setting: "BLOB_S3_BUCKET", Reason: "is required for the s3 blob driver"}
		}
	default:
		return &domain.ConfigError{Setting: "BLOB_DRIVER", Reason: fmt.Sprintf("has unknown value %q", c.Blob.Driver)}
	}
	if c.BotanicalTimeout <= 0 {
		return &domain.ConfigError{Setting: "BOTANICAL_TIMEOUT", Reason: "must be positive"}
	}
	if c.RecurrenceInterval < 0 {
		return &domain.ConfigError{Setting: "RECURRENCE_INTERVAL", Reason: "must not be negative"}
	}
	for _, u := range c.RecurrenceUsers {
		if u.IsNull() {
			return &domain.ConfigError{Setting: "RECURRENCE_USERS", Reason: "must not contain the null user"}
		}
	}
	return nil
}

// Botanical builds the Trefle client. Without a token every call fails with
// a *domain.ConfigError naming BOTANICAL_API_TOKEN.
func (c Config) Botanical() *botanical.Client {
	return botanical.NewClient(c.BotanicalToken, botanical.WithBaseURL(c.BotanicalURL), botanical.WithTimeout(c.BotanicalTimeout))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
