// Package config loads the server configuration from the environment.
//
// An optional .env file is read first with godotenv; variables already set in
// the process environment win over the file. Every key has a default except
// the secrets. A value that is present but malformed is an error rather than
// a silent fallback, so a typo in PORT stops the server instead of moving it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config is everything the server needs to start.
type Config struct {
	Port   int
	DBPath string

	StorageDriver string
	StorageDir    string
	PublicBaseURL string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// RedisAddr selects the Redis throttle store; empty means in-process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ThrottleLimit  int
	ThrottleWindow time.Duration

	// AdminJWTSecret enables the admin API; empty disables it.
	AdminJWTSecret string
	MaxUploadMB    int

	LogLevel  slog.Level
	LogFormat string
	LogFile   string
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads files (".env" when none are given) into the environment and
// builds a Config. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	e := &env{}
	c := &Config{
		Port:   e.integer("PORT", 8080),
		DBPath: e.str("DB_PATH", "data/choirhub.db"),

		StorageDriver: strings.ToLower(e.str("STORAGE_DRIVER", StorageLocal)),
		StorageDir:    e.str("STORAGE_DIR", "data/storage"),

		MinioEndpoint:  e.str("MINIO_ENDPOINT", ""),
		MinioAccessKey: e.str("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: e.str("MINIO_SECRET_KEY", ""),
		MinioBucket:    e.str("MINIO_BUCKET", "choirhub"),
		MinioUseSSL:    e.boolean("MINIO_USE_SSL", false),

		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.integer("REDIS_DB", 0),

		ThrottleLimit:  e.integer("THROTTLE_LIMIT", 60),
		ThrottleWindow: e.duration("THROTTLE_WINDOW", time.Minute),

		AdminJWTSecret: e.str("ADMIN_JWT_SECRET", ""),
		MaxUploadMB:    e.integer("MAX_UPLOAD_MB", 200),

		LogLevel:  e.level("LOG_LEVEL", slog.LevelInfo),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "text")),
		LogFile:   e.str("LOG_FILE", ""),
	}
	c.PublicBaseURL = strings.TrimRight(e.str("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", c.Port)), "/")

	e.check(c.Port > 0 && c.Port < 65536, "PORT must be between 1 and 65535")
	e.check(c.StorageDriver == StorageLocal || c.StorageDriver == StorageMinio, "STORAGE_DRIVER must be local or minio")
	e.check(c.StorageDriver != StorageMinio || c.MinioEndpoint != "", "MINIO_ENDPOINT is required with STORAGE_DRIVER=minio")
	e.check(c.ThrottleLimit > 0, "THROTTLE_LIMIT must be positive")
	e.check(c.ThrottleWindow >= time.Second, "THROTTLE_WINDOW must be at least 1s")
	e.check(c.MaxUploadMB > 0, "MAX_UPLOAD_MB must be positive")
	e.check(c.LogFormat == "text" || c.LogFormat == "json", "LOG_FORMAT must be text or json")

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// env reads typed variables and collects every problem instead of stopping
// at the first.
type env struct {
	errs []error
}

func (e *env) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *env) integer(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return fallback
	}
	return n
}

func (e *env) boolean(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return fallback
	}
	return d
}

func (e *env) level(key string, fallback slog.Level) slog.Level {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a log level", key, v))
		return fallback
	}
	return l
}

func (e *env) check(ok bool, msg string) {
	if !ok {
		e.errs = append(e.errs, errors.New(msg))
	}
}
