package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Escalation   EscalationConfig
	Scheduler    SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// PublicBaseURL prefixes ticket links in reports and exports.
	PublicBaseURL string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
	// FilePath enables a rotating log file next to stdout when set.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds outbound email settings.
type NotificationConfig struct {
	ResendAPIKey string
	EmailFrom    string
	// ArchiveAddress receives a copy of every report when set.
	ArchiveAddress      string
	DispatchConcurrency int
	ExportDir           string
	Timezone            string
}

// EscalationConfig tunes the deadline batch.
type EscalationConfig struct {
	BatchTimeoutSeconds int
	LockTTLSeconds      int
	// DepartmentFragments overrides the email fragment routing, e.g.
	// "Bahía=user_mantencion1,user_mantencion2;Flota=user_mantencion4".
	DepartmentFragments string
}

// SchedulerConfig controls the daily deadline run.
type SchedulerConfig struct {
	Enabled  bool
	Spec     string
	Timezone string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "maintenance-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicBaseURL:         strings.TrimRight(getEnv("APP_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Encoding:   getEnv("LOG_ENCODING", "json"),
			FilePath:   os.Getenv("LOG_FILE_PATH"),
			MaxSizeMB:  getEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_FILE_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 30),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			ResendAPIKey:        os.Getenv("RESEND_API_KEY"),
			EmailFrom:           getEnv("NOTIFY_EMAIL_FROM", "Mantenimiento <noreply@example.com>"),
			ArchiveAddress:      os.Getenv("NOTIFY_ARCHIVE_ADDRESS"),
			DispatchConcurrency: getEnvAsInt("NOTIFY_DISPATCH_CONCURRENCY", 4),
			ExportDir:           getEnv("EXPORT_DIR", os.TempDir()),
			Timezone:            getEnv("NOTIFY_TIMEZONE", "America/Santiago"),
		},
		Escalation: EscalationConfig{
			BatchTimeoutSeconds: getEnvAsInt("ESCALATION_BATCH_TIMEOUT_SECONDS", 300),
			LockTTLSeconds:      getEnvAsInt("ESCALATION_LOCK_TTL_SECONDS", 900),
			DepartmentFragments: os.Getenv("ESCALATION_DEPARTMENT_FRAGMENTS"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
			Spec:     getEnv("SCHEDULER_SPEC", "0 8 * * *"),
			Timezone: getEnv("SCHEDULER_TIMEZONE", "America/Santiago"),
		},
	}

	if cfg.Notification.DispatchConcurrency <= 0 {
		return nil, fmt.Errorf("invalid NOTIFY_DISPATCH_CONCURRENCY: %d", cfg.Notification.DispatchConcurrency)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the reporting timezone, falling back to UTC.
func (n NotificationConfig) Location() *time.Location {
	return loadLocation(n.Timezone)
}

// BatchTimeout returns the deadline applied to one escalation run. Zero disables it.
func (e EscalationConfig) BatchTimeout() time.Duration {
	if e.BatchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(e.BatchTimeoutSeconds) * time.Second
}

// LockTTL returns how long a run lock is held before it expires on its own.
func (e EscalationConfig) LockTTL() time.Duration {
	if e.LockTTLSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(e.LockTTLSeconds) * time.Second
}

// Fragments parses DepartmentFragments. It returns nil when unset so callers
// can fall back to the default mapping.
func (e EscalationConfig) Fragments() map[string][]string {
	raw := strings.TrimSpace(e.DepartmentFragments)
	if raw == "" {
		return nil
	}
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		name, list, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		for _, f := range strings.Split(list, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out[name] = append(out[name], f)
			}
		}
	}
	return out
}

// Location resolves the scheduler timezone, falling back to UTC.
func (s SchedulerConfig) Location() *time.Location {
	return loadLocation(s.Timezone)
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
