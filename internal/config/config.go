package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for both bot processes.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Telegram     TelegramConfig
	Admin        AdminConfig
	Challenge    ChallengeConfig
	Notification NotificationConfig
	Retention    RetentionConfig
	Storage      StorageConfig
}

// AppConfig controls process level behavior and the dashboard listener.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	OutboxChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines dashboard token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// TelegramConfig holds bot credentials for both front ends.
type TelegramConfig struct {
	ParticipantToken   string
	AdminToken         string
	PollTimeoutSeconds int
	Debug              bool
}

// AdminConfig lists platform ids allowed to use administrator operations.
type AdminConfig struct {
	IDs []int64
}

// ChallengeConfig describes the challenge calendar.
type ChallengeConfig struct {
	TimezoneName string
	Location     *time.Location
}

// NotificationConfig tunes outbox delivery.
type NotificationConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// RetentionConfig tunes the sweeper for processed records.
type RetentionConfig struct {
	Interval            time.Duration
	PotentialMessageAge time.Duration
	NotificationAge     time.Duration
}

// StorageConfig configures the optional S3-compatible media archive.
type StorageConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether a bucket is configured.
func (s StorageConfig) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	adminIDs, err := ParseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}

	tzName := getEnv("CHALLENGE_TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid CHALLENGE_TIMEZONE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "eco-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			OutboxChannel: getEnv("REDIS_OUTBOX_CHANNEL", "ecobot:outbox"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Telegram: TelegramConfig{
			ParticipantToken:   os.Getenv("TELEGRAM_PARTICIPANT_TOKEN"),
			AdminToken:         os.Getenv("TELEGRAM_ADMIN_TOKEN"),
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 60),
			Debug:              getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Admin: AdminConfig{
			IDs: adminIDs,
		},
		Challenge: ChallengeConfig{
			TimezoneName: tzName,
			Location:     loc,
		},
		Notification: NotificationConfig{
			PollInterval: getEnvAsDuration("NOTIFY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getEnvAsInt("NOTIFY_BATCH_SIZE", 20),
			MaxAttempts:  getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			RetryBackoff: getEnvAsDuration("NOTIFY_RETRY_BACKOFF", 30*time.Second),
		},
		Retention: RetentionConfig{
			Interval:            getEnvAsDuration("RETENTION_INTERVAL", time.Hour),
			PotentialMessageAge: getEnvAsDuration("RETENTION_POTENTIAL_MESSAGE_AGE", 30*24*time.Hour),
			NotificationAge:     getEnvAsDuration("RETENTION_NOTIFICATION_AGE", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			Bucket:          os.Getenv("MEDIA_BUCKET"),
			Endpoint:        os.Getenv("MEDIA_ENDPOINT"),
			Region:          getEnv("MEDIA_REGION", "auto"),
			AccessKeyID:     os.Getenv("MEDIA_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("MEDIA_SECRET_ACCESS_KEY"),
		},
	}

	return cfg, nil
}

// ParseAdminIDs parses a comma or space separated list of platform ids.
func ParseAdminIDs(raw string) ([]int64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	ids := make([]int64, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
