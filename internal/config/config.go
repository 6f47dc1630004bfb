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
	ShortLink    ShortLinkConfig
	Provider     ProviderConfig
	Dedup        DedupConfig
	Webhook      WebhookConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
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
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines agent-console authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// ShortLinkConfig controls short link issuance.
type ShortLinkConfig struct {
	BaseURL string
}

// ProviderConfig selects and configures the external helpdesk provider.
// Name is fixed at boot; it is never re-evaluated per call.
type ProviderConfig struct {
	Name             string
	TimeoutSeconds   int
	RetryMaxAttempts int
	RetryBaseSeconds int
	RetryCapSeconds  int
	ZendeskSubdomain string
	ZendeskEmail     string
	ZendeskAPIToken  string
	ZendeskBaseURL   string
	FreshdeskDomain  string
	FreshdeskAPIKey  string
	FreshdeskBaseURL string
}

// DedupConfig controls the inbound event deduplication window.
type DedupConfig struct {
	Backend    string
	TTLSeconds int
}

// WebhookConfig holds inbound channel settings.
type WebhookConfig struct {
	TwilioAuthToken string
}

// KafkaConfig configures the optional ticket-event producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NotificationConfig holds the stub notification endpoint.
type NotificationConfig struct {
	WebhookURL string
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
			Name:                  getEnv("APP_NAME", "qr-attribution-service"),
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
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		ShortLink: ShortLinkConfig{
			BaseURL: getEnv("SHORTLINK_BASE_URL", "http://localhost:8080/r"),
		},
		Provider: ProviderConfig{
			Name:             getEnv("TICKET_PROVIDER", "local"),
			TimeoutSeconds:   getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 10),
			RetryMaxAttempts: getEnvAsInt("PROVIDER_RETRY_MAX_ATTEMPTS", 4),
			RetryBaseSeconds: getEnvAsInt("PROVIDER_RETRY_BASE_SECONDS", 2),
			RetryCapSeconds:  getEnvAsInt("PROVIDER_RETRY_CAP_SECONDS", 20),
			ZendeskSubdomain: os.Getenv("ZENDESK_SUBDOMAIN"),
			ZendeskEmail:     os.Getenv("ZENDESK_EMAIL"),
			ZendeskAPIToken:  os.Getenv("ZENDESK_API_TOKEN"),
			ZendeskBaseURL:   os.Getenv("ZENDESK_BASE_URL"),
			FreshdeskDomain:  os.Getenv("FRESHDESK_DOMAIN"),
			FreshdeskAPIKey:  os.Getenv("FRESHDESK_API_KEY"),
			FreshdeskBaseURL: os.Getenv("FRESHDESK_BASE_URL"),
		},
		Dedup: DedupConfig{
			Backend:    getEnv("DEDUP_BACKEND", "redis"),
			TTLSeconds: getEnvAsInt("DEDUP_TTL_SECONDS", 300),
		},
		Webhook: WebhookConfig{
			TwilioAuthToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TICKET_EVENTS_TOPIC", ""),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
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

// TTL returns the dedup window duration.
func (d DedupConfig) TTL() time.Duration {
	if d.TTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(d.TTLSeconds) * time.Second
}

// Timeout returns the per-call provider timeout.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
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

func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
