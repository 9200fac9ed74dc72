package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ignatzorin/techmarket-sync/internal/logger"
)

const (
	PushTransportWS    = "ws"
	PushTransportRedis = "redis"
)

// Config хранит все параметры запуска шлюза.
type Config struct {
	Env      string
	HTTPPort string

	APIBaseURL        string
	HTTPClientTimeout time.Duration
	ServiceToken      string

	PushTransport string
	PushURL       string
	RedisURL      string
	PushRetry     time.Duration

	// Хранилища акторов без браузерных соединений.
	SnapshotTTL  time.Duration
	StoreIdleTTL time.Duration

	// DatabaseURL пуст - журнал компенсаций хранится в памяти.
	DatabaseURL    string
	MigrationsPath string

	IdentityJWTSecret string
	AllowedOrigins    []string
	RateLimitLimit    int64
	RateLimitPeriod   time.Duration

	FlowTimeout               time.Duration
	PageSize                  int
	CompensationRetryInterval time.Duration
}

// Load читает envFile (если он есть) и переменные окружения.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: не удалось прочитать %s: %w", envFile, err)
			}
			logger.Get().Infof("config: %s не найден, используем переменные окружения", envFile)
		}
	}

	env := getEnv("APP_ENV", "development")
	p := &parser{}

	cfg := &Config{
		Env:      env,
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8000/api"),
		HTTPClientTimeout: p.duration("HTTP_CLIENT_TIMEOUT", "15s"),
		ServiceToken:      getEnv("API_SERVICE_TOKEN", ""),

		PushTransport: strings.ToLower(getEnv("PUSH_TRANSPORT", PushTransportWS)),
		PushURL:       getEnv("PUSH_URL", "ws://localhost:8000/ws"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PushRetry:     p.duration("PUSH_RETRY_DELAY", "2s"),

		SnapshotTTL:  p.duration("SNAPSHOT_TTL", "30s"),
		StoreIdleTTL: p.duration("STORE_IDLE_TTL", "10m"),

		DatabaseURL:    getDatabaseURL(),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		RateLimitLimit:  p.int64("RATE_LIMIT_LIMIT", "30"),
		RateLimitPeriod: p.duration("RATE_LIMIT_PERIOD", "1m"),

		FlowTimeout:               p.duration("FLOW_TIMEOUT", "30s"),
		PageSize:                  int(p.int64("PAGE_SIZE", "10")),
		CompensationRetryInterval: p.duration("COMPENSATION_RETRY_INTERVAL", "30s"),
	}
	if p.err != nil {
		return nil, p.err
	}

	switch cfg.PushTransport {
	case PushTransportWS, PushTransportRedis:
	default:
		return nil, fmt.Errorf("config: PUSH_TRANSPORT должен быть ws или redis, получено %q", cfg.PushTransport)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("config: PAGE_SIZE должен быть положительным")
	}

	secret := getEnv("IDENTITY_JWT_SECRET", "")
	if env == "production" {
		if len(secret) < 32 {
			return nil, fmt.Errorf("config: IDENTITY_JWT_SECRET обязателен и должен быть не менее 32 символов в production")
		}
	} else if secret == "" {
		secret = "identity-secret-development-only-change-in-production"
		logger.Get().Warn("config: используется дефолтный IDENTITY_JWT_SECRET, измените в production!")
	}
	cfg.IdentityJWTSecret = secret

	origins := getEnv("CORS_ALLOWED_ORIGINS", "")
	if origins == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS обязателен в production")
		}
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	} else {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или дефолт.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getDatabaseURL берёт DATABASE_URL либо собирает его из POSTGRESQL_*.
// Пустая строка означает, что база не используется.
func getDatabaseURL() string {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return dbURL
	}

	host := getEnv("POSTGRESQL_HOST", "")
	user := getEnv("POSTGRESQL_USER", "")
	dbname := getEnv("POSTGRESQL_DBNAME", "")
	if host == "" || user == "" || dbname == "" {
		return ""
	}

	userInfo := url.UserPassword(user, getEnv("POSTGRESQL_PASSWORD", ""))
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
		userInfo.String(), host, getEnv("POSTGRESQL_PORT", "5432"), dbname)
}

// parser запоминает первую ошибку разбора, чтобы Load вернул её целиком.
type parser struct {
	err error
}

func (p *parser) duration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, raw, err)
	}
	return d
}

func (p *parser) int64(key, fallback string) int64 {
	raw := getEnv(key, fallback)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, raw, err)
	}
	return n
}
