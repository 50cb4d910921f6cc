package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	LLM       LLMConfig
	Scheduler SchedulerConfig
	Governor  GovernorConfig
	Session   SessionConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string

	// TestMode swaps real submissions for dry runs that never touch a
	// live platform.
	TestMode bool
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	PoolMaxConns        int32
	PoolMaxConnLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type JWTConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type SchedulerConfig struct {
	Workers         int
	QueueSize       int
	StageTimeout    time.Duration
	DeferDelay      time.Duration
	RequireApproval bool
	TailoringMode   string
	ReviewTTL       time.Duration

	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RateLimitDelay time.Duration
}

type GovernorConfig struct {
	LLMCapacity      int
	LLMWindow        time.Duration
	LLMMaxConcurrent int

	// Submission budgets apply per platform over a rolling day.
	SubmitDailyBudget   int
	SubmitMaxConcurrent int
	SubmitWindow        time.Duration
	LeaseTTL            time.Duration
}

type SessionConfig struct {
	MaxPerPlatform int
	Headless       bool
	UserAgent      string
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optInt := func(key string, def int) int {
		v := opt(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}
	optBool := func(key string, def bool) bool {
		v := opt(key)
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		v := opt(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
		TestMode:    optBool("TEST_MODE", false),
	}

	cfg.Database = DatabaseConfig{
		DBHost:              opt("DB_HOST"),
		DBPort:              opt("DB_PORT"),
		DBName:              opt("DB_NAME"),
		DBUser:              opt("DB_USER"),
		DBPassword:          opt("DB_PASSWORD"),
		DBSSLMode:           opt("DB_SSL_MODE"),
		PoolMaxConns:        int32(optInt("DB_POOL_MAX_CONNS", 10)),
		PoolMaxConnLifetime: optDuration("DB_POOL_MAX_CONN_LIFETIME", 30*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST"),
		Port:     opt("REDIS_PORT"),
		Password: opt("REDIS_PASSWORD"),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:     req("JWT_ACCESS_SECRET"),
		RefreshSecret:    req("JWT_REFRESH_SECRET"),
		AccessExpiresIn:  optDuration("JWT_ACCESS_EXPIRES_IN", 15*time.Minute),
		RefreshExpiresIn: optDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
	}

	cfg.LLM = LLMConfig{
		APIKey: opt("LLM_API_KEY"),
		Model:  withDefault(opt("LLM_MODEL"), "gemini-2.5-flash"),
	}

	cfg.Scheduler = SchedulerConfig{
		Workers:         optInt("SCHEDULER_WORKERS", 4),
		QueueSize:       optInt("SCHEDULER_QUEUE_SIZE", 256),
		StageTimeout:    optDuration("SCHEDULER_STAGE_TIMEOUT", 2*time.Minute),
		DeferDelay:      optDuration("SCHEDULER_DEFER_DELAY", 15*time.Second),
		RequireApproval: optBool("SCHEDULER_REQUIRE_APPROVAL", false),
		TailoringMode:   withDefault(opt("SCHEDULER_TAILORING_MODE"), "moderate"),
		ReviewTTL:       optDuration("SCHEDULER_REVIEW_TTL", 7*24*time.Hour),
		MaxAttempts:     optInt("RETRY_MAX_ATTEMPTS", 5),
		BackoffBase:     optDuration("RETRY_BACKOFF_BASE", 2*time.Second),
		BackoffCap:      optDuration("RETRY_BACKOFF_CAP", 5*time.Minute),
		RateLimitDelay:  optDuration("RETRY_RATE_LIMIT_DELAY", 1*time.Minute),
	}

	cfg.Governor = GovernorConfig{
		LLMCapacity:         optInt("GOVERNOR_LLM_CAPACITY", 60),
		LLMWindow:           optDuration("GOVERNOR_LLM_WINDOW", time.Minute),
		LLMMaxConcurrent:    optInt("GOVERNOR_LLM_MAX_CONCURRENT", 4),
		SubmitDailyBudget:   optInt("GOVERNOR_SUBMIT_DAILY_BUDGET", 50),
		SubmitMaxConcurrent: optInt("GOVERNOR_SUBMIT_MAX_CONCURRENT", 1),
		SubmitWindow:        optDuration("GOVERNOR_SUBMIT_WINDOW", 24*time.Hour),
		LeaseTTL:            optDuration("GOVERNOR_LEASE_TTL", 5*time.Minute),
	}

	cfg.Session = SessionConfig{
		MaxPerPlatform: optInt("SESSION_MAX_PER_PLATFORM", 2),
		Headless:       optBool("SESSION_HEADLESS", true),
		UserAgent:      opt("SESSION_USER_AGENT"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
