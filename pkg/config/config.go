package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig

	// Sources
	Reddit  RedditConfig
	Twitter TwitterConfig

	// Classifier
	LLM LLMConfig

	// Scheduler trigger
	Cron CronConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Driver string // postgres, memory
	URL    string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration // aggregate cache TTL
}

// RedditConfig holds Reddit collection settings
type RedditConfig struct {
	BaseURL    string
	Subreddits []string
	PostLimit  int
	Timeout    time.Duration

	// Anti-blocking pacing
	MinSpacing   time.Duration // minimum gap between feed requests
	JitterMin    time.Duration
	JitterMax    time.Duration
	ListingDelay time.Duration // gap between JSON listing requests

	// Retry
	MaxAttempts int
	BackoffBase time.Duration

	// Comments
	CommentThreshold int // posts need more comments than this
	CommentTopN      int
	CommentDepth     int
}

// TwitterConfig holds the keyed Twitter API settings
type TwitterConfig struct {
	BaseURL     string
	BearerToken string
	Accounts    []string
	MaxResults  int
	Timeout     time.Duration
	WindowLimit int // requests per 15 minute window
}

// LLMConfig holds sentiment classifier settings
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	BatchSize int // tickers per prompt
	MaxTokens int
}

// CronConfig holds scheduler trigger settings
type CronConfig struct {
	Secret         string
	BaseURL        string
	RequestTimeout time.Duration
	Schedule       string
}

// PipelineConfig holds batch pipeline settings
type PipelineConfig struct {
	ScoringConfigPath string
	Periods           []string
	RawRetention      time.Duration
	DisplayRetention  time.Duration
	TopPosts          int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Driver:          getEnv("STORAGE_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "10m"),
		},

		Reddit: RedditConfig{
			BaseURL:          getEnv("REDDIT_BASE_URL", "https://www.reddit.com"),
			Subreddits:       getEnvAsList("REDDIT_SUBREDDITS", "wallstreetbets,stocks,investing,StockMarket,options"),
			PostLimit:        getEnvAsInt("REDDIT_POST_LIMIT", 25),
			Timeout:          getEnvAsDuration("REDDIT_TIMEOUT", "15s"),
			MinSpacing:       getEnvAsDuration("REDDIT_MIN_SPACING", "2s"),
			JitterMin:        getEnvAsDuration("REDDIT_JITTER_MIN", "1s"),
			JitterMax:        getEnvAsDuration("REDDIT_JITTER_MAX", "3s"),
			ListingDelay:     getEnvAsDuration("REDDIT_LISTING_DELAY", "1s"),
			MaxAttempts:      getEnvAsInt("REDDIT_MAX_ATTEMPTS", 2),
			BackoffBase:      getEnvAsDuration("REDDIT_BACKOFF_BASE", "1s"),
			CommentThreshold: getEnvAsInt("REDDIT_COMMENT_THRESHOLD", 5),
			CommentTopN:      getEnvAsInt("REDDIT_COMMENT_TOP_N", 20),
			CommentDepth:     getEnvAsInt("REDDIT_COMMENT_DEPTH", 3),
		},

		Twitter: TwitterConfig{
			BaseURL:     getEnv("TWITTER_BASE_URL", "https://api.twitter.com"),
			BearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
			Accounts:    getEnvAsList("TWITTER_ACCOUNTS", "unusual_whales,DeItaone,zerohedge,FirstSquawk,WallStJesus"),
			MaxResults:  getEnvAsInt("TWITTER_MAX_RESULTS", 50),
			Timeout:     getEnvAsDuration("TWITTER_TIMEOUT", "15s"),
			WindowLimit: getEnvAsInt("TWITTER_WINDOW_LIMIT", 900),
		},

		LLM: LLMConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			Model:     getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:   getEnvAsDuration("LLM_TIMEOUT", "60s"),
			BatchSize: getEnvAsInt("LLM_BATCH_SIZE", 10),
			MaxTokens: getEnvAsInt("LLM_MAX_TOKENS", 4000),
		},

		Cron: CronConfig{
			Secret:         getEnv("CRON_SECRET", ""),
			BaseURL:        strings.TrimRight(getEnv("CRON_BASE_URL", getEnv("BASE_URL", "http://localhost:8080")), "/"),
			RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 300)) * time.Second,
			Schedule:       getEnv("CRON_SCHEDULE", "0 0 9 * * *"),
		},

		Pipeline: PipelineConfig{
			ScoringConfigPath: getEnv("SCORING_CONFIG", ""),
			Periods:           getEnvAsList("AGGREGATION_PERIODS", "24h,7d,30d"),
			RawRetention:      getEnvAsDuration("RAW_RETENTION", "720h"),
			DisplayRetention:  getEnvAsDuration("DISPLAY_RETENTION", "168h"),
			TopPosts:          getEnvAsInt("TOP_POSTS", 0), // 0 = scoring config top_n
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of: postgres, memory")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Env == "production" && c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET is required in production")
	}

	if c.Reddit.MaxAttempts < 1 {
		return fmt.Errorf("REDDIT_MAX_ATTEMPTS must be >= 1")
	}
	if c.Reddit.JitterMax < c.Reddit.JitterMin {
		return fmt.Errorf("REDDIT_JITTER_MAX must be >= REDDIT_JITTER_MIN")
	}

	if len(c.Pipeline.Periods) == 0 {
		return fmt.Errorf("AGGREGATION_PERIODS must not be empty")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"config.env", // legacy cron script location
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	// godotenv.Load never overrides variables that are already set
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
