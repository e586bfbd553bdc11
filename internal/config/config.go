package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (queue + distributed lock)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Snowflake
	SnowflakeNodeID int64

	// RevenueCat
	RevenueCatWebhookAuth string

	// DashScope (emoji generation pipeline)
	DashScopeAPIKey  string
	DashScopeBaseURL string
	EmojiMock        bool

	// Worker
	EmojiStream       string
	EmojiGroup        string
	EmojiConsumer     string
	EmojiPollInterval time.Duration
	EmojiPollTimeout  time.Duration
	EmojiClaimMinIdle time.Duration

	// OSS (object storage)
	OSSEndpoint        string
	OSSBucket          string
	OSSAccessKeyID     string
	OSSAccessKeySecret string
	OSSResultPrefix    string
	OSSUploadPrefix    string
	OSSPublicBaseURL   string

	// Catalog (products, styles, reward amounts)
	CatalogPath string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	// Best effort; env vars win over .env contents.
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "pickitchen"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "168h"), 168*time.Hour),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "720h"), 720*time.Hour),

		SnowflakeNodeID: int64(parseInt(getEnv("SNOWFLAKE_NODE_ID", "0"), 0)),

		RevenueCatWebhookAuth: getEnv("REVENUECAT_WEBHOOK_AUTH", ""),

		DashScopeAPIKey:  getEnv("DASHSCOPE_API_KEY", ""),
		DashScopeBaseURL: getEnv("DASHSCOPE_BASE_URL", "https://dashscope.aliyuncs.com"),
		EmojiMock:        parseBool(getEnv("EMOJI_MOCK", "false")),

		EmojiStream:       getEnv("EMOJI_STREAM", "emoji_tasks"),
		EmojiGroup:        getEnv("EMOJI_GROUP", "emoji_worker"),
		EmojiConsumer:     getEnv("EMOJI_CONSUMER", "c1"),
		EmojiPollInterval: parseDuration(getEnv("EMOJI_POLL_INTERVAL", "15s"), 15*time.Second),
		EmojiPollTimeout:  parseDuration(getEnv("EMOJI_POLL_TIMEOUT", "10m"), 10*time.Minute),
		EmojiClaimMinIdle: parseDuration(getEnv("EMOJI_CLAIM_MIN_IDLE", "60s"), time.Minute),

		OSSEndpoint:        getEnv("OSS_ENDPOINT", ""),
		OSSBucket:          getEnv("OSS_BUCKET", ""),
		OSSAccessKeyID:     getEnv("OSS_ACCESS_KEY_ID", ""),
		OSSAccessKeySecret: getEnv("OSS_ACCESS_KEY_SECRET", ""),
		OSSResultPrefix:    getEnv("OSS_RESULT_PREFIX", "results"),
		OSSUploadPrefix:    getEnv("OSS_UPLOAD_PREFIX", "uploads"),
		OSSPublicBaseURL:   getEnv("OSS_PUBLIC_BASE_URL", ""),

		CatalogPath: getEnv("CATALOG_PATH", "catalog.json"),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
