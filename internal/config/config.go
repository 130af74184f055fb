package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	StorageDriver string

	RedisURL string

	ServerPort     string
	RequestTimeout time.Duration

	JWTSecret string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	DiscordBotToken string
	DiscordAPIBase  string

	// SlugLookupFallback lets GET /profiles/by-slug/{slug} resolve the slug as an owner id
	// when no profile carries that slug.
	SlugLookupFallback bool

	ProfileCacheTTL time.Duration

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	WorkerCount int

	// DotenvLoaded is false when no .env file was read and only the process environment applies.
	DotenvLoaded bool
}

// ErrMissingJWTSecret is returned when JWT_SECRET is unset or blank.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// LoadConfig reads .env (when present) and the environment.
func LoadConfig() (*Config, error) {
	dotenvErr := godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, ErrMissingJWTSecret
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	storageDriver := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_DRIVER")))
	if storageDriver == "" {
		storageDriver = StorageDriverPostgres
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	discordAPIBase := os.Getenv("DISCORD_API_BASE")
	if discordAPIBase == "" {
		discordAPIBase = "https://discord.com/api/v10"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      os.Getenv("DB_PORT"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBSSLMode:   sslMode,

		StorageDriver: storageDriver,

		RedisURL: os.Getenv("REDIS_URL"),

		ServerPort:     serverPort,
		RequestTimeout: time.Duration(intEnv("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,

		JWTSecret: jwtSecret,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		DiscordBotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordAPIBase:  strings.TrimSuffix(discordAPIBase, "/"),

		SlugLookupFallback: boolEnv("SLUG_LOOKUP_FALLBACK", false),

		ProfileCacheTTL: time.Duration(intEnv("PROFILE_CACHE_TTL_SECONDS", 300)) * time.Second,

		CORSAllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  logLevel,
		LogFormat: logFormat,

		WorkerCount: intEnv("WORKER_COUNT", 2),

		DotenvLoaded: dotenvErr == nil,
	}, nil
}

// UploadsEnabled reports whether every R2 setting needed by the upload service is present.
func (c *Config) UploadsEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicURL != ""
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func boolEnv(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func listEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
