package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL"`
	HTTP        HTTP
	Sqlite      Sqlite
	Redis       Redis
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	RateLimit   RateLimit
}

type HTTP struct {
	Port            int           `env:"HTTP_PORT"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"`
}

type Sqlite struct {
	Path         string `env:"SQLITE_PATH"`
	MigrationDir string `env:"SQLITE_MIGRATION_DIR"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug      bool          `env:"API_DEBUG"`
	Timeout    time.Duration `env:"API_TIMEOUT"`
	FinmindApi FinmindApi
	StockApi   StockApi
}

type FinmindApi struct {
	Url string `env:"FINMIND_API_URL"`
}

// StockApi is the quote proxy endpoint the quote cache dials. It normally
// points back at this service's own listen address.
type StockApi struct {
	Url string `env:"STOCK_API_URL"`
}

type Cache struct {
	StockListExpiration time.Duration `env:"CACHE_STOCK_LIST_EXPIRATION"`
}

type Jobs struct {
	QuoteRefreshInterval     time.Duration `env:"QUOTE_REFRESH_JOB_INTERVAL"`
	StockListRefreshInterval time.Duration `env:"STOCK_LIST_REFRESH_JOB_INTERVAL"`
	DriveCleanupInterval     time.Duration `env:"DRIVE_CLEANUP_JOB_INTERVAL"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL"`
}

type RateLimit struct {
	Interval time.Duration `env:"RATE_LIMIT_INTERVAL"`
	Burst    int           `env:"RATE_LIMIT_BURST"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
