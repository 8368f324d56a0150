package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

type Config struct {
	APIURL  string        `env:"BILLSIGHT_API_URL, default=http://localhost:8000"`
	Timeout time.Duration `env:"BILLSIGHT_TIMEOUT, default=120s"`

	LogLevel  string `env:"LOG_LEVEL,  default=warn"`
	LogPretty bool   `env:"LOG_PRETTY, default=true"`

	// DownloadDir receives finished spreadsheets. Defaults to the working directory.
	DownloadDir string `env:"DOWNLOAD_DIR, default=."`
	// MetricsFile, when set, receives the client metrics on exit.
	MetricsFile string `env:"METRICS_FILE"`

	Token TokenConfig
}

type TokenConfig struct {
	Store string `env:"TOKEN_STORE, default=file"`
	// File defaults to <user config dir>/billsight/token.
	File string `env:"TOKEN_FILE"`

	Redis RedisConfig
}

type RedisConfig struct {
	Addr string        `env:"REDIS_ADDR,      default=localhost:6379"`
	DB   int           `env:"REDIS_DB,        default=0"`
	Key  string        `env:"REDIS_TOKEN_KEY, default=billsight:access_token"`
	TTL  time.Duration `env:"REDIS_TOKEN_TTL, default=0s"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch cfg.Token.Store {
	case TokenStoreFile, TokenStoreRedis:
	default:
		return nil, fmt.Errorf("config: TOKEN_STORE must be %q or %q, got %q", TokenStoreFile, TokenStoreRedis, cfg.Token.Store)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("config: BILLSIGHT_TIMEOUT must be positive, got %s", cfg.Timeout)
	}

	if cfg.Token.Store == TokenStoreFile && cfg.Token.File == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve token file: %w", err)
		}
		cfg.Token.File = filepath.Join(dir, "billsight", "token")
	}
	return &cfg, nil
}
