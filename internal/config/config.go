package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"

	DriverMongo  = "mongodb"
	DriverSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	Env        string   `yaml:"env" env:"APP_ENV" env-default:"local"`
	ServerPort int      `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel   string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	CORSOrigin []string `yaml:"cors_origin" env:"CORS_ORIGIN" env-separator:"," env-default:"http://localhost:3000"`
	BodyLimit  int64    `yaml:"body_limit" env:"BODY_LIMIT" env-default:"1024000"` // 1000kb

	Storage StorageConfig `yaml:"storage"`
	Token   TokenConfig   `yaml:"token"`
	Cookie  CookieConfig  `yaml:"cookie"`

	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// StorageConfig selects and configures the credential store.
type StorageConfig struct {
	Driver        string        `yaml:"driver" env:"STORE_DRIVER" env-default:"mongodb"`
	MongoURI      string        `yaml:"mongodb_uri" env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string        `yaml:"mongodb_database" env:"MONGODB_DATABASE" env-default:"todo"`
	MongoTimeout  time.Duration `yaml:"mongodb_timeout" env:"MONGODB_TIMEOUT" env-default:"10s"`
	SQLitePath    string        `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./todo.db"`
}

// TokenConfig holds signing secrets and lifetimes for access and refresh tokens.
type TokenConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_EXPIRY" env-default:"240h"`
}

type CookieConfig struct {
	Secure bool `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
}

// Load reads the configuration from the YAML file named by CONFIG_PATH, if any,
// and from environment variables, which always take precedence.
func Load() (*Config, error) {
	var cfg Config

	if path, ok := os.LookupEnv("CONFIG_PATH"); ok && path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values cleanenv cannot express in tags.
func (c *Config) Validate() error {
	switch {
	case c.Token.AccessSecret == "" || c.Token.RefreshSecret == "":
		return errors.New("access and refresh token secrets are required")
	case c.Token.AccessSecret == c.Token.RefreshSecret:
		return errors.New("access and refresh token secrets must differ")
	case c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0:
		return errors.New("token expiry must be positive")
	case c.BodyLimit <= 0:
		return errors.New("body limit must be positive")
	}

	switch c.Storage.Driver {
	case DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Storage.Driver)
	}
	return nil
}
