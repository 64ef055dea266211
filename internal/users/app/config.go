package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/store/drivers/sqlstore"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"gopkg.in/yaml.v3"
)

// Config is built from defaults, then the YAML file named by CONFIG_FILE,
// then environment variables. Later sources win.
type Config struct {
	Env                 string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel            string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat           string        `yaml:"log_format"` // json, text (default: json)
	Port                int           `yaml:"port"`       // default: 8080
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`
	PepperFile          string        `yaml:"pepper_file"` // default: ./pepper

	Auth     AuthConfig     `yaml:"auth"`
	Cookie   CookieSettings `yaml:"cookie"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
}

type AuthConfig struct {
	Issuer    string `yaml:"issuer"`
	Algorithm string `yaml:"algorithm"` // RS256, ES256, EdDSA (default: EdDSA)
	RSABits   int    `yaml:"rsa_bits"`
	NumKeys   int    `yaml:"num_keys"`

	// SigningKeyFile holds a PEM private key shared by every replica. When
	// empty, keys are generated at startup and die with the process.
	SigningKeyFile string `yaml:"signing_key_file"`
	SigningKeyID   string `yaml:"signing_key_id"`

	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type CookieSettings struct {
	Secure bool   `yaml:"secure"`
	Domain string `yaml:"domain"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the user cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AdminConfig seeds the first admin into an empty database.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func defaultConfig() Config {
	return Config{
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,
		PepperFile:          "pepper",
		Auth: AuthConfig{
			Issuer:       "haulage-users",
			Algorithm:    jwtx.AlgorithmEdDSA,
			SigningKeyID: "primary",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   7 * 24 * time.Hour,
		},
		Cookie: CookieSettings{Secure: true},
		Database: DatabaseConfig{
			Driver: sqlstore.DriverSQLite,
			DSN:    "file:users.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		Redis: RedisConfig{CacheTTL: 5 * time.Minute},
	}
}

// LoadConfig reads the configuration and validates it.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.PepperFile = getEnvOrDefault("PEPPER_FILE", cfg.PepperFile)

	cfg.Auth.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.Algorithm = getEnvOrDefault("AUTH_ALGORITHM", cfg.Auth.Algorithm)
	cfg.Auth.RSABits = getEnvIntOrDefault("AUTH_RSA_BITS", cfg.Auth.RSABits)
	cfg.Auth.NumKeys = getEnvIntOrDefault("AUTH_NUM_KEYS", cfg.Auth.NumKeys)
	cfg.Auth.SigningKeyFile = getEnvOrDefault("AUTH_SIGNING_KEY_FILE", cfg.Auth.SigningKeyFile)
	cfg.Auth.SigningKeyID = getEnvOrDefault("AUTH_SIGNING_KEY_ID", cfg.Auth.SigningKeyID)
	cfg.Auth.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", cfg.Auth.AccessTTL)
	cfg.Auth.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", cfg.Auth.RefreshTTL)

	cfg.Cookie.Secure = getEnvBoolOrDefault("COOKIE_SECURE", cfg.Cookie.Secure)
	cfg.Cookie.Domain = getEnvOrDefault("COOKIE_DOMAIN", cfg.Cookie.Domain)

	cfg.Database.Driver = getEnvOrDefault("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnvOrDefault("DATABASE_DSN", cfg.Database.DSN)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.CacheTTL = getEnvDurationOrDefault("CACHE_TTL", cfg.Redis.CacheTTL)

	cfg.Admin.Username = getEnvOrDefault("ADMIN_USERNAME", cfg.Admin.Username)
	cfg.Admin.Password = getEnvOrDefault("ADMIN_PASSWORD", cfg.Admin.Password)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database driver must be %q or %q, got %q",
			sqlstore.DriverSQLite, sqlstore.DriverPostgres, c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}

	switch c.Auth.Algorithm {
	case jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256, jwtx.AlgorithmRS256:
	default:
		errs = append(errs, fmt.Errorf("unsupported signing algorithm %q", c.Auth.Algorithm))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	} else if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		errs = append(errs, fmt.Errorf("access ttl %s must be shorter than refresh ttl %s", c.Auth.AccessTTL, c.Auth.RefreshTTL))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
