package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the process configuration, read from the environment and an optional .env file.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store        StoreConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Auth         AuthConfig
	CORS         CORSConfig
	Log          LogConfig
	Cache        CacheConfig
	Filter       FilterConfig
	Dashboard    DashboardConfig
	Reports      ReportsConfig
	Gamification GamificationConfig
}

// StoreConfig selects the backing data source for the domain records.
type StoreConfig struct {
	Driver   string
	SeedFile string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig tunes the login lockout. The attempt limit itself is an admin setting.
type AuthConfig struct {
	LockoutWindow time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig toggles redis backed caching of summaries and dashboards.
type CacheConfig struct {
	Enabled    bool
	SummaryTTL time.Duration
}

// FilterConfig controls how list endpoints treat unrecognised filter keys.
type FilterConfig struct {
	StrictKeys bool
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// GamificationConfig tunes learner level progression.
type GamificationConfig struct {
	LevelStep int
}

// Load reads .env (when present) and the environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with. Production additionally
// refuses the development secrets.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API_PREFIX %q must start with /", c.APIPrefix))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Reports.Enabled && c.Reports.WorkerConcurrency <= 0 {
		errs = append(errs, errors.New("REPORTS_WORKER_CONCURRENCY must be positive"))
	}
	if c.Env == EnvProduction {
		if c.JWT.Secret == devJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be set in production"))
		}
		if c.Reports.Enabled && c.Reports.SignedURLSecret == devReportsSecret {
			errs = append(errs, errors.New("REPORTS_SIGNED_URL_SECRET must be set in production"))
		}
	}
	return errors.Join(errs...)
}

func fromViper(v *viper.Viper) *Config {
	driver := strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER")))
	if driver != StorePostgres {
		driver = StoreMemory
	}
	step := v.GetInt("GAMIFICATION_LEVEL_STEP")
	if step <= 0 {
		step = defaultLevelStep
	}

	return &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Store: StoreConfig{
			Driver:   driver,
			SeedFile: v.GetString("SEED_FILE"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:            v.GetString("JWT_SECRET"),
			Expiration:        duration(v, "JWT_EXPIRATION"),
			RefreshExpiration: duration(v, "REFRESH_TOKEN_EXPIRATION"),
		},
		Auth:   AuthConfig{LockoutWindow: duration(v, "AUTH_LOCKOUT_WINDOW")},
		CORS:   CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))},
		Log:    LogConfig{Level: v.GetString("LOG_LEVEL"), Format: v.GetString("LOG_FORMAT")},
		Filter: FilterConfig{StrictKeys: v.GetBool("FILTER_STRICT_KEYS")},
		Cache: CacheConfig{
			Enabled:    v.GetBool("ENABLE_CACHE"),
			SummaryTTL: duration(v, "SUMMARY_CACHE_TTL"),
		},
		Dashboard: DashboardConfig{CacheTTL: duration(v, "DASHBOARD_CACHE_TTL")},
		Reports: ReportsConfig{
			Enabled:           v.GetBool("ENABLE_REPORTS"),
			StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
			SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
			SignedURLTTL:      duration(v, "REPORTS_SIGNED_URL_TTL"),
			CleanupInterval:   duration(v, "REPORTS_CLEANUP_INTERVAL"),
			WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
			WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		},
		Gamification: GamificationConfig{LevelStep: step},
	}
}

const (
	devJWTSecret     = "dev_secret"
	devReportsSecret = "dev_reports_secret"
	defaultLevelStep = 250
)

var defaults = map[string]interface{}{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"STORE_DRIVER": StoreMemory,
	"SEED_FILE":    "",

	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "ace_lms",
	"DB_SSL_MODE":       "disable",
	"DB_MAX_OPEN_CONNS": 10,
	"DB_MAX_IDLE_CONNS": 5,
	"DB_AUTO_MIGRATE":   false,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"JWT_SECRET":               devJWTSecret,
	"JWT_EXPIRATION":           "24h",
	"REFRESH_TOKEN_EXPIRATION": "168h",
	"AUTH_LOCKOUT_WINDOW":      "15m",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"ENABLE_CACHE":        false,
	"SUMMARY_CACHE_TTL":   "2m",
	"FILTER_STRICT_KEYS":  false,
	"DASHBOARD_CACHE_TTL": "5m",

	"ENABLE_REPORTS":             true,
	"REPORTS_STORAGE_DIR":        "./exports",
	"REPORTS_SIGNED_URL_SECRET":  devReportsSecret,
	"REPORTS_SIGNED_URL_TTL":     "24h",
	"REPORTS_CLEANUP_INTERVAL":   "1h",
	"REPORTS_WORKER_CONCURRENCY": 1,
	"REPORTS_WORKER_RETRIES":     3,

	"GAMIFICATION_LEVEL_STEP": defaultLevelStep,
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// duration parses key, falling back to the registered default when the value is malformed.
func duration(v *viper.Viper, key string) time.Duration {
	if d, err := time.ParseDuration(v.GetString(key)); err == nil {
		return d
	}
	fallback, _ := defaults[key].(string)
	d, _ := time.ParseDuration(fallback)
	return d
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
