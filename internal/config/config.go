package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver       string               `yaml:"db_driver"`
	DatabaseURL    string               `yaml:"database_url"`
	HTTPAddr       string               `yaml:"http_addr"`
	CORSOrigins    []string             `yaml:"cors_origins"`
	Cache          CacheConfig          `yaml:"cache"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type ReconciliationConfig struct {
	SuggestionThreshold   int     `yaml:"suggestion_threshold"`
	BulkAcceptMinScore    float64 `yaml:"bulk_accept_min_score"`
	BulkAcceptConcurrency int     `yaml:"bulk_accept_concurrency"`
}

func Default() *Config {
	return &Config{
		DBDriver:    DriverPostgres,
		HTTPAddr:    ":8080",
		CORSOrigins: []string{"http://localhost:3000"},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       5 * time.Minute,
			RedisAddr: "localhost:6379",
		},
		Reconciliation: ReconciliationConfig{
			SuggestionThreshold:   40,
			BulkAcceptMinScore:    0.9,
			BulkAcceptConcurrency: 8,
		},
	}
}

// Load reads .env when present, then layers the optional RECON_CONFIG_FILE
// YAML file and the environment over the defaults. Environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := Default()
	if path := os.Getenv("RECON_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")

	var errs []error
	errs = append(errs,
		setInt(&c.Cache.RedisDB, "REDIS_DB"),
		setDuration(&c.Cache.TTL, "CACHE_TTL"),
		setFloat(&c.Reconciliation.BulkAcceptMinScore, "BULK_ACCEPT_MIN_SCORE"),
		setInt(&c.Reconciliation.BulkAcceptConcurrency, "BULK_ACCEPT_CONCURRENCY"),
		setInt(&c.Reconciliation.SuggestionThreshold, "SUGGESTION_THRESHOLD"),
	)
	return errors.Join(errs...)
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	r := c.Reconciliation
	if r.BulkAcceptMinScore <= 0 || r.BulkAcceptMinScore > 1 {
		return fmt.Errorf("BULK_ACCEPT_MIN_SCORE must be in (0, 1], got %v", r.BulkAcceptMinScore)
	}
	if r.BulkAcceptConcurrency < 1 {
		return fmt.Errorf("BULK_ACCEPT_CONCURRENCY must be at least 1, got %d", r.BulkAcceptConcurrency)
	}
	if r.SuggestionThreshold < 0 || r.SuggestionThreshold > 100 {
		return fmt.Errorf("SUGGESTION_THRESHOLD must be between 0 and 100, got %d", r.SuggestionThreshold)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
