package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/curriculum-backend/internal/data/db"
	"github.com/yungbote/curriculum-backend/internal/platform/envutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderStub      = "stub"
)

// Config is resolved in three layers: built-in defaults, then the optional CONFIG_FILE
// YAML overlay, then environment variables.
type Config struct {
	HTTPAddr    string   `yaml:"http_addr"`
	ServiceName string   `yaml:"service_name"`
	Environment string   `yaml:"environment"`
	CORSOrigins []string `yaml:"cors_origins"`

	DB DBConfig `yaml:"db"`

	LLMProvider           string `yaml:"llm_provider"`
	LLMCallTimeoutSeconds int    `yaml:"llm_call_timeout_seconds"`

	DigestConcurrency      int    `yaml:"digest_concurrency"`
	IngestFetchConcurrency int    `yaml:"ingest_fetch_concurrency"`
	ClusterK               int    `yaml:"cluster_k"`
	PipelineYAML           string `yaml:"pipeline_yaml"`

	WorkerConcurrency    int `yaml:"worker_concurrency"`
	JobStaleAfterSeconds int `yaml:"job_stale_after_seconds"`

	RedisAddr             string `yaml:"redis_addr"`
	RedisJobChannel       string `yaml:"redis_job_channel"`
	DigestCacheTTLSeconds int    `yaml:"digest_cache_ttl_seconds"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
}

type DBConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
	SQLitePath string `yaml:"sqlite_path"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		ServiceName: "curriculum-backend",
		Environment: "local",
		DB: DBConfig{
			Driver: db.DriverPostgres,
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			Name:   "curriculum",
		},
		LLMProvider:            ProviderAuto,
		LLMCallTimeoutSeconds:  180,
		DigestConcurrency:      3,
		IngestFetchConcurrency: 5,
		WorkerConcurrency:      2,
		JobStaleAfterSeconds:   1800,
		RedisJobChannel:        "generation_jobs",
		DigestCacheTTLSeconds:  7 * 24 * 3600,
	}
}

// LoadConfig never fails: a missing or malformed overlay is logged and skipped.
func LoadConfig(log *logger.Logger) Config {
	cfg := DefaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			log.Warn("Ignoring config file", "path", path, "error", err)
		} else {
			log.Info("Loaded config file", "path", path)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	next := *c
	if err := yaml.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	*c = next
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = envutil.String("HTTP_ADDR", c.HTTPAddr)
	c.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.ServiceName)
	c.Environment = envutil.String("APP_ENV", c.Environment)
	if v := envutil.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.DB.Driver = envutil.String("DB_DRIVER", c.DB.Driver)
	c.DB.Host = envutil.String("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = envutil.String("POSTGRES_PORT", c.DB.Port)
	c.DB.User = envutil.String("POSTGRES_USER", c.DB.User)
	c.DB.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Name = envutil.String("POSTGRES_NAME", c.DB.Name)
	c.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", c.DB.SSLMode)
	c.DB.SQLitePath = envutil.String("SQLITE_PATH", c.DB.SQLitePath)

	c.LLMProvider = strings.ToLower(envutil.String("LLM_PROVIDER", c.LLMProvider))
	c.LLMCallTimeoutSeconds = envutil.Int("LLM_CALL_TIMEOUT_SECONDS", c.LLMCallTimeoutSeconds)

	c.DigestConcurrency = envutil.Int("DIGEST_CONCURRENCY", c.DigestConcurrency)
	c.IngestFetchConcurrency = envutil.Int("INGEST_FETCH_CONCURRENCY", c.IngestFetchConcurrency)
	c.ClusterK = envutil.Int("CLUSTER_K", c.ClusterK)
	c.PipelineYAML = envutil.String("CURRICULUM_PIPELINE_YAML", c.PipelineYAML)

	c.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", c.WorkerConcurrency)
	c.JobStaleAfterSeconds = envutil.Int("JOB_STALE_AFTER_SECONDS", c.JobStaleAfterSeconds)

	c.RedisAddr = envutil.String("REDIS_ADDR", c.RedisAddr)
	c.RedisJobChannel = envutil.String("REDIS_JOB_CHANNEL", c.RedisJobChannel)
	c.DigestCacheTTLSeconds = envutil.Int("DIGEST_CACHE_TTL_SECONDS", c.DigestCacheTTLSeconds)

	c.MetricsEnabled = envutil.Bool("METRICS_ENABLED", c.MetricsEnabled)
}

func (c Config) LLMCallTimeout() time.Duration {
	return seconds(c.LLMCallTimeoutSeconds, 180*time.Second)
}

func (c Config) JobStaleAfter() time.Duration {
	return seconds(c.JobStaleAfterSeconds, 30*time.Minute)
}

func (c Config) DigestCacheTTL() time.Duration {
	return seconds(c.DigestCacheTTLSeconds, 7*24*time.Hour)
}

func (c Config) dbConfig() db.Config {
	return db.Config{
		Driver:     c.DB.Driver,
		Host:       c.DB.Host,
		Port:       c.DB.Port,
		User:       c.DB.User,
		Password:   c.DB.Password,
		Name:       c.DB.Name,
		SSLMode:    c.DB.SSLMode,
		SQLitePath: c.DB.SQLitePath,
	}
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
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
