package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"a55pay-sdk/database"
	"a55pay-sdk/orchestrator"
	"a55pay-sdk/services/a55"
	"a55pay-sdk/services/device"
	"a55pay-sdk/services/threeds"
)

type Config struct {
	Database database.DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	A55      A55Config
	Flow     orchestrator.Settings
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	SessionSecret  string
	RelaySecret    string
	SessionIdleTTL time.Duration
	ShutdownGrace  time.Duration
}

type RedisConfig struct {
	URL               string
	QueueName         string
	WorkerConcurrency int
}

type A55Config struct {
	BaseURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() *Config {
	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Server: ServerConfig{
			Port:           getString("SERVER_PORT", "8080"),
			AllowedOrigins: getList("ALLOWED_ORIGINS"),
			SessionSecret:  os.Getenv("SESSION_SECRET"),
			RelaySecret:    os.Getenv("RELAY_TOKEN_SECRET"),
			SessionIdleTTL: getDuration("SESSION_IDLE_TTL", 30*time.Minute),
			ShutdownGrace:  getDuration("SHUTDOWN_GRACE", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			QueueName:         getString("REPORT_QUEUE", "a55pay_reports"),
			WorkerConcurrency: getInt("WORKER_CONCURRENCY", 2),
		},
		A55: A55Config{
			BaseURL: getString("A55_API_URL", a55.ProductionBaseURL),
		},
		Flow: orchestrator.Settings{
			CollectorURL:      os.Getenv("DEVICE_COLLECTOR_URL"),
			AuthOrigin:        os.Getenv("AUTH_TRUSTED_ORIGIN"),
			AuthTimeout:       getDuration("AUTH_TIMEOUT", 10*time.Second),
			ChallengeOrigins:  getList("CHALLENGE_ORIGINS"),
			ChallengeWindow:   getDuration("CHALLENGE_WINDOW", 0),
			RedirectDelay:     getDuration("REDIRECT_DELAY", 0),
			CheckoutOrigin:    os.Getenv("CHECKOUT_ORIGIN"),
			CheckoutWindow:    getDuration("CHECKOUT_WINDOW", 0),
			WidgetScriptURL:   os.Getenv("WIDGET_SCRIPT_URL"),
			WidgetEnvironment: getString("WIDGET_ENVIRONMENT", threeds.EnvironmentSandbox),
			HostedSDKURL:      os.Getenv("HOSTED_SDK_URL"),
			IPAttempt:         getDuration("IP_ATTEMPT_TIMEOUT", 3*time.Second),
		},
	}

	for _, u := range getList("IP_RESOLVER_URLS") {
		cfg.Flow.IPResolvers = append(cfg.Flow.IPResolvers, device.HTTPResolver{URL: u})
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
		log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
	}
	if cfg.Server.SessionSecret == "" {
		log.Printf("Warning: SESSION_SECRET not set")
	}
	if cfg.Server.RelaySecret == "" {
		log.Printf("Warning: RELAY_TOKEN_SECRET not set, falling back to SESSION_SECRET")
		cfg.Server.RelaySecret = cfg.Server.SessionSecret
	}

	log.Printf("Config loaded: port=%s api=%s redis=%s db_host=%s widget_env=%s",
		cfg.Server.Port, cfg.A55.BaseURL, redactURL(cfg.Redis.URL), cfg.Database.Host, cfg.Flow.WidgetEnvironment)

	return cfg
}

// DatabaseEnabled reports whether MySQL persistence is configured.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.DBName != ""
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}

// getList splits a comma separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func redactURL(u string) string {
	at := strings.LastIndex(u, "@")
	scheme := strings.Index(u, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return u
	}
	return u[:scheme+3] + "***" + u[at:]
}
