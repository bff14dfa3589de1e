package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/humetube/internal/ai"
	"github.com/kdimtricp/humetube/internal/database"
	"github.com/kdimtricp/humetube/internal/pipeline"
	"github.com/kdimtricp/humetube/internal/scheduler"
)

const callbackPath = "/ingest-predictions"

type Config struct {
	Port           string
	PublicURL      string
	CallbackURL    string
	MaxBodySize    int64
	// Empty uses the migrations embedded in the binary.
	MigrationsPath string
	// Hosts snapshot images may be fetched from by URL. Empty means data
	// URIs and base64 only.
	ImageURLHosts []string

	Database  database.Config
	AI        *ai.Config
	Pipeline  pipeline.Config
	Scheduler scheduler.Config
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables
// win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	policy, err := scheduler.ParsePolicy(getEnv("DEBOUNCE_POLICY", string(scheduler.PolicyRecent)))
	if err != nil {
		return nil, err
	}

	reanalysisDelay := getEnvAsDuration("REANALYSIS_DELAY", 10*time.Minute)

	aiConfig := ai.NewConfig()
	aiConfig.HumeAPIKey = getEnv("HUME_API_KEY", "")
	aiConfig.HumeAPIURL = getEnv("HUME_API_URL", ai.DefaultHumeAPIURL)
	aiConfig.SubmitTimeout = getEnvAsDuration("SUBMIT_TIMEOUT", aiConfig.SubmitTimeout)
	aiConfig.SubmitMaxAttempts = getEnvAsInt("SUBMIT_MAX_ATTEMPTS", aiConfig.SubmitMaxAttempts)

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		PublicURL:      getEnv("HUMETUBE_API_URL", ""),
		MaxBodySize:    getEnvAsInt64("MAX_BODY_SIZE", 32<<20),
		MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		ImageURLHosts:  getEnvAsList("IMAGE_URL_HOSTS"),
		Database: database.Config{
			Type:       getEnv("DB_TYPE", "sqlite"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "humetube"),
			Password:   getEnv("DB_PASSWORD", "humetube_dev"),
			Name:       getEnv("DB_NAME", "humetube"),
			SQLitePath: getEnv("DB_PATH", "./humetube.db"),
		},
		AI: aiConfig,
		Pipeline: pipeline.Config{
			MaxSnapshotsPerBatch: getEnvAsInt("MAX_SNAPSHOTS_PER_BATCH", 100),
			ReanalysisDelay:      reanalysisDelay,
			KeepBatchContext:     getEnvAsBool("KEEP_BATCH_CONTEXT", true),
		},
		Scheduler: scheduler.Config{
			Window:       reanalysisDelay,
			PollInterval: getEnvAsDuration("SCHEDULER_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:  getEnvAsInt("SCHEDULER_MAX_ATTEMPTS", 5),
			Policy:       policy,
			RetryBackoff: getEnvAsDuration("SCHEDULER_RETRY_BACKOFF", 30*time.Second),
		},
	}

	cfg.CallbackURL = getEnv("CALLBACK_URL", "")
	if cfg.CallbackURL == "" && cfg.PublicURL != "" {
		cfg.CallbackURL = strings.TrimRight(cfg.PublicURL, "/") + callbackPath
	}
	cfg.AI.CallbackURL = cfg.CallbackURL

	return cfg, nil
}

// Validate checks what the server needs to submit jobs.
func (c *Config) Validate() error {
	if c.AI.HumeAPIKey == "" {
		return errors.New("HUME_API_KEY is required")
	}
	if c.CallbackURL == "" {
		return errors.New("HUMETUBE_API_URL or CALLBACK_URL is required to receive predictions")
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid callback URL %q", c.CallbackURL)
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid %s=%q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid %s=%q, using %t", key, value, defaultValue)
	}
	return defaultValue
}
