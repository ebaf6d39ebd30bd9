package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Feed source selectors.
const (
	FeedTaxii     = "taxii-server"
	FeedLocalJSON = "local-json"
)

type Config struct {
	DBEngine      string `yaml:"db-engine"` // sqlite3 or postgresql
	DBDSN         string `yaml:"db-dsn"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Build         bool   `yaml:"build"` // run knowledge ingest at startup
	TaxiiLocal    string `yaml:"taxii-local"`
	JSONFile      string `yaml:"json_file"`
	QueueLimit    int    `yaml:"queue_limit"`    // per-owner; <1 means unbounded
	SentenceLimit int    `yaml:"sentence_limit"` // per-report sentence cap
	MaxTasks      int    `yaml:"max_tasks"`      // concurrent analyses
	AttackDict    string `yaml:"attack-dict-path"`
	JSLibraries   string `yaml:"js-libraries"` // UI asset source, passed through to templates
}

func Default() Config {
	return Config{
		DBEngine:      "sqlite3",
		DBDSN:         "thread.db",
		Host:          "127.0.0.1",
		Port:          9999,
		TaxiiLocal:    FeedTaxii,
		QueueLimit:    100,
		SentenceLimit: 750,
		MaxTasks:      1,
		AttackDict:    "models/model_dict.json",
	}
}

// Load reads the yaml config at path (missing file falls back to defaults)
// and applies THREAD_* environment overrides. A .env file, if present, is
// loaded first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("THREAD_DB_ENGINE"); v != "" {
		cfg.DBEngine = v
	}
	if v := os.Getenv("THREAD_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("THREAD_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("THREAD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("THREAD_JSON_FILE"); v != "" {
		cfg.JSONFile = v
	}
	if v := os.Getenv("THREAD_QUEUE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueLimit = n
		}
	}
	if v := os.Getenv("THREAD_SENTENCE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SentenceLimit = n
		}
	}
	if v := os.Getenv("THREAD_MAX_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTasks = n
		}
	}
}

func (c Config) Validate() error {
	switch c.DBEngine {
	case "sqlite3", "postgresql":
	default:
		return fmt.Errorf("unknown db-engine %q", c.DBEngine)
	}
	switch c.TaxiiLocal {
	case FeedTaxii, FeedLocalJSON:
	default:
		return fmt.Errorf("unknown taxii-local %q", c.TaxiiLocal)
	}
	if c.TaxiiLocal == FeedLocalJSON && c.JSONFile == "" {
		return fmt.Errorf("json_file is required with taxii-local: local-json")
	}
	if c.MaxTasks < 1 {
		return fmt.Errorf("max_tasks must be at least 1")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
