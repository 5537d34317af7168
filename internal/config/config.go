// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // groq | openai | gemini | anthropic
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	GeminiModel     string        `yaml:"gemini_model"`
	AnthropicKey    string        `yaml:"anthropic_key"`
	AnthropicURL    string        `yaml:"anthropic_url"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type ScrapeConfig struct {
	FirecrawlKey string        `yaml:"firecrawl_key"`
	FirecrawlURL string        `yaml:"firecrawl_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	Watch   bool   `yaml:"watch"` // reload when data files are edited on disk
}

type PlannerConfig struct {
	HoursPerDay          int    `yaml:"hours_per_day"`
	RiskThreshold        int    `yaml:"risk_threshold"`
	NotificationLeadDays int    `yaml:"notification_lead_days"`
	SemesterStart        string `yaml:"semester_start"`

	// ReminderInterval is how often due deadlines are checked; negative disables the watcher.
	ReminderInterval time.Duration `yaml:"reminder_interval"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	AI      AIConfig      `yaml:"ai"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Storage StorageConfig `yaml:"storage"`
	Planner PlannerConfig `yaml:"planner"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and defaults.
// A missing file is not an error; the service runs on defaults plus environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	switch cfg.AI.Provider {
	case "groq", "openai", "gemini", "anthropic":
	default:
		return nil, fmt.Errorf("ai.provider %q is not supported", cfg.AI.Provider)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setIfEnv(&cfg.AI.APIKey, "GROQ_API_KEY")
	setIfEnv(&cfg.AI.Model, "GROQ_MODEL")
	setIfEnv(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setIfEnv(&cfg.AI.AnthropicKey, "ANTHROPIC_API_KEY")
	setIfEnv(&cfg.Scrape.FirecrawlKey, "FIRECRAWL_API_KEY")
	setIfEnv(&cfg.Storage.DataDir, "COURSESYNC_DATA_DIR")
}

func setIfEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout <= 0 {
		// long enough for five LLM attempts with backoff
		cfg.Server.RequestTimeout = 3 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "groq"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "llama-3.3-70b-versatile"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.AnthropicModel == "" {
		cfg.AI.AnthropicModel = "claude-3-5-haiku-latest"
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 5
	}
	if cfg.AI.BaseDelay <= 0 {
		cfg.AI.BaseDelay = time.Second
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 30 * time.Second
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 2000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Scrape.FirecrawlURL == "" {
		cfg.Scrape.FirecrawlURL = "https://api.firecrawl.dev/v0/scrape"
	}
	if cfg.Scrape.Timeout <= 0 {
		cfg.Scrape.Timeout = 30 * time.Second
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}

	if cfg.Planner.HoursPerDay <= 0 {
		cfg.Planner.HoursPerDay = 4
	}
	if cfg.Planner.RiskThreshold <= 0 {
		cfg.Planner.RiskThreshold = 20
	}
	if cfg.Planner.NotificationLeadDays <= 0 {
		cfg.Planner.NotificationLeadDays = 3
	}
	if cfg.Planner.SemesterStart == "" {
		cfg.Planner.SemesterStart = "2025-09-01"
	}
	if cfg.Planner.ReminderInterval == 0 {
		cfg.Planner.ReminderInterval = time.Minute
	}
}
