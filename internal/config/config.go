// Package config layers defaults, an optional YAML file, and environment
// variables into the runtime configuration. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the auros service.
type Config struct {
	ListenAddr string
	DBPath     string

	Ollama      OllamaConfig
	Slack       SlackConfig
	Scheduler   SchedulerConfig
	Scrape      ScrapeConfig
	Preferences PreferencesConfig
	API         APIConfig
}

// OllamaConfig points at the local model server used for extraction and
// salary estimation.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// SlackConfig controls match notifications. An empty webhook URL disables
// Slack delivery.
type SlackConfig struct {
	WebhookURL string
	MinScore   float64 // notify only at or above this match score
}

// SchedulerConfig controls the automatic scan schedule.
type SchedulerConfig struct {
	Hours    string // comma-separated hours of day, e.g. "6,12,18"
	Timezone string
	Disabled bool
}

// ScrapeConfig bounds the scraper's politeness and fan-out.
type ScrapeConfig struct {
	DelayMinSeconds    int
	DelayMaxSeconds    int
	MaxConcurrentPages int
	AllowedDomains     []string // ATS hosts a careers page may link out to
}

// PreferencesConfig holds scoring preferences.
type PreferencesConfig struct {
	WorkMode            string // any|remote|hybrid|onsite
	MinSalaryConfidence float64
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Key                string // empty disables auth
	CORSOrigins        []string
	RateLimitPerMinute int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr: ":4000",
		DBPath:     "data/auros.db",
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5-coder:7b",
		},
		Slack: SlackConfig{
			MinScore: 0.70,
		},
		Scheduler: SchedulerConfig{
			Hours:    "6,12,18",
			Timezone: "America/Chicago",
		},
		Scrape: ScrapeConfig{
			DelayMinSeconds:    5,
			DelayMaxSeconds:    10,
			MaxConcurrentPages: 3,
			AllowedDomains: []string{
				"greenhouse.io",
				"boards.greenhouse.io",
				"boards-api.greenhouse.io",
				"lever.co",
				"jobs.lever.co",
				"api.lever.co",
				"myworkdayjobs.com",
				"workdayjobs.com",
				"ashbyhq.com",
				"rippling.com",
				"jobs.jobvite.com",
				"smartrecruiters.com",
			},
		},
		Preferences: PreferencesConfig{
			WorkMode:            "any",
			MinSalaryConfidence: 0.60,
		},
		API: APIConfig{
			CORSOrigins:        []string{"http://localhost:5173", "http://localhost:4001"},
			RateLimitPerMinute: 60,
		},
	}
}

// rawConfig mirrors the YAML layout (snake_case, optional fields).
type rawConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	Ollama struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"ollama"`

	Slack struct {
		WebhookURL string   `yaml:"webhook_url"`
		MinScore   *float64 `yaml:"min_score"`
	} `yaml:"slack"`

	Scheduler struct {
		Hours    string `yaml:"hours"`
		Timezone string `yaml:"timezone"`
		Disabled *bool  `yaml:"disabled"`
	} `yaml:"scheduler"`

	Scrape struct {
		DelayMinSeconds    *int     `yaml:"delay_min_seconds"`
		DelayMaxSeconds    *int     `yaml:"delay_max_seconds"`
		MaxConcurrentPages *int     `yaml:"max_concurrent_pages"`
		AllowedDomains     []string `yaml:"allowed_domains"`
	} `yaml:"scrape"`

	Preferences struct {
		WorkMode            string   `yaml:"work_mode"`
		MinSalaryConfidence *float64 `yaml:"min_salary_confidence"`
	} `yaml:"preferences"`

	API struct {
		Key                string   `yaml:"key"`
		CORSOrigins        []string `yaml:"cors_origins"`
		RateLimitPerMinute *int     `yaml:"rate_limit_per_minute"`
	} `yaml:"api"`
}

// Load builds the configuration: defaults, then the YAML file at path if
// one is given, then environment variable overrides. Environment variables
// referenced inside the YAML are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))

		var raw rawConfig
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		applyFile(cfg, &raw)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw *rawConfig) {
	setString(&cfg.ListenAddr, raw.ListenAddr)
	setString(&cfg.DBPath, raw.DBPath)
	setString(&cfg.Ollama.BaseURL, raw.Ollama.BaseURL)
	setString(&cfg.Ollama.Model, raw.Ollama.Model)
	setString(&cfg.Slack.WebhookURL, raw.Slack.WebhookURL)
	if raw.Slack.MinScore != nil {
		cfg.Slack.MinScore = *raw.Slack.MinScore
	}
	setString(&cfg.Scheduler.Hours, raw.Scheduler.Hours)
	setString(&cfg.Scheduler.Timezone, raw.Scheduler.Timezone)
	if raw.Scheduler.Disabled != nil {
		cfg.Scheduler.Disabled = *raw.Scheduler.Disabled
	}
	if raw.Scrape.DelayMinSeconds != nil {
		cfg.Scrape.DelayMinSeconds = *raw.Scrape.DelayMinSeconds
	}
	if raw.Scrape.DelayMaxSeconds != nil {
		cfg.Scrape.DelayMaxSeconds = *raw.Scrape.DelayMaxSeconds
	}
	if raw.Scrape.MaxConcurrentPages != nil {
		cfg.Scrape.MaxConcurrentPages = *raw.Scrape.MaxConcurrentPages
	}
	if len(raw.Scrape.AllowedDomains) > 0 {
		cfg.Scrape.AllowedDomains = raw.Scrape.AllowedDomains
	}
	setString(&cfg.Preferences.WorkMode, raw.Preferences.WorkMode)
	if raw.Preferences.MinSalaryConfidence != nil {
		cfg.Preferences.MinSalaryConfidence = *raw.Preferences.MinSalaryConfidence
	}
	setString(&cfg.API.Key, raw.API.Key)
	if len(raw.API.CORSOrigins) > 0 {
		cfg.API.CORSOrigins = raw.API.CORSOrigins
	}
	if raw.API.RateLimitPerMinute != nil {
		cfg.API.RateLimitPerMinute = *raw.API.RateLimitPerMinute
	}
}

func applyEnv(cfg *Config) error {
	envString(&cfg.ListenAddr, "LISTEN_ADDR")
	envString(&cfg.DBPath, "DATABASE_PATH")
	envString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL")
	envString(&cfg.Ollama.Model, "OLLAMA_MODEL")
	envString(&cfg.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
	envString(&cfg.Scheduler.Hours, "SCAN_SCHEDULE_HOURS")
	envString(&cfg.Scheduler.Timezone, "SCAN_TIMEZONE")
	envString(&cfg.Preferences.WorkMode, "PREFERRED_WORK_MODE")
	envString(&cfg.API.Key, "API_KEY")
	envList(&cfg.Scrape.AllowedDomains, "ATS_ALLOWED_DOMAINS")
	envList(&cfg.API.CORSOrigins, "CORS_ORIGINS")

	for _, numeric := range []struct {
		key string
		set func(string) error
	}{
		{"SLACK_MIN_SCORE", floatSetter(&cfg.Slack.MinScore)},
		{"MIN_SALARY_CONFIDENCE", floatSetter(&cfg.Preferences.MinSalaryConfidence)},
		{"SCRAPE_DELAY_MIN", intSetter(&cfg.Scrape.DelayMinSeconds)},
		{"SCRAPE_DELAY_MAX", intSetter(&cfg.Scrape.DelayMaxSeconds)},
		{"MAX_CONCURRENT_PAGES", intSetter(&cfg.Scrape.MaxConcurrentPages)},
		{"API_RATE_LIMIT_PER_MINUTE", intSetter(&cfg.API.RateLimitPerMinute)},
		{"DISABLE_SCHEDULER", boolSetter(&cfg.Scheduler.Disabled)},
	} {
		if v, ok := os.LookupEnv(numeric.key); ok && v != "" {
			if err := numeric.set(v); err != nil {
				return fmt.Errorf("parse %s: %w", numeric.key, err)
			}
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Scrape.DelayMinSeconds < 0 {
		return fmt.Errorf("scrape delay min must be non-negative, got %d", cfg.Scrape.DelayMinSeconds)
	}
	if cfg.Scrape.DelayMaxSeconds < cfg.Scrape.DelayMinSeconds {
		return fmt.Errorf("scrape delay max %d is below min %d",
			cfg.Scrape.DelayMaxSeconds, cfg.Scrape.DelayMinSeconds)
	}
	if cfg.Scrape.MaxConcurrentPages < 1 {
		return fmt.Errorf("max concurrent pages must be at least 1, got %d", cfg.Scrape.MaxConcurrentPages)
	}
	if cfg.Slack.MinScore < 0 || cfg.Slack.MinScore > 1 {
		return fmt.Errorf("slack min score must be in [0,1], got %v", cfg.Slack.MinScore)
	}
	if cfg.Preferences.MinSalaryConfidence < 0 || cfg.Preferences.MinSalaryConfidence > 1 {
		return fmt.Errorf("min salary confidence must be in [0,1], got %v", cfg.Preferences.MinSalaryConfidence)
	}
	if cfg.API.RateLimitPerMinute < 1 {
		return fmt.Errorf("api rate limit must be at least 1 per minute, got %d", cfg.API.RateLimitPerMinute)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		*dst = items
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}
