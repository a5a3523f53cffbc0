package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// EnvFiles are loaded in order before reading the environment. Variables
// already set in the process environment win.
var EnvFiles = []string{".env.local", ".env"}

const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"

	PolicyQueue = "queue"
	PolicyFirst = "first"
)

type Config struct {
	TelegramToken string `koanf:"TELEGRAM_TOKEN"`

	// LedgerBackend selects where users, transactions and recurring rules
	// live: "supabase" (default) or "postgres".
	LedgerBackend string `koanf:"LEDGER_BACKEND"`
	SupabaseURL   string `koanf:"SUPABASE_URL"`
	SupabaseKey   string `koanf:"SUPABASE_KEY"`
	DatabaseURL   string `koanf:"DATABASE_URL"`

	OllamaBaseURL string        `koanf:"OLLAMA_BASE_URL"`
	OllamaModel   string        `koanf:"OLLAMA_MODEL"`
	OllamaTimeout time.Duration `koanf:"OLLAMA_TIMEOUT"`

	WebPort           int    `koanf:"WEB_PORT"`
	WebBaseURL        string `koanf:"WEB_BASE_URL"`
	WebAllowedOrigins string `koanf:"WEB_ALLOWED_ORIGINS"`

	// ReminderTime is the local HH:MM at which recurring rules are checked.
	ReminderTime        string `koanf:"REMINDER_TIME"`
	ReminderPolicy      string `koanf:"REMINDER_POLICY"`
	ReminderConcurrency int    `koanf:"REMINDER_CONCURRENCY"`
	Timezone            string `koanf:"TIMEZONE"`

	ExportDir string `koanf:"EXPORT_DIR"`

	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// LoadConfig reads .env files and the environment into a validated Config.
func LoadConfig() (*Config, error) {
	for _, file := range EnvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LedgerBackend == "" {
		c.LedgerBackend = BackendSupabase
	}
	if c.OllamaBaseURL == "" {
		c.OllamaBaseURL = "http://localhost:11434"
	}
	if c.OllamaModel == "" {
		c.OllamaModel = "llama2"
	}
	if c.OllamaTimeout == 0 {
		c.OllamaTimeout = 60 * time.Second
	}
	if c.WebPort == 0 {
		c.WebPort = 3001
	}
	if c.WebBaseURL == "" {
		c.WebBaseURL = "http://localhost:5173"
	}
	if c.WebAllowedOrigins == "" {
		c.WebAllowedOrigins = "http://localhost:5173,http://localhost:3001"
	}
	if c.ReminderTime == "" {
		c.ReminderTime = "09:00"
	}
	if c.ReminderPolicy == "" {
		c.ReminderPolicy = PolicyQueue
	}
	if c.ReminderConcurrency == 0 {
		c.ReminderConcurrency = 4
	}
	if c.Timezone == "" {
		c.Timezone = "America/Sao_Paulo"
	}
	if c.ExportDir == "" {
		c.ExportDir = "exports"
	}
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN", ErrMissingConfig)
	}

	switch c.LedgerBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("%w: SUPABASE_URL and SUPABASE_KEY", ErrMissingConfig)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL", ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: LEDGER_BACKEND %q", ErrInvalidConfig, c.LedgerBackend)
	}

	if _, _, err := c.ReminderClock(); err != nil {
		return err
	}
	if c.ReminderPolicy != PolicyQueue && c.ReminderPolicy != PolicyFirst {
		return fmt.Errorf("%w: REMINDER_POLICY %q", ErrInvalidConfig, c.ReminderPolicy)
	}
	if c.ReminderConcurrency < 1 {
		return fmt.Errorf("%w: REMINDER_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: TIMEZONE %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ReminderClock parses ReminderTime into hour and minute.
func (c *Config) ReminderClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.ReminderTime))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: REMINDER_TIME %q", ErrInvalidConfig, c.ReminderTime)
	}
	return t.Hour(), t.Minute(), nil
}

// AllowedOrigins splits WebAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.WebAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
