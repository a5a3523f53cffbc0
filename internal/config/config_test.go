package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnvFiles(t *testing.T, files ...string) {
	t.Helper()
	prev := EnvFiles
	EnvFiles = files
	t.Cleanup(func() { EnvFiles = prev })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withEnvFiles(t, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendSupabase, cfg.LedgerBackend)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)
	assert.Equal(t, 60*time.Second, cfg.OllamaTimeout)
	assert.Equal(t, 3001, cfg.WebPort)
	assert.Equal(t, PolicyQueue, cfg.ReminderPolicy)
	assert.Equal(t, 4, cfg.ReminderConcurrency)

	hour, minute, err := cfg.ReminderClock()
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 0, minute)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3001"}, cfg.AllowedOrigins())
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(file, []byte("TELEGRAM_TOKEN=from-file\nLEDGER_BACKEND=postgres\nDATABASE_URL=postgres://localhost/lazzy\nWEB_PORT=8080\n"), 0o600))
	withEnvFiles(t, file)
	t.Cleanup(func() {
		for _, key := range []string{"LEDGER_BACKEND", "DATABASE_URL", "WEB_PORT"} {
			os.Unsetenv(key)
		}
	})

	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("REMINDER_TIME", "07:30")
	t.Setenv("OLLAMA_TIMEOUT", "15s")
	t.Setenv("REMINDER_POLICY", "first")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, BackendPostgres, cfg.LedgerBackend)
	assert.Equal(t, 8080, cfg.WebPort)
	assert.Equal(t, 15*time.Second, cfg.OllamaTimeout)
	assert.Equal(t, PolicyFirst, cfg.ReminderPolicy)

	hour, minute, err := cfg.ReminderClock()
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 30, minute)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{TelegramToken: "t", SupabaseURL: "u", SupabaseKey: "k"}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.TelegramToken = "" }, wantErr: ErrMissingConfig},
		{name: "missing supabase key", mutate: func(c *Config) { c.SupabaseKey = "" }, wantErr: ErrMissingConfig},
		{name: "postgres without url", mutate: func(c *Config) { c.LedgerBackend = BackendPostgres }, wantErr: ErrMissingConfig},
		{name: "unknown backend", mutate: func(c *Config) { c.LedgerBackend = "mongo" }, wantErr: ErrInvalidConfig},
		{name: "bad reminder time", mutate: func(c *Config) { c.ReminderTime = "25:00" }, wantErr: ErrInvalidConfig},
		{name: "bad policy", mutate: func(c *Config) { c.ReminderPolicy = "parallel" }, wantErr: ErrInvalidConfig},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
