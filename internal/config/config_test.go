package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_DB_DSN", "postgres://catalog@localhost/catalog")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "library-catalog", cfg.Session.Issuer)
	assert.Equal(t, 336*time.Hour, cfg.Session.Expiry)
	assert.Equal(t, 5, cfg.Login.Burst)
	assert.True(t, cfg.EnableMetrics)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CATALOG_DB_DSN", "postgres://x")
	t.Setenv("CATALOG_SESSION_SECRET", "0123456789abcdef0123456789abcdef-test")
	t.Setenv("CATALOG_SESSION_EXPIRY", "2h")
	t.Setenv("CATALOG_CORS_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("CATALOG_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.Session.Expiry)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, zapcore.DebugLevel, cfg.ZapLevel())
	assert.False(t, cfg.UsesDefaultSecret())
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("CATALOG_DB_DSN", "")
	os.Unsetenv("CATALOG_DB_DSN")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReadsDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CATALOG_APP_NAME=From Dotenv\n"), 0o600))
	t.Setenv("CATALOG_DB_DSN", "postgres://x")
	t.Setenv("CATALOG_APP_NAME", "")
	os.Unsetenv("CATALOG_APP_NAME")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "From Dotenv", cfg.AppName)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Session:     SessionConfig{Secret: defaultSecret, Issuer: "iss", Expiry: time.Hour},
		Login:       LoginConfig{Rate: 1, Burst: 1},
		UploadMaxMB: 1,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.Session.Secret = "short" }},
		{"empty issuer", func(c *Config) { c.Session.Issuer = " " }},
		{"zero expiry", func(c *Config) { c.Session.Expiry = 0 }},
		{"zero burst", func(c *Config) { c.Login.Burst = 0 }},
		{"zero upload", func(c *Config) { c.UploadMaxMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadClient(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadClient(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://catalog.example\nusername: alice\ntimeout: 5s\n"), 0o600))
	cfg, err = LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "https://catalog.example", cfg.BaseURL)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	require.NoError(t, os.WriteFile(path, []byte("base_url: x\nbogus: 1\n"), 0o600))
	_, err = LoadClient(path)
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	now := time.Now()

	s := &Session{BaseURL: "http://x", Username: "bob", ProjectPermissions: true}
	s.SetCookies([]*http.Cookie{
		{Name: "sessionid", Value: "abc", Path: "/", Expires: now.Add(time.Hour)},
		{Name: "stale", Value: "zzz", Expires: now.Add(-time.Hour)},
	})
	require.NoError(t, SaveSession(path, s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.Username)
	assert.True(t, loaded.ProjectPermissions)

	cookies := loaded.HTTPCookies(now)
	require.Len(t, cookies, 1)
	assert.Equal(t, "sessionid", cookies[0].Name)

	loaded.Clear()
	assert.Equal(t, "http://x", loaded.BaseURL)
	assert.Empty(t, loaded.Username)
	assert.Empty(t, loaded.Cookies)
}

func TestLoadSessionMissing(t *testing.T) {
	s, err := LoadSession(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Username)
}
