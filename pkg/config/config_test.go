package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orgaccess.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: "9000"
database:
  url: postgres://localhost/orgaccess
  max_conns: 5
cache:
  backend: lru
  ttl: 30s
users:
  fields:
    real_name: true
    phone: true
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "9000", cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5, cfg.Database.MaxConns)
		assert.Equal(t, permcache.BackendLRU, cfg.Cache.Backend)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
		assert.True(t, cfg.Users.Fields.RealName)
		assert.True(t, cfg.Users.Fields.Phone)
		assert.False(t, cfg.Users.Fields.Avatar)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://file/orgaccess\n")
		t.Setenv("ORGACCESS_DATABASE_URL", "postgres://env/orgaccess")
		t.Setenv("ORGACCESS_PORT", "7070")
		t.Setenv("ORGACCESS_CACHE_TTL", "1m")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "postgres://env/orgaccess", cfg.Database.URL)
		assert.Equal(t, "7070", cfg.Server.Port)
		assert.Equal(t, time.Minute, cfg.Cache.TTL)
	})

	t.Run("missing database url", func(t *testing.T) {
		_, err := Load("")
		assert.ErrorContains(t, err, "database url is required")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: ["))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/orgaccess"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with url", mutate: func(*Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "min above max", mutate: func(c *Config) { c.Database.MinConns = 50 }, wantErr: true},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Backend = permcache.BackendRedis }, wantErr: true},
		{name: "refresh without auto detect", mutate: func(c *Config) { c.Users.RefreshSchedule = "0 * * * *" }, wantErr: true},
		{
			name: "bad refresh schedule",
			mutate: func(c *Config) {
				c.Users.AutoDetect = true
				c.Users.RefreshSchedule = "every hour"
			},
			wantErr: true,
		},
		{
			name: "hourly refresh",
			mutate: func(c *Config) {
				c.Users.AutoDetect = true
				c.Users.RefreshSchedule = "0 * * * *"
			},
		},
		{name: "bad log format", mutate: func(c *Config) { c.Observability.LogFormat = "xml" }, wantErr: true},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTel.Enabled = true
				c.Observability.OTel.Endpoint = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseUserFields(t *testing.T) {
	uc := parseUserFields("real_name, Avatar,unknown")
	assert.False(t, uc.AutoDetect)
	assert.True(t, uc.Fields.RealName)
	assert.True(t, uc.Fields.Avatar)
	assert.False(t, uc.Fields.Phone)

	assert.True(t, parseUserFields("auto").AutoDetect)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ORGACCESS_TEST_BOOL", "1")
	t.Setenv("ORGACCESS_TEST_INT", "notanint")
	t.Setenv("ORGACCESS_TEST_DURATION", "250ms")

	assert.True(t, getEnvBool("ORGACCESS_TEST_BOOL", false))
	assert.Equal(t, 7, getEnvInt("ORGACCESS_TEST_INT", 7))
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("ORGACCESS_TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("ORGACCESS_TEST_UNSET", "fallback"))
}
