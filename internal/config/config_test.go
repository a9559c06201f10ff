package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TEMPMAIL_CONFIG_FILE",
	"TEMPMAIL_SERVER_HOST",
	"TEMPMAIL_SERVER_PORT",
	"TEMPMAIL_ADDRESS_DOMAINS",
	"TEMPMAIL_ADDRESS_LIFETIME",
	"TEMPMAIL_ADDRESS_ALLOW_CUSTOM_USERNAMES",
	"TEMPMAIL_ADDRESS_RESERVED_USERNAMES",
	"TEMPMAIL_ADDRESS_MAX_EMAILS_PER_ADDRESS",
	"TEMPMAIL_LIFECYCLE_CLEANUP_INTERVAL",
	"TEMPMAIL_LIFECYCLE_PURGE_ORPHANS",
	"TEMPMAIL_DATABASE_TYPE",
	"TEMPMAIL_DATABASE_DSN",
	"TEMPMAIL_CACHE_DRIVER",
	"TEMPMAIL_REDIS_ADDRESS",
	"TEMPMAIL_LOG_LEVEL",
	"TEMPMAIL_LOG_DEVELOPMENT",
}

// clearEnv 清除相关环境变量，测试结束后由 t.Setenv 自动恢复
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, []string{"tempmail.local"}, cfg.Address.Domains)
		assert.Equal(t, 24*time.Hour, cfg.Address.Lifetime)
		assert.True(t, cfg.Address.AllowCustomUsernames)
		assert.Equal(t, 3, cfg.Address.MinUsernameLength)
		assert.Equal(t, 64, cfg.Address.MaxUsernameLength)
		assert.Equal(t, DefaultReservedUsernames, cfg.Address.ReservedUsernames)
		assert.Equal(t, 100, cfg.Address.MaxEmailsPerAddress)
		assert.Equal(t, time.Hour, cfg.Lifecycle.CleanupInterval)
		assert.False(t, cfg.Lifecycle.PurgeOrphans)
		assert.True(t, cfg.Validation.CheckDKIM)
		assert.True(t, cfg.Validation.CheckSPF)
		assert.True(t, cfg.Validation.CheckDMARC)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, "local", cfg.Cache.Driver)
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, 4, cfg.Delivery.Workers)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_SERVER_PORT", "9090")
		t.Setenv("TEMPMAIL_ADDRESS_DOMAINS", "Mail.Example.com, temp.dev,mail.example.com")
		t.Setenv("TEMPMAIL_ADDRESS_LIFETIME", "2h")
		t.Setenv("TEMPMAIL_ADDRESS_ALLOW_CUSTOM_USERNAMES", "false")
		t.Setenv("TEMPMAIL_ADDRESS_RESERVED_USERNAMES", "boss, ceo")
		t.Setenv("TEMPMAIL_LIFECYCLE_CLEANUP_INTERVAL", "15m")
		t.Setenv("TEMPMAIL_LIFECYCLE_PURGE_ORPHANS", "true")
		t.Setenv("TEMPMAIL_LOG_LEVEL", "DEBUG")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"mail.example.com", "temp.dev"}, cfg.Address.Domains)
		assert.Equal(t, 2*time.Hour, cfg.Address.Lifetime)
		assert.False(t, cfg.Address.AllowCustomUsernames)
		assert.Equal(t, []string{"boss", "ceo"}, cfg.Address.ReservedUsernames)
		assert.Equal(t, 15*time.Minute, cfg.Lifecycle.CleanupInterval)
		assert.True(t, cfg.Lifecycle.PurgeOrphans)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("读取 YAML 配置文件", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`
address:
  domains:
    - tempmail.example.com
    - mail.example.org
  lifetime: 30m
lifecycle:
  cleanup_interval: 5m
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))
		t.Setenv("TEMPMAIL_CONFIG_FILE", path)

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, []string{"tempmail.example.com", "mail.example.org"}, cfg.Address.Domains)
		assert.Equal(t, 30*time.Minute, cfg.Address.Lifetime)
		assert.Equal(t, 5*time.Minute, cfg.Lifecycle.CleanupInterval)
	})

	t.Run("无效的有效期格式", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_ADDRESS_LIFETIME", "forever")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法数据库类型", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "oracle")
		t.Setenv("TEMPMAIL_DATABASE_DSN", "whatever")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("数据库类型缺少 DSN", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_DATABASE_TYPE", "postgres")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("redis 缓存需要地址", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TEMPMAIL_CACHE_DRIVER", "redis")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"单个值", "value1", []string{"value1"}},
		{"多个值", "value1,value2,value3", []string{"value1", "value2", "value3"}},
		{"带空格", " value1 , value2 ", []string{"value1", "value2"}},
		{"空字符串", "", []string{}},
		{"只有逗号", ",,", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseList(tt.input))
		})
	}
}
