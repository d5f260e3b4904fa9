package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_DRIVER", "DB_DSN", "REDIS_ADDR", "REDIS_CHANNEL", "CORS_ORIGINS",
		"CLIENT_QUEUE_SIZE", "CHAT_HISTORY_LIMIT", "POSTGRES_HOST", "POSTGRES_DB",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "collab.db", cfg.DBDSN)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, "collab:rooms", cfg.RedisChannel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 64, cfg.ClientQueueSize)
	assert.Equal(t, 50, cfg.ChatHistoryLimit)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("CLIENT_QUEUE_SIZE", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 8, cfg.ClientQueueSize)
}

func TestLoadConfigPostgresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "collab")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cfg.DBDSN, "host=db "))
	assert.Contains(t, cfg.DBDSN, "dbname=collab")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mysql")
	_, err := LoadConfig()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CLIENT_QUEUE_SIZE", "lots")
	_, err = LoadConfig()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CHAT_HISTORY_LIMIT", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}
