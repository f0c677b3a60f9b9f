package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/meetapp")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 5, cfg.NotifyMaxRetry)
	assert.Equal(t, 30*time.Second, cfg.NotifyRetryBase)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, "pt-BR", cfg.DefaultLocale)
	assert.False(t, cfg.Development())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("testdata/missing.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadRejectsUnknownMailDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/meetapp")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAIL_DRIVER", "carrier-pigeon")

	_, err := Load("testdata/missing.env")
	assert.Error(t, err)
}
