package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", RemoteMemory)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Second, cfg.Remote.RetryBase)
	assert.Equal(t, 3, cfg.Remote.MaxRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.Forms.Debounce)
	assert.Equal(t, "fitforge", cfg.App.Namespace)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", RemotePostgres)
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REMOTE_RETRY_BASE_MS", "250")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.RetryBase)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, DriverPgx, cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	t.Run("firestore needs a project", func(t *testing.T) {
		t.Setenv("REMOTE_BACKEND", RemoteFirestore)
		t.Setenv("FIREBASE_PROJECT_ID", "")
		t.Setenv("FIREBASE_CREDENTIALS_PATH", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("REMOTE_BACKEND", "couchdb")

		_, err := Load()
		assert.ErrorContains(t, err, "unknown REMOTE_BACKEND")
	})

	t.Run("unknown sql driver", func(t *testing.T) {
		t.Setenv("REMOTE_BACKEND", RemotePostgres)
		t.Setenv("DB_DRIVER", "mysql")

		_, err := Load()
		assert.ErrorContains(t, err, "DB_DRIVER")
	})

	t.Run("retries must be positive", func(t *testing.T) {
		t.Setenv("REMOTE_BACKEND", RemoteMemory)
		t.Setenv("REMOTE_MAX_RETRIES", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
