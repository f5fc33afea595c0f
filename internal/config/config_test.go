package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "facture_workflow", cfg.Database.Name)
	assert.Equal(t, 15, cfg.JWT.AccessTokenMins)
	assert.Equal(t, 7, cfg.JWT.RefreshTokenDays)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 7, cfg.Workflow.UrgencyThresholdDays)
	assert.Equal(t, 20.0, cfg.Workflow.DefaultVATRate)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.Same(t, cfg, AppConfig)
}

func TestLoadUsesModePrefix(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_DB_DRIVER", "postgres")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("DEV_DB_HOST", "localhost-dev")
	t.Setenv("PROD_JWT_SECRET", "s3cret")
	t.Setenv("PROD_JWT_REFRESH_SECRET", "r3fresh")
	t.Setenv("PROD_REDIS_ADDR", "cache:6379")
	t.Setenv("WORKFLOW_URGENCY_THRESHOLD_DAYS", "5")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://factures.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, 5, cfg.Workflow.UrgencyThresholdDays)
	assert.Equal(t, "https://factures.example.com", cfg.GetAllowedOrigins())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mode", map[string]string{"APP_MODE": "staging"}},
		{"driver", map[string]string{"APP_MODE": "dev", "DEV_DB_DRIVER": "oracle"}},
		{"threshold", map[string]string{"APP_MODE": "dev", "WORKFLOW_URGENCY_THRESHOLD_DAYS": "-1"}},
		{"vat", map[string]string{"APP_MODE": "dev", "WORKFLOW_DEFAULT_VAT_RATE": "120"}},
		{"prod default secrets", map[string]string{"APP_MODE": "prod"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestUploadLimitIsCapped(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("UPLOAD_MAX_BYTES", "52428800")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
}
