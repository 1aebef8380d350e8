package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiry())
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "Team Turnout Tracker", cfg.Branding.DefaultAppName)
	assert.Equal(t, int64(50<<20), cfg.Import.MaxUploadBytes())
	assert.Equal(t, "uploads/imports", cfg.Import.StagingDir)
	assert.Equal(t, 24*time.Hour, cfg.Import.StagingTTL())
	assert.Empty(t, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_PUBLIC_URL", "https://turnout.example.org/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.org, ,https://b.example.org")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("UPLOADS_DIR", "/var/lib/turnout")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "logos")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://turnout.example.org", cfg.Server.PublicURL)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry())
	assert.Equal(t, "/var/lib/turnout/imports", cfg.Import.StagingDir)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "logos", cfg.Storage.S3.Bucket)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=require", d.DSN())
}
