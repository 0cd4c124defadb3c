package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL", "DISPATCH_MODE", "RUN_POLL_INTERVAL", "RUN_POLL_MAX_ATTEMPTS", "UPLOAD_KEY", "TRANSLOADIT_KEY", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, DispatchLocal, cfg.Dispatch.Mode)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.Equal(t, 15, cfg.Poll.MaxAttempts)
	assert.False(t, cfg.Upload.Enabled())
	assert.Equal(t, "minio:9000", cfg.Artifact.Endpoint)
	assert.False(t, cfg.Artifact.UseSSL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("DISPATCH_MODE", "REMOTE")
	t.Setenv("RUN_POLL_INTERVAL", "250ms")
	t.Setenv("RUN_POLL_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.example.com")
	t.Setenv("ARTIFACT_S3_USE_SSL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := FromEnv()
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, DispatchRemote, cfg.Dispatch.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 15, cfg.Poll.MaxAttempts)
	assert.Equal(t, "s3.example.com", cfg.Artifact.Endpoint)
	assert.True(t, cfg.Artifact.UseSSL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
