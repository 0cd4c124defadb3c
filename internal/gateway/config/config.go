package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DispatchLocal  = "local"
	DispatchRemote = "remote"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	CORSOrigins []string
	LLM         LLMConfig
	Dispatch    DispatchConfig
	Poll        PollConfig
	Media       MediaConfig
	Upload      UploadConfig
	Artifact    ArtifactConfig
}

type LLMConfig struct {
	APIKey string
	Model  string
	RPS    float64
	Burst  int
	// Fake swaps the generation backend for a deterministic stub.
	Fake bool
}

type DispatchConfig struct {
	Mode              string
	TriggerURL        string
	TriggerSecret     string
	TriggerTaskID     string
	WorkerConcurrency int
	WorkerJobTimeout  time.Duration
}

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

type MediaConfig struct {
	CacheEntries int
	FetchTimeout time.Duration
	Concurrency  int
}

// UploadConfig selects the hosted assembly service for media uploads.
type UploadConfig struct {
	Endpoint   string
	Key        string
	Secret     string
	TemplateID string
}

func (c UploadConfig) Enabled() bool {
	return strings.TrimSpace(c.Key) != "" && strings.TrimSpace(c.Secret) != ""
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c ArtifactConfig) CanUseS3() bool {
	return c.Enabled &&
		strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}
	cfg := FromEnv()
	cfg.Port = *port
	return cfg, nil
}

// FromEnv reads everything except the listen port from the environment.
func FromEnv() *Config {
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}
	return &Config{
		Port:        ":8081",
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LLM: LLMConfig{
			APIKey: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))),
			Model:  firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.5-flash"),
			RPS:    envFloat("LLM_RPS", 1),
			Burst:  envInt("LLM_BURST", 1),
			Fake:   envBool("LLM_FAKE", false),
		},
		Dispatch: DispatchConfig{
			Mode:              strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("DISPATCH_MODE")), DispatchLocal)),
			TriggerURL:        firstNonEmpty(strings.TrimSpace(os.Getenv("TRIGGER_API_URL")), "https://api.trigger.dev"),
			TriggerSecret:     strings.TrimSpace(os.Getenv("TRIGGER_SECRET_KEY")),
			TriggerTaskID:     firstNonEmpty(strings.TrimSpace(os.Getenv("TRIGGER_TASK_ID")), "gemini-generate"),
			WorkerConcurrency: envInt("WORKER_CONCURRENCY", 4),
			WorkerJobTimeout:  envDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),
		},
		Poll: PollConfig{
			Interval:    envDuration("RUN_POLL_INTERVAL", time.Second),
			MaxAttempts: envInt("RUN_POLL_MAX_ATTEMPTS", 15),
		},
		Media: MediaConfig{
			CacheEntries: envInt("MEDIA_CACHE_ENTRIES", 128),
			FetchTimeout: envDuration("MEDIA_FETCH_TIMEOUT", 30*time.Second),
			Concurrency:  envInt("MEDIA_FETCH_CONCURRENCY", 4),
		},
		Upload: UploadConfig{
			Endpoint:   strings.TrimSpace(os.Getenv("UPLOAD_ENDPOINT")),
			Key:        firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_KEY")), strings.TrimSpace(os.Getenv("TRANSLOADIT_KEY"))),
			Secret:     firstNonEmpty(strings.TrimSpace(os.Getenv("UPLOAD_SECRET")), strings.TrimSpace(os.Getenv("TRANSLOADIT_SECRET"))),
			TemplateID: strings.TrimSpace(os.Getenv("UPLOAD_TEMPLATE_ID")),
		},
		Artifact: loadArtifactConfig(env),
	}
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "nodeflow-media"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("ARTIFACT_S3_USE_SSL", true)
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
