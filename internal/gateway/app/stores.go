package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"nodeflow/internal/gateway/config"
	"nodeflow/internal/gateway/repository/runrecord"
	"nodeflow/internal/upload"
)

type gatewayStores struct {
	runs     runrecord.Store
	uploader upload.Uploader
	db       *sql.DB
}

func (s *gatewayStores) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	uploader, err := chooseUploader(cfg)
	if err != nil {
		return nil, err
	}
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		log.Printf("run records: postgres")
		return &gatewayStores{runs: runrecord.NewPostgresStore(db), uploader: uploader, db: db}, nil
	}
	log.Printf("run records: in-memory")
	return &gatewayStores{runs: runrecord.NewMemoryStore(), uploader: uploader}, nil
}

// chooseUploader prefers the hosted assembly service and falls back to the
// S3 bucket. With neither configured uploads are disabled.
func chooseUploader(cfg *config.Config) (upload.Uploader, error) {
	if cfg.Upload.Enabled() {
		signer := &upload.HMACSigner{
			Key:        cfg.Upload.Key,
			Secret:     cfg.Upload.Secret,
			TemplateID: cfg.Upload.TemplateID,
		}
		log.Printf("media uploads: assembly service")
		return upload.NewAssemblyClient(cfg.Upload.Endpoint, signer), nil
	}
	if cfg.Artifact.CanUseS3() {
		u, err := upload.NewMinioUploader(upload.MinioConfig{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize media bucket: %w", err)
		}
		log.Printf("media uploads: s3 bucket=%s endpoint=%s", cfg.Artifact.Bucket, cfg.Artifact.Endpoint)
		return u, nil
	}
	return nil, nil
}
