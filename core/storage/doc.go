// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a narrow Client interface. The overlay engine
// uses it to mirror every persisted overlay document into a bucket, where it can be
// served directly by a CDN. Both AWS S3 and self-hosted MinIO are supported.
//
// The Client interface keeps storage interactions mockable (see core/storage/mocks).
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	err = storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region)
package storage
