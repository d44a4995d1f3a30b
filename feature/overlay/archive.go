package overlay

import (
	"bytes"
	"context"
	"path"

	"overlay-engine/core/storage"
	"overlay-engine/feature/catalog"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ArchivingStore mirrors every overlay actually written to object storage.
// Upload failures are logged and never fail the write.
type ArchivingStore struct {
	Store
	client storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewArchivingStore wraps inner with an object storage mirror.
func NewArchivingStore(inner Store, client storage.Client, bucket, prefix string, logger *zap.Logger) *ArchivingStore {
	return &ArchivingStore{Store: inner, client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Upsert implements Store.
func (a *ArchivingStore) Upsert(ctx context.Context, kind catalog.Kind, records []Record) ([]Record, error) {
	written, err := a.Store.Upsert(ctx, kind, records)
	if err != nil {
		return written, err
	}
	for _, r := range written {
		name := ObjectName(a.prefix, r)
		_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(r.Body), int64(len(r.Body)),
			minio.PutObjectOptions{ContentType: "application/json"})
		if err != nil {
			a.logger.Warn("Failed to archive overlay", zap.String("object", name), zap.Error(err))
		}
	}
	return written, nil
}

// ObjectName is the archive location of an overlay:
// {prefix}/{tier}/{kind}/{category}/{key}.json.
func ObjectName(prefix string, r Record) string {
	return path.Join(prefix, r.Tier.String(), string(r.Target.Kind), r.Target.Category, r.Target.Key+".json")
}
