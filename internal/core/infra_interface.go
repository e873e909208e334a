package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Extracta/internal/models"
)

// ObjectClient defines interactions with S3-compatible object storage
// (AWS S3, MinIO, ...). Abstract so the backend can be swapped without
// touching the pipeline.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// EmbeddingProvider turns chunk texts into vectors, one per input text.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the opaque upsert capability the pipeline writes to.
// Identical ids overwrite; there is no duplicate-insert path.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []models.Chunk, ids []string) error
}

// ProgressStore bridges extraction jobs and the retrieval endpoint.
// Progress lookups never fail on unknown ids: they return a synthesized
// PENDING record. Results are write-once with a TTL; Result returns
// ErrNoResult for a missing or expired key.
type ProgressStore interface {
	SetProgress(ctx context.Context, fileID string, rec models.ProgressRecord) error
	Progress(ctx context.Context, fileID string) (models.ProgressRecord, error)
	SetResult(ctx context.Context, fileID string, res *models.ExtractionResult) error
	Result(ctx context.Context, fileID string) (*models.ExtractionResult, error)
	Clear(ctx context.Context, fileID string) error
}
