package db

import (
	"context"

	"github.com/markdave123-py/Extracta/internal/models"
)

// ChunkDB defines the persistence operations the ingestion path needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type ChunkDB interface {
	UpsertChunkRows(ctx context.Context, rows []models.ChunkRow) error
	GetChunksByFile(ctx context.Context, userID, chatID, fileName string) ([]models.ChunkRow, error)
	SearchChunks(ctx context.Context, userID, chatID string, queryVec []float32, limit int) ([]models.ChunkRow, error)
	DeleteChunksByFile(ctx context.Context, userID, chatID, fileName string) error

	Close() error
}
