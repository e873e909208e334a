package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markdave123-py/Extracta/internal/core"
	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/models"
)

// VectorStore embeds chunk texts and persists the resulting rows. It is
// the concrete index behind the ingestion path; batching is the caller's
// concern, one Upsert call is one embedding request plus one transaction.
type VectorStore struct {
	db       db.ChunkDB
	embedder core.EmbeddingProvider
	logger   *slog.Logger
}

var _ core.VectorIndex = (*VectorStore)(nil)

func NewVectorStore(chunkDB db.ChunkDB, embedder core.EmbeddingProvider, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{db: chunkDB, embedder: embedder, logger: logger}
}

func (s *VectorStore) Upsert(ctx context.Context, chunks []models.Chunk, ids []string) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(ids) {
		return fmt.Errorf("chunk/id count mismatch: %d vs %d", len(chunks), len(ids))
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(chunks))
	}

	rows := make([]models.ChunkRow, len(chunks))
	for i := range chunks {
		rows[i] = models.ChunkRow{
			ID:        ids[i],
			Chunk:     chunks[i],
			Embedding: embeddings[i],
		}
	}

	if err := s.db.UpsertChunkRows(ctx, rows); err != nil {
		return fmt.Errorf("upsert chunk rows: %w", err)
	}

	s.logger.Debug("upserted chunk rows", "count", len(rows))
	return nil
}
