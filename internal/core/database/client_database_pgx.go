package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/Extracta/internal/config"
	"github.com/markdave123-py/Extracta/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ ChunkDB = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (ChunkDB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// UpsertChunkRows writes one batch in a single transaction. Re-ingesting
// the same file produces the same deterministic ids, so conflicting rows
// are overwritten rather than duplicated.
func (c *DatabaseClient) UpsertChunkRows(ctx context.Context, rows []models.ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, content, file_name, user_id, chat_id, page_number, link_path, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
		ON CONFLICT (id) DO UPDATE SET
			content     = EXCLUDED.content,
			file_name   = EXCLUDED.file_name,
			user_id     = EXCLUDED.user_id,
			chat_id     = EXCLUDED.chat_id,
			page_number = EXCLUDED.page_number,
			link_path   = EXCLUDED.link_path,
			embedding   = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range rows {
		r := &rows[i]
		vec := pgvector.NewVector(r.Embedding)
		created := sql.NullTime{Time: r.CreatedAt, Valid: !r.CreatedAt.IsZero()}

		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Content, r.FileName, r.UserID, r.ChatID, r.PageNumber, r.LinkPath, vec, created,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByFile(ctx context.Context, userID, chatID, fileName string) ([]models.ChunkRow, error) {
	const q = `
		SELECT id, content, file_name, user_id, chat_id, page_number, link_path, embedding, created_at
		FROM document_chunks
		WHERE user_id = $1 AND chat_id = $2 AND file_name = $3
		ORDER BY page_number ASC, id ASC
	`
	rows, err := c.db.QueryContext(ctx, q, userID, chatID, fileName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

// SearchChunks finds top-k similar chunks within a conversation for a query embedding.
func (c *DatabaseClient) SearchChunks(ctx context.Context, userID, chatID string, queryVec []float32, limit int) ([]models.ChunkRow, error) {
	const q = `
		SELECT id, content, file_name, user_id, chat_id, page_number, link_path, embedding, created_at
		FROM document_chunks
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY embedding <=> $3
		LIMIT $4
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, userID, chatID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

func (c *DatabaseClient) DeleteChunksByFile(ctx context.Context, userID, chatID, fileName string) error {
	const q = `
		DELETE FROM document_chunks
		WHERE user_id = $1 AND chat_id = $2 AND file_name = $3
	`
	_, err := c.db.ExecContext(ctx, q, userID, chatID, fileName)
	return err
}

func scanChunkRows(rows *sql.Rows) ([]models.ChunkRow, error) {
	var out []models.ChunkRow
	for rows.Next() {
		var (
			r   models.ChunkRow
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&r.ID, &r.Content, &r.FileName, &r.UserID, &r.ChatID, &r.PageNumber, &r.LinkPath, &emb, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Embedding = emb.Slice()
		out = append(out, r)
	}
	return out, rows.Err()
}
