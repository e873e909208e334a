package progstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// Key prefixes for the two independent key spaces.
const (
	progressPrefix = "ocr_progress:"
	resultPrefix   = "ocr_results:"
)

// Progress records are a soft cache; they expire on their own so an
// abandoned job does not leak keys forever.
const progressTTL = time.Hour

// BadgerStore keeps per-file progress records and TTL-bound extraction
// results in an embedded BadgerDB.
type BadgerStore struct {
	db        *badger.DB
	resultTTL time.Duration
	logger    *slog.Logger
}

var _ core.ProgressStore = (*BadgerStore)(nil)

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the store at path, creating the directory if needed.
// An empty path opens an in-memory store (used by tests).
func Open(path string, resultTTL time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}

	return &BadgerStore{db: db, resultTTL: resultTTL, logger: logger}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func progressKey(fileID string) []byte { return []byte(progressPrefix + fileID) }
func resultKey(fileID string) []byte   { return []byte(resultPrefix + fileID) }

// SetProgress replaces the progress record for fileID.
func (s *BadgerStore) SetProgress(ctx context.Context, fileID string, rec models.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(progressKey(fileID), val).WithTTL(progressTTL)
		return txn.SetEntry(e)
	})
}

// Progress returns the stored record, or a synthesized PENDING record
// when the key is unknown. It only errors on store-level failures.
func (s *BadgerStore) Progress(ctx context.Context, fileID string) (models.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.ProgressRecord{}, err
	}
	var rec models.ProgressRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(progressKey(fileID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.PendingRecord(), nil
	}
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("read progress: %w", err)
	}
	if rec.TotalPages > 0 {
		rec.Percent = float64(rec.CompletedPages) / float64(rec.TotalPages) * 100
	}
	return rec, nil
}

// SetResult stores the final extraction result under the configured TTL.
// Written once per successful extraction; a second write overwrites.
func (s *BadgerStore) SetResult(ctx context.Context, fileID string, res *models.ExtractionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(resultKey(fileID), val).WithTTL(s.resultTTL)
		return txn.SetEntry(e)
	})
}

// Result returns the cached result, or core.ErrNoResult when the key is
// missing or has expired. "No result" is distinct from an empty result.
func (s *BadgerStore) Result(ctx context.Context, fileID string) (*models.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var res models.ExtractionResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(fileID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return &res, nil
}

// Clear drops both keys for fileID. Used by the reset step before a new
// attempt reuses a file id.
func (s *BadgerStore) Clear(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(progressKey(fileID)); err != nil {
			return err
		}
		return txn.Delete(resultKey(fileID))
	})
}
