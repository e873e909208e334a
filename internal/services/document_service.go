package services

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// ResultStatus is what a result lookup resolves to when no cached result
// exists yet: the job is either still moving, finished badly, or unknown.
type ResultStatus int

const (
	ResultReady ResultStatus = iota
	ResultInProgress
	ResultFailed
	ResultUnknown
)

type DocumentService struct {
	storage core.ObjectClient
	store   core.ProgressStore
	bucket  string
}

func NewDocumentService(storage core.ObjectClient, store core.ProgressStore, bucket string) *DocumentService {
	return &DocumentService{storage: storage, store: store, bucket: bucket}
}

// StreamFile opens the stored original for download. An empty bucket
// selects the service default. The caller closes the reader.
func (s *DocumentService) StreamFile(ctx context.Context, bucket, filename string) (io.ReadCloser, string, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	key := filepath.Base(filename)
	rc, err := s.storage.GetObjectReader(ctx, bucket, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeFor(key), nil
}

// FetchFile reads the stored original fully into memory. An empty bucket
// selects the service default.
func (s *DocumentService) FetchFile(ctx context.Context, bucket, filename string) ([]byte, string, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	key := filepath.Base(filename)
	data, err := s.storage.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, "", err
	}
	return data, contentTypeFor(key), nil
}

// Result resolves a file id to its cached extraction result, falling back
// to the progress record to classify jobs without one.
func (s *DocumentService) Result(ctx context.Context, fileID string) (*models.ExtractionResult, models.ProgressRecord, ResultStatus, error) {
	result, err := s.store.Result(ctx, fileID)
	if err == nil {
		return result, models.ProgressRecord{}, ResultReady, nil
	}
	if !errors.Is(err, core.ErrNoResult) {
		return nil, models.ProgressRecord{}, ResultUnknown, err
	}

	rec, err := s.store.Progress(ctx, fileID)
	if err != nil {
		return nil, models.ProgressRecord{}, ResultUnknown, err
	}
	switch rec.State {
	case models.StateFailure:
		return nil, rec, ResultFailed, nil
	case models.StateProcessing, models.StateCombining:
		return nil, rec, ResultInProgress, nil
	default:
		// PENDING is also what unknown ids look like.
		return nil, rec, ResultUnknown, nil
	}
}

func contentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	default:
		return "application/octet-stream"
	}
}
