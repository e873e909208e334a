package extraction_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// FileJob is one extraction request. Content is owned by the job until
// both extraction and upload have consumed it.
type FileJob struct {
	FileID   string
	Filename string
	Content  []byte
	UserID   string
	ChatID   string
}

// ExtractionService is the per-file orchestrator: validate, classify,
// extract (remote OCR or local word formatter), chunk, upsert, upload,
// streaming progress events throughout. Side effects are strictly
// ordered and each step's failure short-circuits the rest.
type ExtractionService struct {
	ocr     *OCRClient
	words   *WordExtractor
	chunker *Chunker
	store   core.ProgressStore
	index   core.VectorIndex
	objects core.ObjectClient
	bucket  string
	cfg     *ExtractConfig
	pool    *ants.Pool
	logger  *slog.Logger
}

// NewExtractionService wires the pipeline. The ants pool bounds how many
// extractions run at once; further jobs queue on submission.
func NewExtractionService(
	ocr *OCRClient,
	words *WordExtractor,
	chunker *Chunker,
	store core.ProgressStore,
	index core.VectorIndex,
	objects core.ObjectClient,
	bucket string,
	cfg *ExtractConfig,
	logger *slog.Logger,
) (*ExtractionService, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(cfg.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("create extraction pool: %w", err)
	}
	return &ExtractionService{
		ocr:     ocr,
		words:   words,
		chunker: chunker,
		store:   store,
		index:   index,
		objects: objects,
		bucket:  bucket,
		cfg:     cfg,
		pool:    pool,
		logger:  logger,
	}, nil
}

func (s *ExtractionService) Close() {
	s.pool.Release()
}

// Process runs the pipeline for one file as a pooled task and returns a
// bounded channel of progress events, closed once the job finishes. The
// caller drains the channel; cancelling ctx cancels the task, and remote
// cleanup still runs before the producer exits.
func (s *ExtractionService) Process(ctx context.Context, job FileJob) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 32)
	em := &emitter{ctx: ctx, ch: events}

	run := func() {
		defer close(events)
		s.process(ctx, job, em)
	}

	go func() {
		if err := s.pool.Submit(run); err != nil {
			s.fail(em, job, string(models.KindDocument), "Service unavailable", err)
			close(events)
		}
	}()

	return events
}

func (s *ExtractionService) process(ctx context.Context, job FileJob, em *emitter) {
	em.emit(ProgressEvent{Stage: StageReading, Status: StatusStarted, Message: "Reading file..."})

	if err := core.ValidateFile(job.Filename, job.Content); err != nil {
		s.fail(em, job, string(models.KindDocument), "", err)
		return
	}

	kind := core.ClassifyFile(job.Filename)
	if kind == models.KindImage || kind == models.KindPresentation {
		s.directStore(ctx, job, kind, em)
		return
	}

	em.emit(ProgressEvent{
		Stage:    StageExtraction,
		Status:   StatusProcessing,
		Message:  "Starting content extraction...",
		Progress: s.cfg.ExtractionRange.Lo,
	})

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var (
		result *models.ExtractionResult
		err    error
	)
	if core.IsPDF(job.Filename) {
		result, err = s.extractPDF(ctx, job, em)
	} else {
		result, err = s.extractWord(ctx, job, em)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = core.ErrExtractionTimeout
		}
		s.fail(em, job, string(kind), "Extraction failed or no content found", err)
		return
	}
	if !result.Succeeded() {
		msg := result.Error
		if msg == "" {
			msg = "no content found"
		}
		s.fail(em, job, string(kind), "Extraction failed or no content found", errors.New(msg))
		return
	}

	s.logger.Info("extraction successful", "filename", job.Filename, "pages", result.TotalPages)

	// Both paths leave the same artifact behind for later retrieval.
	if err := s.store.SetResult(ctx, job.FileID, result); err != nil {
		s.logger.Warn("failed to cache extraction result", "file_id", job.FileID, "error", err)
	}
	_ = s.store.SetProgress(ctx, job.FileID, models.ProgressRecord{
		State:          models.StateSuccess,
		TotalPages:     result.TotalPages,
		CompletedPages: result.SuccessCount,
		Percent:        100,
		Stage:          "extraction",
		Message:        "Extraction complete",
	})

	em.emit(ProgressEvent{
		Stage:    StageChunking,
		Status:   StatusProcessing,
		Message:  "Chunking document...",
		Progress: 70,
	})
	chunks, ids, err := s.chunker.ChunkPages(result, job.UserID, job.ChatID)
	if err != nil {
		s.fail(em, job, string(kind), "Chunking failed", err)
		return
	}

	em.emit(ProgressEvent{
		Stage:    StageUpserting,
		Status:   StatusProcessing,
		Message:  fmt.Sprintf("Upserting %d chunks to vector store...", len(chunks)),
		Progress: 80,
	})
	if err := s.upsertBatches(ctx, chunks, ids); err != nil {
		// An unindexed file is not discoverable: skip the upload entirely.
		s.fail(em, job, string(kind), "Processing failed", err)
		return
	}

	fileURL := s.uploadOriginal(ctx, job, em)

	em.emit(ProgressEvent{
		Stage:    StageCompleted,
		Status:   StatusCompleted,
		Message:  "Processing completed!",
		Progress: 100,
		FileMetadata: &models.FileMetadata{
			FileName: job.Filename,
			FileID:   job.FileID,
			FileURL:  fileURL,
			FileType: string(kind),
		},
		Success: boolPtr(true),
	})
}

// extractPDF delegates to the remote OCR worker and mirrors every polled
// progress record into the store under the job's file id.
func (s *ExtractionService) extractPDF(ctx context.Context, job FileJob, em *emitter) (*models.ExtractionResult, error) {
	rng := s.cfg.ExtractionRange

	onProgress := func(rec models.ProgressRecord) {
		if err := s.store.SetProgress(ctx, job.FileID, rec); err != nil {
			s.logger.Warn("failed to mirror ocr progress", "file_id", job.FileID, "error", err)
		}
		msg := rec.Message
		if rec.Stage != "" {
			msg = "[" + rec.Stage + "] " + msg
		}
		em.emit(ProgressEvent{
			Stage:          StageExtraction,
			Status:         StatusProcessing,
			Message:        msg,
			Progress:       rng.Scale(rec.Percent),
			CompletedPages: rec.CompletedPages,
			TotalPages:     rec.TotalPages,
		})
	}

	result, err := s.ocr.Extract(ctx, job.Content, job.Filename, s.cfg.OCRBatchSize, onProgress)
	if err != nil {
		return nil, err
	}

	em.emit(ProgressEvent{
		Stage:    StageFetching,
		Status:   StatusProcessing,
		Message:  "PDF extraction complete!",
		Progress: rng.Scale(100),
	})
	return result, nil
}

// extractWord runs the local word extractor on the calling goroutine;
// the buffered event channel lets heartbeats interleave with the
// consumer draining it. Heartbeat emits are scoped to the deadline ctx,
// and the extractor itself aborts on cancellation, so no emit can
// outlive this call.
func (s *ExtractionService) extractWord(ctx context.Context, job FileJob, em *emitter) (*models.ExtractionResult, error) {
	rng := s.cfg.ExtractionRange
	wordEm := &emitter{ctx: ctx, ch: em.ch}

	return s.words.Extract(ctx, job.Content, job.Filename, func(p FormatterProgress) {
		rec := models.ProgressRecord{
			State:          models.StateProcessing,
			CompletedPages: p.Pages,
			Percent:        p.Percent,
			Stage:          "extraction",
			Message:        fmt.Sprintf("Formatted %d/%d elements", p.ElementsDone, p.TotalElements),
		}
		if p.Final {
			rec.TotalPages = p.Pages
		}
		if err := s.store.SetProgress(ctx, job.FileID, rec); err != nil {
			s.logger.Warn("failed to record formatter progress", "file_id", job.FileID, "error", err)
		}
		wordEm.emit(ProgressEvent{
			Stage:          StageExtraction,
			Status:         StatusProcessing,
			Message:        rec.Message,
			Progress:       rng.Scale(p.Percent),
			CompletedPages: p.Pages,
			TotalPages:     rec.TotalPages,
		})
	})
}

// directStore handles images and presentations: no extraction, straight
// to object storage.
func (s *ExtractionService) directStore(ctx context.Context, job FileJob, kind models.FileKind, em *emitter) {
	em.emit(ProgressEvent{
		Stage:    StageUploading,
		Status:   StatusProcessing,
		Message:  fmt.Sprintf("Uploading %s to storage...", kind),
		Progress: 50,
	})

	fileURL, err := s.objects.UploadFile(ctx, s.bucket, job.Filename, job.Content,
		uploadContentType(job.Filename), s.uploadMetadata(job))
	if err != nil {
		s.fail(em, job, string(kind), fmt.Sprintf("Failed to upload %s", kind), &core.UploadError{Err: err})
		return
	}

	s.logger.Info("file uploaded to object storage", "filename", job.Filename, "url", fileURL)

	em.emit(ProgressEvent{
		Stage:    StageCompleted,
		Status:   StatusCompleted,
		Message:  fmt.Sprintf("%s uploaded successfully!", titleCase(string(kind))),
		Progress: 100,
		FileMetadata: &models.FileMetadata{
			FileName: job.Filename,
			FileID:   job.FileID,
			FileURL:  &fileURL,
			FileType: string(kind),
		},
		Success: boolPtr(true),
	})
}

// upsertBatches writes chunks in fixed-size batches. Any batch failure
// fails the whole job; callers retry the whole file, never single chunks.
func (s *ExtractionService) upsertBatches(ctx context.Context, chunks []models.Chunk, ids []string) error {
	bs := s.cfg.BatchSize
	for i := 0; i < len(chunks); i += bs {
		end := min(i+bs, len(chunks))
		if err := s.index.Upsert(ctx, chunks[i:end], ids[i:end]); err != nil {
			return &core.UpsertError{Batch: i/bs + 1, Err: err}
		}
		s.logger.Info("upserted batch", "batch", i/bs+1, "chunks", end-i)
	}
	return nil
}

// uploadOriginal stores the raw bytes after a successful upsert. Upload
// failure is a degraded outcome: the job still succeeds, without a URL.
func (s *ExtractionService) uploadOriginal(ctx context.Context, job FileJob, em *emitter) *string {
	em.emit(ProgressEvent{
		Stage:    StageUploading,
		Status:   StatusProcessing,
		Message:  "Uploading file to storage...",
		Progress: 90,
	})

	fileURL, err := s.objects.UploadFile(ctx, s.bucket, job.Filename, job.Content,
		uploadContentType(job.Filename), s.uploadMetadata(job))
	if err != nil {
		uploadErr := &core.UploadError{Err: err}
		s.logger.Error("failed to upload original document", "filename", job.Filename, "error", uploadErr)
		return nil
	}

	s.logger.Info("document uploaded to object storage", "filename", job.Filename, "url", fileURL)
	return &fileURL
}

// fail emits the terminal failure event and marks the progress record so
// the retrieval endpoint sees a terminal state.
func (s *ExtractionService) fail(em *emitter, job FileJob, fileType, msg string, err error) {
	if msg == "" {
		msg = err.Error()
	}
	status := StatusFailed
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		status = StatusError
	}

	s.logger.Error("file processing failed", "filename", job.Filename, "error", err)

	storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.store.SetProgress(storeCtx, job.FileID, models.ProgressRecord{
		State:   models.StateFailure,
		Stage:   string(StageFailed),
		Message: msg,
		Error:   err.Error(),
	})

	em.emit(ProgressEvent{
		Stage:   StageFailed,
		Status:  status,
		Message: msg,
		FileMetadata: &models.FileMetadata{
			FileName: job.Filename,
			FileID:   job.FileID,
			FileType: fileType,
		},
		Success: boolPtr(false),
		Error:   err.Error(),
	})
}

func (s *ExtractionService) uploadMetadata(job FileJob) map[string]string {
	return map[string]string{
		"original_filename": url.QueryEscape(job.Filename),
		"file_id":           job.FileID,
		"content_type":      uploadContentType(job.Filename),
		"upload_time":       time.Now().UTC().Format(time.RFC3339),
	}
}

func uploadContentType(filename string) string {
	switch core.FileExtension(filename) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".ppt":
		return "application/vnd.ms-powerpoint"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
