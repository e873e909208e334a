package extraction_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// OCRClient speaks the remote extraction worker's polling protocol:
// reset -> submit -> poll -> fetch, with unconditional cleanup.
type OCRClient struct {
	http         *resty.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewOCRClient(baseURL string, pollInterval time.Duration, logger *slog.Logger) *OCRClient {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60 * time.Second)

	return &OCRClient{http: client, pollInterval: pollInterval, logger: logger}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type resetResponse struct {
	Cleared []string `json:"cleared"`
}

type resultResponse struct {
	Pages      []models.Page `json:"pages"`
	TotalPages int           `json:"total_pages"`
}

// Extract drives one remote extraction attempt end to end. Each attempt
// gets a fresh random wire id, so a retried file never collides with
// stale worker-side state; the reset step clears any leftovers anyway.
// onProgress fires once per poll tick with the worker's raw record.
// Worker-side temp state is cleaned up regardless of the outcome.
func (c *OCRClient) Extract(
	ctx context.Context,
	content []byte,
	filename string,
	batchSize int,
	onProgress func(models.ProgressRecord),
) (*models.ExtractionResult, error) {
	fileID := uuid.NewString()

	c.reset(ctx, fileID)
	defer c.cleanup(fileID)

	if err := c.submit(ctx, fileID, content, filename, batchSize); err != nil {
		return nil, err
	}
	if err := c.poll(ctx, fileID, onProgress); err != nil {
		return nil, err
	}
	return c.fetch(ctx, fileID, filename)
}

// reset is best-effort: a failure here must not abort the job.
func (c *OCRClient) reset(ctx context.Context, fileID string) {
	var out resetResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/ocr/reset/" + fileID)
	if err != nil {
		c.logger.Warn("ocr reset failed", "file_id", fileID, "error", err)
		return
	}
	if resp.IsError() {
		c.logger.Warn("ocr reset rejected", "file_id", fileID, "status", resp.StatusCode())
		return
	}
	if len(out.Cleared) > 0 {
		c.logger.Debug("ocr reset cleared stale state", "file_id", fileID, "cleared", out.Cleared)
	}
}

// submit uploads the raw bytes with a page-batch-size hint. Anything but
// a 202 with a task id is terminal for the job.
func (c *OCRClient) submit(ctx context.Context, fileID string, content []byte, filename string, batchSize int) error {
	var out submitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(content)).
		SetFormData(map[string]string{
			"file_id":    fileID,
			"batch_size": strconv.Itoa(batchSize),
		}).
		SetResult(&out).
		Post("/ocr/extract")
	if err != nil {
		return &core.RemoteProtocolError{Op: "submit", Err: err}
	}
	if resp.StatusCode() != http.StatusAccepted {
		return &core.RemoteProtocolError{
			Op:  "submit",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	if out.TaskID == "" {
		return &core.RemoteProtocolError{Op: "submit", Err: errors.New("no task id in response")}
	}

	c.logger.Info("pdf submitted to ocr service", "file_id", fileID, "task_id", out.TaskID)
	return nil
}

// poll reads the worker's progress record every interval until it
// reports SUCCESS or FAILURE, or the deadline on ctx elapses. Transient
// poll errors wait one interval and retry rather than aborting.
func (c *OCRClient) poll(ctx context.Context, fileID string, onProgress func(models.ProgressRecord)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.logger.Error("ocr polling timed out", "file_id", fileID)
				return core.ErrExtractionTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}

		var rec models.ProgressRecord
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&rec).
			Get("/ocr/progress/" + fileID)
		if err != nil {
			c.logger.Warn("progress poll error", "file_id", fileID, "error", err)
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			c.logger.Warn("progress check failed", "file_id", fileID, "status", resp.StatusCode())
			continue
		}

		if onProgress != nil {
			onProgress(rec)
		}

		switch rec.State {
		case models.StateSuccess:
			c.logger.Info("ocr completed", "file_id", fileID, "total_pages", rec.TotalPages)
			return nil
		case models.StateFailure:
			errText := rec.Error
			if errText == "" {
				errText = "unknown error"
			}
			c.logger.Error("ocr failed", "file_id", fileID, "error", errText)
			return &core.RemoteProtocolError{Op: "poll", Err: errors.New(errText)}
		}
	}
}

// fetch retrieves the finished result. A missing or empty result after
// the worker reported success is still a failure: progress state and
// result state live on opposite sides of a process boundary and can
// disagree.
func (c *OCRClient) fetch(ctx context.Context, fileID, filename string) (*models.ExtractionResult, error) {
	var out resultResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/ocr/result/" + fileID)
	if err != nil {
		return nil, &core.RemoteProtocolError{Op: "fetch", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &core.RemoteProtocolError{
			Op:  "fetch",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	if len(out.Pages) == 0 {
		return nil, &core.RemoteProtocolError{Op: "fetch", Err: errors.New("empty result for completed extraction")}
	}

	successCount := 0
	for _, p := range out.Pages {
		if p.Status {
			successCount++
		}
	}
	totalPages := out.TotalPages
	if totalPages == 0 {
		totalPages = len(out.Pages)
	}

	status := "failed"
	if successCount > 0 {
		status = "success"
	}

	return &models.ExtractionResult{
		Filename:     filename,
		TotalPages:   totalPages,
		Pages:        out.Pages,
		SuccessCount: successCount,
		FailedCount:  len(out.Pages) - successCount,
		Status:       status,
	}, nil
}

// cleanup always runs, on its own context, so a cancelled request still
// tears down worker-side temp state. Failures are logged only.
func (c *OCRClient) cleanup(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/ocr/cleanup/" + fileID)
	if err != nil {
		c.logger.Warn("failed to cleanup ocr state", "file_id", fileID, "error", err)
		return
	}
	if resp.IsError() {
		c.logger.Warn("ocr cleanup rejected", "file_id", fileID, "status", resp.StatusCode())
		return
	}
	c.logger.Debug("ocr cleanup done", "file_id", fileID)
}
