package extraction_engine

import (
	"context"
	"math"

	"github.com/markdave123-py/Extracta/internal/models"
)

// Stage labels the pipeline phase a progress event belongs to.
type Stage string

const (
	StageReading    Stage = "reading"
	StageExtraction Stage = "extraction"
	StageFetching   Stage = "fetching"
	StageChunking   Stage = "chunking"
	StageUpserting  Stage = "upserting"
	StageUploading  Stage = "uploading"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Status is the event-level processing status.
type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// ProgressEvent is one entry in the ordered event stream pushed to the
// caller. Terminal events carry file metadata, success and error.
type ProgressEvent struct {
	Stage          Stage                `json:"stage"`
	Status         Status               `json:"status"`
	Message        string               `json:"message"`
	Progress       float64              `json:"progress"`
	CompletedPages int                  `json:"completed_pages,omitempty"`
	TotalPages     int                  `json:"total_pages,omitempty"`
	FileMetadata   *models.FileMetadata `json:"file_metadata,omitempty"`
	Success        *bool                `json:"success,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// ProgressRange maps a sub-task's 0-100 progress into the slice of the
// overall job progress it occupies. Both the OCR poll loop and the local
// word formatter share one configured range, so the rescaling formula
// lives in exactly one place.
type ProgressRange struct {
	Lo float64
	Hi float64
}

// DefaultExtractionRange reserves 5-60% of the displayed job progress
// for the extraction phase.
var DefaultExtractionRange = ProgressRange{Lo: 5, Hi: 60}

// Scale maps p in [0,100] into the range, rounded to one decimal.
func (r ProgressRange) Scale(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return math.Round((r.Lo+p/100*(r.Hi-r.Lo))*10) / 10
}

// emitter pushes events onto the bounded channel the consumer loop
// drains, dropping nothing while the consumer is alive and giving up
// once the request context is gone.
type emitter struct {
	ctx context.Context
	ch  chan<- ProgressEvent
}

func (e *emitter) emit(ev ProgressEvent) {
	select {
	case e.ch <- ev:
	case <-e.ctx.Done():
	}
}

func boolPtr(b bool) *bool { return &b }
