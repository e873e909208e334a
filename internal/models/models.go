package models

import (
	"time"
)

// ProgressState is the coarse lifecycle of one extraction job as seen
// by the progress store and the remote OCR worker.
type ProgressState string

const (
	StatePending    ProgressState = "PENDING"
	StateProcessing ProgressState = "PROCESSING"
	StateCombining  ProgressState = "COMBINING"
	StateSuccess    ProgressState = "SUCCESS"
	StateFailure    ProgressState = "FAILURE"
)

// FileKind classifies an upload by what the pipeline does with it.
type FileKind string

const (
	KindDocument     FileKind = "document"
	KindImage        FileKind = "image"
	KindPresentation FileKind = "presentation"
)

// Page is one page of extracted content.
// Status is true iff the rendered text is non-empty after trimming.
type Page struct {
	PageIndex int    `json:"page_index"`
	Text      string `json:"text"`
	Status    bool   `json:"status"`
}

// ExtractionResult aggregates the pages extracted from a single file.
// Status is "success" iff SuccessCount > 0.
type ExtractionResult struct {
	Filename     string `json:"filename"`
	TotalPages   int    `json:"total_pages"`
	Pages        []Page `json:"extracted_pages"`
	SuccessCount int    `json:"success_count"`
	FailedCount  int    `json:"failed_count"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// Succeeded reports whether the extraction produced at least one usable page.
func (r *ExtractionResult) Succeeded() bool {
	return r != nil && r.Status == "success"
}

// ProgressRecord is the per-file progress state kept in the progress store,
// keyed by file_id. A lookup for an unknown id yields a PENDING record with
// zero counts, never an error.
type ProgressRecord struct {
	State          ProgressState `json:"state"`
	TotalPages     int           `json:"total_pages"`
	CompletedPages int           `json:"completed_pages"`
	Percent        float64       `json:"percent"`
	Stage          string        `json:"stage"`
	Message        string        `json:"message"`
	Error          string        `json:"error"`
}

// PendingRecord is the synthesized default for unknown file ids.
func PendingRecord() ProgressRecord {
	return ProgressRecord{
		State:   StatePending,
		Stage:   "queued",
		Message: "Waiting in queue...",
	}
}

// Chunk is a bounded slice of a page's text sized for indexing, carrying
// the metadata the vector store filters on.
type Chunk struct {
	Content    string `json:"content"`
	FileName   string `json:"file_name"`
	UserID     string `json:"user_id"`
	ChatID     string `json:"chat_id"`
	PageNumber int    `json:"page_number"`
	LinkPath   string `json:"link_path"`
}

// ChunkRow is a chunk joined with its embedding, ready for the database.
// ID is deterministic, so re-ingesting the same file overwrites in place.
type ChunkRow struct {
	ID string
	Chunk
	Embedding []float32
	CreatedAt time.Time
}

// FileMetadata identifies the processed file in terminal progress events
// and result lookups.
type FileMetadata struct {
	FileName string  `json:"file_name"`
	FileID   string  `json:"file_id"`
	FileURL  *string `json:"file_url,omitempty"`
	FileType string  `json:"file_type"`
}
