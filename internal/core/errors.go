package core

import (
	"errors"
	"fmt"
)

// ValidationError marks bad input. It is never retried and is surfaced
// to the caller before any network or storage side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RemoteProtocolError covers failures talking to the remote OCR worker.
// Submission failures abort the job; fetch/cleanup failures are logged,
// except a fetch failure after reported success, which fails the job.
type RemoteProtocolError struct {
	Op  string // submit | poll | fetch | cleanup | reset
	Err error
}

func (e *RemoteProtocolError) Error() string {
	return fmt.Sprintf("ocr %s: %v", e.Op, e.Err)
}

func (e *RemoteProtocolError) Unwrap() error { return e.Err }

// UpsertError aborts the job; the original file is never uploaded when
// its chunks did not make it into the index.
type UpsertError struct {
	Batch int
	Err   error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert batch %d: %v", e.Batch, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// UploadError is a degraded outcome: the file is indexed but the original
// binary is not stored. The job is still reported successful.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("object upload: %v", e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// ErrExtractionTimeout is returned when the end-to-end extraction
// deadline elapses before the worker reports a terminal state.
var ErrExtractionTimeout = errors.New("extraction timed out")

// ErrNoResult is returned by the result store when no record exists for
// a file id, distinct from a stored-but-empty result.
var ErrNoResult = errors.New("no extraction result")
