package extraction_engine

import "time"

// ExtractConfig tunes the extraction pipeline.
//
// ChunkSize / ChunkOverlap: character targets for the recursive splitter.
// BatchSize:      chunks per vector-store upsert call.
// OCRBatchSize:   pages-per-batch hint passed to the remote worker.
// PollInterval:   delay between progress polls against the worker.
// Timeout:        end-to-end deadline for one extraction.
// MaxConcurrent:  cap on simultaneously running extraction tasks.
// ExtractionRange: slice of the displayed progress the extraction phase owns.
type ExtractConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	BatchSize       int
	OCRBatchSize    int
	PollInterval    time.Duration
	Timeout         time.Duration
	MaxConcurrent   int
	ExtractionRange ProgressRange
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() *ExtractConfig {
	return &ExtractConfig{
		ChunkSize:       800,
		ChunkOverlap:    100,
		BatchSize:       64,
		OCRBatchSize:    20,
		PollInterval:    2 * time.Second,
		Timeout:         600 * time.Second,
		MaxConcurrent:   5,
		ExtractionRange: DefaultExtractionRange,
	}
}
