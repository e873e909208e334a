package core

import (
	"strings"

	"github.com/markdave123-py/Extracta/internal/models"
)

// Extensions that go through text extraction.
var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
}

// Extensions that are stored directly without extraction.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
}

var presentationExtensions = map[string]bool{
	".ppt": true, ".pptx": true,
}

// MaxFileSize caps uploads at 20MB.
const MaxFileSize = 20 * 1024 * 1024

// FileExtension returns the lowercase extension including the dot,
// or "" when the filename has none.
func FileExtension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i:])
}

// ValidateFile rejects unsupported, oversized and empty uploads before
// the pipeline performs any side effect.
func ValidateFile(filename string, content []byte) error {
	if filename == "" {
		return NewValidationError("no filename provided")
	}
	ext := FileExtension(filename)
	if !documentExtensions[ext] && !imageExtensions[ext] && !presentationExtensions[ext] {
		return NewValidationError("unsupported file type %q", ext)
	}
	if len(content) == 0 {
		return NewValidationError("empty file uploaded")
	}
	if len(content) > MaxFileSize {
		return NewValidationError("file too large, maximum size is %dMB", MaxFileSize/(1024*1024))
	}
	return nil
}

// ClassifyFile maps a filename to the pipeline path it takes.
func ClassifyFile(filename string) models.FileKind {
	ext := FileExtension(filename)
	switch {
	case imageExtensions[ext]:
		return models.KindImage
	case presentationExtensions[ext]:
		return models.KindPresentation
	default:
		return models.KindDocument
	}
}

// IsPDF reports whether the file takes the remote OCR path.
func IsPDF(filename string) bool {
	return FileExtension(filename) == ".pdf"
}
