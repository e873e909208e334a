package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/Extracta/internal/models"
)

func TestValidateFile(t *testing.T) {
	small := []byte("content")

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  string
	}{
		{"valid pdf", "report.pdf", small, ""},
		{"valid docx uppercase ext", "Notes.DOCX", small, ""},
		{"valid image", "photo.jpeg", small, ""},
		{"no filename", "", small, "no filename"},
		{"unsupported extension", "script.sh", small, "unsupported file type"},
		{"no extension", "README", small, "unsupported file type"},
		{"empty content", "report.pdf", nil, "empty file"},
		{"too large", "report.pdf", bytes.Repeat([]byte{1}, MaxFileSize+1), "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.filename, tt.content)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestClassifyFile(t *testing.T) {
	assert.Equal(t, models.KindDocument, ClassifyFile("a.pdf"))
	assert.Equal(t, models.KindDocument, ClassifyFile("a.docx"))
	assert.Equal(t, models.KindImage, ClassifyFile("a.PNG"))
	assert.Equal(t, models.KindPresentation, ClassifyFile("slides.pptx"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("x.pdf"))
	assert.True(t, IsPDF("x.PDF"))
	assert.False(t, IsPDF("x.docx"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, ".pdf", FileExtension("a.b.PDF"))
	assert.Equal(t, "", FileExtension("noext"))
}
