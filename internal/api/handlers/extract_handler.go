package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/markdave123-py/Extracta/internal/core/extraction_engine"
)

const maxUploadBytes = 32 << 20

type ExtractHandler struct {
	svc    *extraction_engine.ExtractionService
	logger *slog.Logger
}

func NewExtractHandler(svc *extraction_engine.ExtractionService, logger *slog.Logger) *ExtractHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractHandler{svc: svc, logger: logger}
}

// ExtractDocument accepts a multipart upload and streams pipeline progress
// back as server-sent events. The stream always ends with a terminal event
// carrying success: true or false; transport-level errors before the
// stream starts are plain HTTP errors.
func (h *ExtractHandler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	userID := r.FormValue("user_id")
	chatID := r.FormValue("conversation_id")
	if userID == "" || chatID == "" {
		http.Error(w, "user_id and conversation_id are required", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filename := filepath.Base(header.Filename)
	job := extraction_engine.FileJob{
		FileID:   extraction_engine.DeriveFileID(filename, userID, chatID),
		Filename: filename,
		Content:  content,
		UserID:   userID,
		ChatID:   chatID,
	}

	h.logger.Info("extraction request", "filename", filename, "file_id", job.FileID, "user_id", userID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Client disconnect cancels r.Context(), which aborts the pipeline.
	for ev := range h.svc.Process(r.Context(), job) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode progress event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}
