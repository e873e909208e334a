package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Extracta/internal/services"
)

type DocumentHandler struct {
	docs   *services.DocumentService
	logger *slog.Logger
}

func NewDocumentHandler(docs *services.DocumentService, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{docs: docs, logger: logger}
}

// disposition decides whether the browser previews or saves. PDFs and
// images render inline by default; everything else downloads unless the
// caller forces a preview.
func disposition(contentType string, preview bool) string {
	if preview || strings.Contains(contentType, "pdf") || strings.Contains(contentType, "image") {
		return "inline"
	}
	return "attachment"
}

// DownloadDocument streams a stored original back to the client. With
// ?preview=true even non-previewable types are served inline.
func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("name")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	bucket := r.URL.Query().Get("bucket")
	preview := r.URL.Query().Get("preview") == "true"

	rc, contentType, err := h.docs.StreamFile(r.Context(), bucket, filename)
	if err != nil {
		h.logger.Warn("document fetch failed", "filename", filename, "error", err)
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename=%q", disposition(contentType, preview), filename))

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("document stream interrupted", "filename", filename, "error", err)
	}
}

type batchDocumentItem struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type batchDocumentRequest struct {
	Preview   bool                `json:"preview"`
	Documents []batchDocumentItem `json:"documents"`
}

type batchDocumentResult struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchDocuments fetches several stored originals in one call and returns
// them base64-encoded, reporting failures per document. A list with a
// single entry degenerates to the streaming response of DownloadDocument.
func (h *DocumentHandler) BatchDocuments(w http.ResponseWriter, r *http.Request) {
	var req batchDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents is required")
		return
	}
	for _, doc := range req.Documents {
		if doc.Name == "" {
			writeError(w, http.StatusBadRequest, "every document needs a name")
			return
		}
	}

	if len(req.Documents) == 1 {
		doc := req.Documents[0]
		rc, contentType, err := h.docs.StreamFile(r.Context(), doc.Bucket, doc.Name)
		if err != nil {
			h.logger.Warn("document fetch failed", "filename", doc.Name, "error", err)
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("%s; filename=%q", disposition(contentType, req.Preview), doc.Name))
		if _, err := io.Copy(w, rc); err != nil {
			h.logger.Warn("document stream interrupted", "filename", doc.Name, "error", err)
		}
		return
	}

	results := make([]batchDocumentResult, 0, len(req.Documents))
	for _, doc := range req.Documents {
		data, contentType, err := h.docs.FetchFile(r.Context(), doc.Bucket, doc.Name)
		if err != nil {
			h.logger.Warn("batch document fetch failed", "filename", doc.Name, "error", err)
			results = append(results, batchDocumentResult{
				Name:   doc.Name,
				Bucket: doc.Bucket,
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, batchDocumentResult{
			Name:        doc.Name,
			Bucket:      doc.Bucket,
			ContentType: contentType,
			Data:        base64.StdEncoding.EncodeToString(data),
		})
	}

	writeJSON(w, http.StatusOK, map[string][]batchDocumentResult{"results": results})
}

// GetResult returns the cached extraction result for a file id. A job
// still in flight answers 202 with its progress record; an unknown id is
// a 404.
func (h *DocumentHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "file_id")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "file_id is required")
		return
	}

	result, rec, status, err := h.docs.Result(r.Context(), fileID)
	if err != nil {
		h.logger.Error("result lookup failed", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "result lookup failed")
		return
	}

	switch status {
	case services.ResultReady:
		writeJSON(w, http.StatusOK, result)
	case services.ResultInProgress:
		writeJSON(w, http.StatusAccepted, rec)
	case services.ResultFailed:
		writeJSON(w, http.StatusUnprocessableEntity, rec)
	default:
		writeError(w, http.StatusNotFound, "no result for this file")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
