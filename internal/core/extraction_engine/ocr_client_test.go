package extraction_engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

// fakeOCRServer speaks the remote worker protocol for tests.
type fakeOCRServer struct {
	mu       sync.Mutex
	resets   int
	cleanups int
	polls    int

	submitStatus      int
	pollsUntilSuccess int
	failState         bool
	failError         string
	resultPages       []models.Page
	resultStatus      int
}

func (f *fakeOCRServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ocr/reset/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.resets++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"cleared": []string{}})
	})

	mux.HandleFunc("/ocr/extract", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("file_id") == "" || r.FormValue("batch_size") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status := f.submitStatus
		if status == 0 {
			status = http.StatusAccepted
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-123"})
	})

	mux.HandleFunc("/ocr/progress/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		polls := f.polls
		f.mu.Unlock()

		rec := models.ProgressRecord{
			State:          models.StateProcessing,
			TotalPages:     3,
			CompletedPages: min(polls, 3),
			Percent:        float64(polls) * 30,
			Stage:          "extraction",
			Message:        "working",
		}
		if f.failState {
			rec.State = models.StateFailure
			rec.Error = f.failError
		} else if polls >= f.pollsUntilSuccess {
			rec.State = models.StateSuccess
			rec.Percent = 100
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	})

	mux.HandleFunc("/ocr/result/", func(w http.ResponseWriter, r *http.Request) {
		if f.resultStatus != 0 {
			w.WriteHeader(f.resultStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"pages":       f.resultPages,
			"total_pages": len(f.resultPages),
		})
	})

	mux.HandleFunc("/ocr/cleanup/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cleanups++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newTestOCRClient(t *testing.T, f *fakeOCRServer) *OCRClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewOCRClient(srv.URL, 10*time.Millisecond, testLogger())
}

func TestOCRClientExtractSuccess(t *testing.T) {
	fake := &fakeOCRServer{
		pollsUntilSuccess: 3,
		resultPages: []models.Page{
			{PageIndex: 0, Text: "one", Status: true},
			{PageIndex: 1, Text: "", Status: false},
			{PageIndex: 2, Text: "three", Status: true},
		},
	}
	client := newTestOCRClient(t, fake)

	var records []models.ProgressRecord
	result, err := client.Extract(context.Background(), []byte("%PDF-1.4"), "report.pdf", 20,
		func(rec models.ProgressRecord) { records = append(records, rec) })

	require.NoError(t, err)
	assert.Equal(t, "report.pdf", result.Filename)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, "success", result.Status)

	require.NotEmpty(t, records)
	assert.Equal(t, models.StateSuccess, records[len(records)-1].State)

	assert.Equal(t, 1, fake.resets)
	assert.Equal(t, 1, fake.cleanups)
}

func TestOCRClientSubmitRejected(t *testing.T) {
	fake := &fakeOCRServer{submitStatus: http.StatusInternalServerError}
	client := newTestOCRClient(t, fake)

	_, err := client.Extract(context.Background(), []byte("x"), "report.pdf", 20, nil)

	var perr *core.RemoteProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "submit", perr.Op)
	assert.Equal(t, 1, fake.cleanups, "cleanup must run after submit failure")
}

func TestOCRClientWorkerFailure(t *testing.T) {
	fake := &fakeOCRServer{failState: true, failError: "corrupt pdf"}
	client := newTestOCRClient(t, fake)

	_, err := client.Extract(context.Background(), []byte("x"), "report.pdf", 20, nil)

	var perr *core.RemoteProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "poll", perr.Op)
	assert.True(t, strings.Contains(err.Error(), "corrupt pdf"))
	assert.Equal(t, 1, fake.cleanups)
}

func TestOCRClientTimeout(t *testing.T) {
	// Never reaches a terminal state.
	fake := &fakeOCRServer{pollsUntilSuccess: 1 << 30}
	client := newTestOCRClient(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Extract(ctx, []byte("x"), "report.pdf", 20, nil)

	require.ErrorIs(t, err, core.ErrExtractionTimeout)
	assert.Equal(t, 1, fake.cleanups, "cleanup must run after timeout")
}

func TestOCRClientEmptyResult(t *testing.T) {
	fake := &fakeOCRServer{pollsUntilSuccess: 1, resultPages: nil}
	client := newTestOCRClient(t, fake)

	_, err := client.Extract(context.Background(), []byte("x"), "report.pdf", 20, nil)

	var perr *core.RemoteProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fetch", perr.Op)
}
