package extraction_engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Extracta/internal/core"
	"github.com/markdave123-py/Extracta/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProgressStore records everything written to it.
type fakeProgressStore struct {
	mu       sync.Mutex
	progress map[string][]models.ProgressRecord
	results  map[string]*models.ExtractionResult
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{
		progress: map[string][]models.ProgressRecord{},
		results:  map[string]*models.ExtractionResult{},
	}
}

func (s *fakeProgressStore) SetProgress(_ context.Context, fileID string, rec models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[fileID] = append(s.progress[fileID], rec)
	return nil
}

func (s *fakeProgressStore) Progress(_ context.Context, fileID string) (models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.progress[fileID]
	if len(recs) == 0 {
		return models.PendingRecord(), nil
	}
	return recs[len(recs)-1], nil
}

func (s *fakeProgressStore) SetResult(_ context.Context, fileID string, res *models.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[fileID] = res
	return nil
}

func (s *fakeProgressStore) Result(_ context.Context, fileID string) (*models.ExtractionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[fileID]; ok {
		return res, nil
	}
	return nil, core.ErrNoResult
}

func (s *fakeProgressStore) Clear(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, fileID)
	delete(s.results, fileID)
	return nil
}

func (s *fakeProgressStore) lastState(fileID string) models.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.progress[fileID]
	if len(recs) == 0 {
		return ""
	}
	return recs[len(recs)-1].State
}

// fakeVectorIndex captures upserted batches and can fail on demand.
type fakeVectorIndex struct {
	mu      sync.Mutex
	batches [][]models.Chunk
	ids     [][]string
	failOn  int // 1-based batch number to fail, 0 = never
}

func (f *fakeVectorIndex) Upsert(_ context.Context, chunks []models.Chunk, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		return errors.New("index unavailable")
	}
	f.batches = append(f.batches, chunks)
	f.ids = append(f.ids, ids)
	return nil
}

type uploadCall struct {
	bucket, key, contentType string
	size                     int
	metadata                 map[string]string
}

// fakeObjectClient records uploads and can fail on demand.
type fakeObjectClient struct {
	mu      sync.Mutex
	uploads []uploadCall
	fail    bool
}

func (f *fakeObjectClient) UploadFile(_ context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("storage down")
	}
	f.uploads = append(f.uploads, uploadCall{bucket: bucket, key: key, contentType: contentType, size: len(data), metadata: metadata})
	return "http://storage.local/" + bucket + "/" + key, nil
}

func (f *fakeObjectClient) GetFile(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjectClient) GetObjectReader(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeObjectClient) DeleteFile(context.Context, string, string) error {
	return nil
}

func (f *fakeObjectClient) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type serviceFixture struct {
	svc     *ExtractionService
	store   *fakeProgressStore
	index   *fakeVectorIndex
	objects *fakeObjectClient
}

func newServiceFixture(t *testing.T, fake *fakeOCRServer, opts ...func(*ExtractConfig)) *serviceFixture {
	t.Helper()

	var ocr *OCRClient
	if fake != nil {
		ocr = newTestOCRClient(t, fake)
	} else {
		ocr = NewOCRClient("http://127.0.0.1:1", 10*time.Millisecond, testLogger())
	}

	store := newFakeProgressStore()
	index := &fakeVectorIndex{}
	objects := &fakeObjectClient{}

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.Timeout = 5 * time.Second
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := NewExtractionService(
		ocr,
		NewWordExtractor(testLogger()),
		NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		store, index, objects,
		"test-bucket", cfg, testLogger(),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &serviceFixture{svc: svc, store: store, index: index, objects: objects}
}

func drainEvents(t *testing.T, ch <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var events []ProgressEvent
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func terminalEvent(t *testing.T, events []ProgressEvent) ProgressEvent {
	t.Helper()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.NotNil(t, last.Success, "terminal event must carry success")
	return last
}

func docxJob(t *testing.T) FileJob {
	t.Helper()
	content := buildDocx(t, sampleDocumentXML)
	return FileJob{
		FileID:   DeriveFileID("sample.docx", "user-1", "chat-1"),
		Filename: "sample.docx",
		Content:  content,
		UserID:   "user-1",
		ChatID:   "chat-1",
	}
}

func TestProcessRejectsInvalidFileBeforeSideEffects(t *testing.T) {
	f := newServiceFixture(t, nil)
	job := FileJob{FileID: "id", Filename: "notes.txt", Content: []byte("x"), UserID: "u", ChatID: "c"}

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageFailed, last.Stage)
	assert.Equal(t, StatusError, last.Status)
	assert.False(t, *last.Success)

	assert.Zero(t, f.objects.uploadCount())
	assert.Empty(t, f.index.batches)
}

func TestProcessWordDocumentFullPipeline(t *testing.T) {
	f := newServiceFixture(t, nil)
	job := docxJob(t)

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageCompleted, last.Stage)
	assert.True(t, *last.Success)
	require.NotNil(t, last.FileMetadata)
	assert.Equal(t, "sample.docx", last.FileMetadata.FileName)
	assert.Equal(t, job.FileID, last.FileMetadata.FileID)
	require.NotNil(t, last.FileMetadata.FileURL)

	// Result cached and progress terminal.
	res, err := f.store.Result(context.Background(), job.FileID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, models.StateSuccess, f.store.lastState(job.FileID))

	// Chunks indexed before the original was uploaded.
	require.NotEmpty(t, f.index.batches)
	for _, batch := range f.index.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
	assert.Equal(t, 1, f.objects.uploadCount())
	assert.Equal(t, "test-bucket", f.objects.uploads[0].bucket)
	assert.Equal(t, "sample.docx", f.objects.uploads[0].key)
}

func TestProcessUpsertFailureSkipsUpload(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.index.failOn = 1
	job := docxJob(t)

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageFailed, last.Stage)
	assert.Equal(t, StatusFailed, last.Status)
	assert.False(t, *last.Success)

	assert.Zero(t, f.objects.uploadCount(), "upload must not run after an upsert failure")
	assert.Equal(t, models.StateFailure, f.store.lastState(job.FileID))
}

func TestProcessUploadFailureIsDegradedSuccess(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.objects.fail = true
	job := docxJob(t)

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageCompleted, last.Stage)
	assert.True(t, *last.Success)
	require.NotNil(t, last.FileMetadata)
	assert.Nil(t, last.FileMetadata.FileURL, "no url when the upload failed")
}

func TestProcessWordTimeoutEndsStreamCleanly(t *testing.T) {
	f := newServiceFixture(t, nil, func(cfg *ExtractConfig) { cfg.Timeout = 5 * time.Millisecond })

	var doc strings.Builder
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for i := 0; i < 200000; i++ {
		doc.WriteString(`<w:p><w:r><w:t>paragraph body that keeps the formatter busy</w:t></w:r></w:p>`)
	}
	doc.WriteString(`</w:body></w:document>`)

	job := FileJob{
		FileID:   DeriveFileID("large.docx", "u", "c"),
		Filename: "large.docx",
		Content:  buildDocx(t, doc.String()),
		UserID:   "u",
		ChatID:   "c",
	}

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageFailed, last.Stage)
	assert.Equal(t, StatusFailed, last.Status)
	assert.False(t, *last.Success)
	assert.Equal(t, core.ErrExtractionTimeout.Error(), last.Error)

	// The channel is closed; nothing may still be formatting or emitting.
	uploadsAtClose := f.objects.uploadCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uploadsAtClose, f.objects.uploadCount())
	assert.Zero(t, f.objects.uploadCount())
	assert.Equal(t, models.StateFailure, f.store.lastState(job.FileID))
}

func TestProcessImageStoredDirectly(t *testing.T) {
	f := newServiceFixture(t, nil)
	job := FileJob{
		FileID:   DeriveFileID("diagram.png", "u", "c"),
		Filename: "diagram.png",
		Content:  []byte{0x89, 0x50, 0x4e, 0x47},
		UserID:   "u",
		ChatID:   "c",
	}

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageCompleted, last.Stage)
	assert.True(t, *last.Success)
	assert.Equal(t, string(models.KindImage), last.FileMetadata.FileType)

	assert.Empty(t, f.index.batches, "images are never chunked or indexed")
	require.Equal(t, 1, f.objects.uploadCount())
	assert.Equal(t, "image/png", f.objects.uploads[0].contentType)
}

func TestProcessPDFThroughRemoteWorker(t *testing.T) {
	fake := &fakeOCRServer{
		pollsUntilSuccess: 2,
		resultPages: []models.Page{
			{PageIndex: 0, Text: "remote page one", Status: true},
			{PageIndex: 1, Text: "remote page two", Status: true},
		},
	}
	f := newServiceFixture(t, fake)
	job := FileJob{
		FileID:   DeriveFileID("scan.pdf", "u", "c"),
		Filename: "scan.pdf",
		Content:  []byte("%PDF-1.4"),
		UserID:   "u",
		ChatID:   "c",
	}

	events := drainEvents(t, f.svc.Process(context.Background(), job))

	last := terminalEvent(t, events)
	assert.Equal(t, StageCompleted, last.Stage)
	assert.True(t, *last.Success)

	// Remote progress was mirrored locally and rescaled on the stream.
	assert.Equal(t, models.StateSuccess, f.store.lastState(job.FileID))
	for _, ev := range events {
		if ev.Stage == StageExtraction && ev.Status == StatusProcessing {
			assert.LessOrEqual(t, ev.Progress, 60.0)
		}
	}

	res, err := f.store.Result(context.Background(), job.FileID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPages)

	assert.NotEmpty(t, f.index.batches)
	assert.Equal(t, 1, f.objects.uploadCount())
	assert.Equal(t, 1, fake.cleanups)
}

func TestProcessEmitsMonotonicTerminalProgress(t *testing.T) {
	f := newServiceFixture(t, nil)
	events := drainEvents(t, f.svc.Process(context.Background(), docxJob(t)))

	last := terminalEvent(t, events)
	assert.Equal(t, 100.0, last.Progress)
	assert.Equal(t, StatusCompleted, last.Status)
}
