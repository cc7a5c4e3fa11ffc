package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/xuri/excelize/v2"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/corpus"
	"pdf-term-stats/internal/pdftext"
	"pdf-term-stats/internal/pdftext/pdftest"
	"pdf-term-stats/internal/queue"
	"pdf-term-stats/models"
	"pdf-term-stats/services"
	"pdf-term-stats/utils"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*models.Analysis
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*models.Analysis{}}
}

func (s *memoryStore) Create(ctx context.Context, a *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.records[a.ID] = &cp
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[id]
	if !ok {
		return nil, services.ErrAnalysisNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryStore) SetTaskID(ctx context.Context, id, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id].TaskID = taskID
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

type recordingQueue struct {
	tasks []*asynq.Task
}

func (q *recordingQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: queue.QueueAnalyses, Type: task.Type()}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServiceName:        "pdf-term-stats-test",
		CORSOrigins:        []string{"http://localhost:3000"},
		MaxFileSize:        1 << 20,
		FileStorageDir:     t.TempDir(),
		ArtifactTTL:        time.Hour,
		DownloadTimeout:    5 * time.Second,
		DownloadRatePerSec: 1000,
		DownloadBurst:      100,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, store AnalysisRepository, q TaskEnqueuer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return SetupRouter(cfg, Dependencies{
		Service:    services.NewAnalysisService(cfg, nil, nil),
		Downloader: services.NewDownloader(cfg, nil),
		Store:      store,
		Queue:      q,
	})
}

func multipartRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.ErrorCode
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("GET /health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestExtract(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	doc := pdftest.Build("the cat sat", "", "the cat and the dog")

	w := serve(router, multipartRequest(t, "/api/v1/extract", "pdf", "doc.pdf", doc))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PageCount != 3 || len(resp.Pages) != 3 {
		t.Fatalf("page_count = %d, pages = %d", resp.PageCount, len(resp.Pages))
	}
	if resp.Pages[1].PageNumber != 2 || resp.Pages[1].Text != "" {
		t.Errorf("page 2 = %+v, want empty text", resp.Pages[1])
	}
	if !strings.Contains(resp.Pages[2].Text, "dog") {
		t.Errorf("page 3 text = %q", resp.Pages[2].Text)
	}
	if resp.Filename != "doc.pdf" {
		t.Errorf("filename = %q", resp.Filename)
	}
}

func TestExtract_CSV(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	doc := pdftest.Build("alpha beta")

	w := serve(router, multipartRequest(t, "/api/v1/extract?format=csv", "pdf", "doc.pdf", doc))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	pages, err := services.ReadPageTable(w.Body)
	if err != nil {
		t.Fatalf("ReadPageTable: %v", err)
	}
	if len(pages) != 1 || !strings.Contains(pages[0].Text, "alpha") {
		t.Errorf("pages = %+v", pages)
	}
}

func TestExtract_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSize = 4096
	router := newTestRouter(t, cfg, nil, nil)

	tests := []struct {
		name   string
		field  string
		data   []byte
		status int
		code   string
	}{
		{"no file", "", nil, http.StatusBadRequest, utils.CodeNoFile},
		{"wrong field", "document", []byte("%PDF-1.4"), http.StatusBadRequest, utils.CodeNoFile},
		{"not a pdf", "pdf", []byte("hello world"), http.StatusBadRequest, utils.CodeInvalidPDF},
		{"malformed", "pdf", []byte("%PDF-1.4\nnot a real document"), http.StatusUnprocessableEntity, utils.CodeMalformedDocument},
		{"too large", "pdf", append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 8192)...), http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, multipartRequest(t, "/api/v1/extract", tt.field, "f.pdf", tt.data))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.status, w.Body.String())
			}
			if got := errorCode(t, w); got != tt.code {
				t.Errorf("error_code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestExtractURL(t *testing.T) {
	doc := pdftest.Build("remote page")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/doc.pdf":
			w.Write(doc)
		case "/page.html":
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	router := newTestRouter(t, testConfig(t), nil, nil)
	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/url", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(router, req)
	}

	w := post(`{"url":"` + srv.URL + `/doc.pdf"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "remote") {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := post(`{"url":"` + srv.URL + `/missing.pdf"}`); w.Code != http.StatusBadGateway || errorCode(t, w) != utils.CodeDownloadFailed {
		t.Errorf("missing document = %d %s", w.Code, w.Body.String())
	}
	if w := post(`{"url":"` + srv.URL + `/page.html"}`); w.Code != http.StatusBadRequest || errorCode(t, w) != utils.CodeInvalidPDF {
		t.Errorf("html document = %d %s", w.Code, w.Body.String())
	}
	if w := post(`{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing url = %d", w.Code)
	}
}

func TestStatistics(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	table := []byte("Page Number,Extracted Text\n1,the cat sat\n2,the dog sat\n3,the cat and the dog\n")

	w := serve(router, multipartRequest(t, "/api/v1/statistics", "csv", "pages.csv", table))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var stats corpus.Statistics
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if got := stats.Vocabulary.Terms(); !slices.Equal(got, []string{"and", "cat", "dog", "sat", "the"}) {
		t.Errorf("vocabulary = %q", got)
	}
	if !slices.Equal(stats.DocOccurrence, []int{1, 2, 2, 2, 3}) {
		t.Errorf("doc_occurrence = %v", stats.DocOccurrence)
	}

	w = serve(router, multipartRequest(t, "/api/v1/statistics?format=xlsx", "csv", "pages.csv", table))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != contentTypeXLSX {
		t.Fatalf("xlsx = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	wb, err := services.ReadWorkbook(w.Body)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	if docs, terms := wb.Shape(); docs != 3 || terms != 5 {
		t.Errorf("workbook shape = %d x %d", docs, terms)
	}

	bad := []byte("Page Number,Extracted Text\nfirst,x\n")
	w = serve(router, multipartRequest(t, "/api/v1/statistics", "csv", "pages.csv", bad))
	if w.Code != http.StatusUnprocessableEntity || errorCode(t, w) != utils.CodeInvalidPageTable {
		t.Errorf("bad table = %d %s", w.Code, w.Body.String())
	}
}

func TestDocumentStatistics(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/statistics/documents", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(router, req)
	}

	w := post(`{"documents":["the cat sat","the dog sat"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = post(`{"documents":["the cat sat",42]}`)
	if w.Code != http.StatusUnprocessableEntity || errorCode(t, w) != utils.CodeInvalidCorpus {
		t.Errorf("non-string document = %d %s", w.Code, w.Body.String())
	}

	w = post(`{"documents":[]}`)
	if w.Code != http.StatusOK {
		t.Errorf("empty corpus = %d %s", w.Code, w.Body.String())
	}
}

func TestAnalyses_Unavailable(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/x", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAnalyses_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	store := newMemoryStore()
	q := &recordingQueue{}
	router := newTestRouter(t, cfg, store, q)

	w := serve(router, multipartRequest(t, "/api/v1/analyses", "pdf", "doc.pdf", pdftest.Build("the cat sat", "the dog sat")))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var accepted models.AnalysisAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.ID == "" || accepted.TaskID != "task-1" || accepted.Status != models.StatusPending {
		t.Errorf("accepted = %+v", accepted)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != queue.TaskRunAnalysis {
		t.Fatalf("enqueued = %v", q.tasks)
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+accepted.ID+"/workbook", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("workbook before completion = %d, want 409", w.Code)
	}

	// run the queued task the way the worker would
	a, _ := store.Get(context.Background(), accepted.ID)
	processor := queue.NewTaskProcessor(services.NewAnalysisService(cfg, nil, nil), completingRecorder{store}, cfg.FileStorageDir)
	if err := processor.RunAnalysis(context.Background(), q.tasks[0]); err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	if filepath.Dir(a.SourcePath) != services.AnalysisDir(cfg.FileStorageDir, accepted.ID) {
		t.Errorf("source stored at %s", a.SourcePath)
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+accepted.ID, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"completed"`) {
		t.Fatalf("record = %d %s", w.Code, w.Body.String())
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+accepted.ID+"/workbook", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("workbook = %d (%d bytes)", w.Code, w.Body.Len())
	}
	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+accepted.ID+"/pages", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "Page Number,Extracted Text") {
		t.Errorf("pages = %d %q", w.Code, w.Body.String())
	}
	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+accepted.ID+"/statistics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"vocabulary"`) {
		t.Errorf("statistics = %d %s", w.Code, w.Body.String())
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown analysis = %d, want 404", w.Code)
	}
}

// completingRecorder applies task outcomes to the in-memory store.
type completingRecorder struct {
	store *memoryStore
}

func (r completingRecorder) MarkProcessing(ctx context.Context, id string) error {
	return r.set(id, func(a *models.Analysis) { a.Status = models.StatusProcessing })
}

func (r completingRecorder) Complete(ctx context.Context, id string, report *models.AnalysisReport) error {
	return r.set(id, func(a *models.Analysis) {
		a.Status = models.StatusCompleted
		a.Pages = report.Pages
		a.VocabularySize = report.VocabularySize
		a.WorkbookPath = report.WorkbookPath
		a.PageTablePath = report.PageTablePath
	})
}

func (r completingRecorder) Fail(ctx context.Context, id string, cause error) error {
	return r.set(id, func(a *models.Analysis) {
		a.Status = models.StatusFailed
		a.ErrorMessage = cause.Error()
	})
}

func (r completingRecorder) set(id string, fn func(*models.Analysis)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.records[id]
	if !ok {
		return services.ErrAnalysisNotFound
	}
	fn(a)
	return nil
}

func TestExtract_CorruptPage(t *testing.T) {
	doc := pdftest.BuildCorrupt(2, "page one", "page two", "page three")

	router := newTestRouter(t, testConfig(t), nil, nil)
	w := serve(router, multipartRequest(t, "/api/v1/extract", "pdf", "doc.pdf", doc))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PageCount != 3 || resp.Pages[1].Text != "" || !slices.Equal(resp.FailedPages, []int{2}) {
		t.Errorf("degraded response = %+v", resp)
	}

	cfg := testConfig(t)
	cfg.StrictPages = true
	router = newTestRouter(t, cfg, nil, nil)
	w = serve(router, multipartRequest(t, "/api/v1/extract", "pdf", "doc.pdf", doc))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("strict status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		ErrorCode string `json:"error_code"`
		Details   struct {
			Page int `json:"page"`
		} `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ErrorCode != utils.CodePageExtraction || body.Details.Page != 2 {
		t.Errorf("strict body = %s", w.Body.String())
	}
}

func TestStatistics_WorkbookTooWide(t *testing.T) {
	router := newTestRouter(t, testConfig(t), nil, nil)

	terms := make([]string, excelize.MaxColumns+1)
	for i := range terms {
		terms[i] = fmt.Sprintf("t%05d", i)
	}
	table := []byte("Page Number,Extracted Text\n1," + strings.Join(terms, " ") + "\n")

	w := serve(router, multipartRequest(t, "/api/v1/statistics?format=xlsx", "csv", "pages.csv", table))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := errorCode(t, w); got != utils.CodeWorkbookTooWide {
		t.Errorf("error_code = %q, want %q", got, utils.CodeWorkbookTooWide)
	}

	w = serve(router, multipartRequest(t, "/api/v1/statistics", "csv", "pages.csv", table))
	if w.Code != http.StatusOK {
		t.Errorf("json statistics = %d, want 200", w.Code)
	}
}

func TestRespondProcessingError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"page failure", &pdftext.PageExtractionError{Page: 3, Err: errors.New("bad stream")}, http.StatusUnprocessableEntity, utils.CodePageExtraction},
		{"malformed", fmt.Errorf("open: %w", pdftext.ErrMalformedDocument), http.StatusUnprocessableEntity, utils.CodeMalformedDocument},
		{"document too large", fmt.Errorf("extract: %w", pdftext.ErrDocumentTooLarge), http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge},
		{"download too large", fmt.Errorf("fetch: %w", services.ErrFileTooLarge), http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge},
		{"workbook too wide", fmt.Errorf("save: %w", services.ErrWorkbookTooWide), http.StatusUnprocessableEntity, utils.CodeWorkbookTooWide},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, utils.CodeUnavailable},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, utils.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/extract", nil)

			respondProcessingError(c, tt.err)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if got := errorCode(t, w); got != tt.code {
				t.Errorf("error_code = %q, want %q", got, tt.code)
			}
		})
	}
}
