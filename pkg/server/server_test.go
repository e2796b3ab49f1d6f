package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/ratelimit"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

type fakeRepository struct {
	documents map[string]*store.Document
	queries   map[string]*store.Query
	settings  map[string]json.RawMessage
	deleted   []string
	healthErr error
	nextID    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		documents: map[string]*store.Document{},
		queries:   map[string]*store.Query{},
		settings:  map[string]json.RawMessage{},
	}
}

func (f *fakeRepository) id() string {
	f.nextID++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", f.nextID)
}

func (f *fakeRepository) CreateDocument(_ context.Context, filename, mimeType string, sizeBytes int64) (*store.Document, error) {
	doc := &store.Document{
		ID:            f.id(),
		Filename:      filename,
		MimeType:      mimeType,
		FileSizeBytes: sizeBytes,
		Status:        store.StatusPending,
		UploadedAt:    time.Now().UTC(),
	}
	f.documents[doc.ID] = doc
	return doc, nil
}

func (f *fakeRepository) GetDocument(_ context.Context, id string) (*store.Document, error) {
	doc, ok := f.documents[id]
	if !ok {
		return nil, ragerr.NotFound("document", id)
	}
	return doc, nil
}

func (f *fakeRepository) ListDocuments(_ context.Context, status string, limit, offset int) ([]store.Document, int, error) {
	var docs []store.Document
	for _, doc := range f.documents {
		if status == "" || doc.Status == status {
			docs = append(docs, *doc)
		}
	}
	return docs, len(docs), nil
}

func (f *fakeRepository) DeleteDocument(_ context.Context, id string) error {
	if _, ok := f.documents[id]; !ok {
		return ragerr.NotFound("document", id)
	}
	delete(f.documents, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepository) CreateQuery(_ context.Context, queryText string, documentFilter []string) (*store.Query, error) {
	q := &store.Query{
		ID:             f.id(),
		QueryText:      queryText,
		Status:         store.StatusPending,
		DocumentFilter: documentFilter,
		CreatedAt:      time.Now().UTC(),
	}
	f.queries[q.ID] = q
	return q, nil
}

func (f *fakeRepository) GetQuery(_ context.Context, id string) (*store.Query, error) {
	q, ok := f.queries[id]
	if !ok {
		return nil, ragerr.NotFound("query", id)
	}
	return q, nil
}

func (f *fakeRepository) ListSettings(_ context.Context) (map[string]json.RawMessage, error) {
	return f.settings, nil
}

func (f *fakeRepository) SetSetting(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.settings[key] = raw
	return nil
}

func (f *fakeRepository) Healthy(_ context.Context) error { return f.healthErr }

type fakeObjects struct {
	originals map[string][]byte
	deleted   []string
	healthErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{originals: map[string][]byte{}}
}

func (f *fakeObjects) PutOriginal(_ context.Context, documentID, filename, contentType string, r io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := documentID + "/original"
	f.originals[key] = data
	return key, nil
}

func (f *fakeObjects) DeleteDocument(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeObjects) Healthy(_ context.Context) error { return f.healthErr }

type fakePublisher struct {
	ingestion []queue.IngestionJob
	queries   []queue.QueryJob
	healthErr error
}

func (f *fakePublisher) PublishIngestion(_ context.Context, job queue.IngestionJob) error {
	f.ingestion = append(f.ingestion, job)
	return nil
}

func (f *fakePublisher) PublishQuery(_ context.Context, job queue.QueryJob) error {
	f.queries = append(f.queries, job)
	return nil
}

func (f *fakePublisher) Healthy(_ context.Context) error { return f.healthErr }

type testServer struct {
	server  *Server
	repo    *fakeRepository
	objects *fakeObjects
	broker  *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := newFakeRepository()
	objects := newFakeObjects()
	broker := &fakePublisher{}
	srv := New(Deps{Store: repo, Objects: objects, Broker: broker}, nil)
	return &testServer{server: srv, repo: repo, objects: objects, broker: broker}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocumentQueuesIngestion(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "guide.md", []byte("# Guide\n\nHello."))
	rec := ts.do(t, http.MethodPost, "/documents", body, map[string]string{
		"Content-Type":     contentType,
		"X-Correlation-ID": "corr-42",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "guide.md", resp["filename"])
	assert.Equal(t, store.StatusPending, resp["status"])

	require.Len(t, ts.broker.ingestion, 1)
	job := ts.broker.ingestion[0]
	assert.Equal(t, resp["id"], job.DocumentID)
	assert.Equal(t, "guide.md", job.OriginalFilename)
	assert.Equal(t, "text/markdown", job.MimeType)
	assert.Equal(t, "corr-42", job.CorrelationID)

	assert.Contains(t, ts.objects.originals, job.FilePath)
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "no file here"))
	require.NoError(t, mw.Close())

	rec := ts.do(t, http.MethodPost, "/documents", &buf, map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["error"])
	assert.Empty(t, ts.broker.ingestion)
}

func TestGetDocumentNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/documents/missing", nil, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp["error"])
}

func TestListDocumentsRejectsUnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/documents?status=bogus", nil, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type scrollStore struct {
	vectordb.Store
	points []vectordb.SearchResult
}

func (s *scrollStore) Scroll(_ context.Context, collection string, filter map[string]any, batchSize int) ([]vectordb.SearchResult, error) {
	return s.points, nil
}

func (s *scrollStore) Healthy(_ context.Context) error { return nil }

func TestGetDocumentChunksScrollsVectorStore(t *testing.T) {
	repo := newFakeRepository()
	objects := newFakeObjects()
	broker := &fakePublisher{}
	vectors := &scrollStore{points: []vectordb.SearchResult{
		{ID: "p1", Payload: map[string]any{"text": "first chunk", "chunk_index": int64(0)}},
		{ID: "p2", Payload: map[string]any{"text": "second chunk", "chunk_index": int64(1)}},
	}}
	srv := New(Deps{Store: repo, Objects: objects, Broker: broker, Vectors: vectors}, nil)
	ts := &testServer{server: srv, repo: repo, objects: objects, broker: broker}

	doc, err := repo.CreateDocument(context.Background(), "a.md", "text/markdown", 10)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/documents/"+doc.ID+"/chunks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DocumentID string           `json:"document_id"`
		Chunks     []map[string]any `json:"chunks"`
		Total      int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, doc.ID, resp.DocumentID)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "p1", resp.Chunks[0]["id"])
	assert.Equal(t, "first chunk", resp.Chunks[0]["text"])

	rec = ts.do(t, http.MethodGet, "/documents/missing/chunks", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocumentCleansUpEverywhere(t *testing.T) {
	ts := newTestServer(t)
	doc, err := ts.repo.CreateDocument(context.Background(), "a.md", "text/markdown", 10)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodDelete, "/documents/"+doc.ID, nil, nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{doc.ID}, ts.repo.deleted)
	assert.Equal(t, []string{doc.ID}, ts.objects.deleted)
}

func TestCreateQueryAccepted(t *testing.T) {
	ts := newTestServer(t)

	payload := `{"query_text":"does it support export?","debug_mode":true,"top_k":8,"rerank_top":4}`
	rec := ts.do(t, http.MethodPost, "/queries", bytes.NewBufferString(payload), nil)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, store.StatusPending, resp["status"])

	require.Len(t, ts.broker.queries, 1)
	job := ts.broker.queries[0]
	assert.Equal(t, resp["id"], job.QueryID)
	assert.Equal(t, "does it support export?", job.QueryText)
	assert.True(t, job.DebugMode)
	assert.Equal(t, 8, job.TopK)
	assert.Equal(t, 4, job.RerankTop)
}

func TestCreateQueryValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"blank text", `{"query_text":"   "}`},
		{"bad filter", `{"query_text":"q","document_filter":["not-a-uuid"]}`},
		{"rerank exceeds topk", `{"query_text":"q","top_k":3,"rerank_top":5}`},
		{"not json", `{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/queries", bytes.NewBufferString(tc.body), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, ts.broker.queries)
}

func TestSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/settings/retrieval.top_k", bytes.NewBufferString(`{"value":12}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/settings", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.JSONEq(t, "12", string(settings["retrieval.top_k"]))
}

func TestHealthDegradedWhenDependencyDown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ts.broker.healthErr = fmt.Errorf("connection refused")
	rec = ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unreachable", resp.Dependencies["broker"])
	assert.Equal(t, "reachable", resp.Dependencies["database"])
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time-Ms"))

	rec = ts.do(t, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "given-id"})
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}

func TestRateLimitBlocksAndExemptsHealth(t *testing.T) {
	repo := newFakeRepository()
	objects := newFakeObjects()
	broker := &fakePublisher{}
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(), &ratelimit.Config{Enabled: true, RequestsPerMinute: 2})
	srv := New(Deps{Store: repo, Objects: objects, Broker: broker, Limiter: limiter}, nil)
	ts := &testServer{server: srv, repo: repo, objects: objects, broker: broker}

	rec := ts.do(t, http.MethodGet, "/documents", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/documents", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/documents", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
