package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/chunking"
	"github.com/kadirpekel/ragstack/pkg/converter"
	"github.com/kadirpekel/ragstack/pkg/language"
	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/qa"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/summarizer"
	"github.com/kadirpekel/ragstack/pkg/tokenizer"
	"github.com/kadirpekel/ragstack/pkg/tree"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// fakeDocumentStore records state transitions.
type fakeDocumentStore struct {
	processing []string
	completed  map[string]store.ProcessingResults
	failed     map[string]string
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		completed: map[string]store.ProcessingResults{},
		failed:    map[string]string{},
	}
}

func (f *fakeDocumentStore) MarkDocumentProcessing(_ context.Context, id string) error {
	f.processing = append(f.processing, id)
	return nil
}

func (f *fakeDocumentStore) CompleteDocument(_ context.Context, id string, results store.ProcessingResults) error {
	f.completed[id] = results
	return nil
}

func (f *fakeDocumentStore) FailDocument(_ context.Context, id, message string) error {
	f.failed[id] = message
	return nil
}

// fakeObjectStore keeps artifacts in memory.
type fakeObjectStore struct {
	objects  map[string][]byte
	markdown map[string]string
	summary  map[string]string
	qaPairs  map[string]any
	metadata map[string]any
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:  map[string][]byte{},
		markdown: map[string]string{},
		summary:  map[string]string{},
		qaPairs:  map[string]any{},
		metadata: map[string]any{},
	}
}

func (f *fakeObjectStore) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return data, nil
}

func (f *fakeObjectStore) PutMarkdown(_ context.Context, id, markdown string) error {
	f.markdown[id] = markdown
	return nil
}

func (f *fakeObjectStore) PutSummary(_ context.Context, id, summary string) error {
	f.summary[id] = summary
	return nil
}

func (f *fakeObjectStore) PutQAPairs(_ context.Context, id string, pairs any) error {
	f.qaPairs[id] = pairs
	return nil
}

func (f *fakeObjectStore) PutMetadata(_ context.Context, id string, metadata any) error {
	f.metadata[id] = metadata
	return nil
}

// recordingVectorStore records upserts per collection.
type recordingVectorStore struct {
	vectordb.Store
	collections map[string]uint64
	points      map[string][]vectordb.Point
}

func newRecordingVectorStore() *recordingVectorStore {
	return &recordingVectorStore{
		collections: map[string]uint64{},
		points:      map[string][]vectordb.Point{},
	}
}

func (r *recordingVectorStore) EnsureCollection(_ context.Context, collection string, vectorSize uint64) error {
	r.collections[collection] = vectorSize
	return nil
}

func (r *recordingVectorStore) Upsert(_ context.Context, collection string, points []vectordb.Point) error {
	r.points[collection] = append(r.points[collection], points...)
	return nil
}

const testDocument = `# User Guide

## Getting Started

Install the client and configure the endpoint before the first run.
The service listens on port 8080 by default.

## Troubleshooting

Connection errors usually mean the endpoint is wrong. Check the logs
for the exact failure and verify the credentials.
`

func qaReply() string {
	pairs := map[string]any{"qa_pairs": []qa.Pair{
		{Question: "What port does the service use?", Answer: "Port 8080.", Type: qa.TypeFactual},
		{Question: "How do I debug connection errors?", Answer: "Check the logs.", Type: qa.TypeProcedural},
	}}
	raw, _ := json.Marshal(pairs)
	return string(raw)
}

func newIngestionWorker(t *testing.T, provider llms.Provider, docStore *fakeDocumentStore, objects *fakeObjectStore, vectors *recordingVectorStore, ix *sparse.Index) *IngestionWorker {
	t.Helper()
	log := logger.GetLogger()

	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	require.NoError(t, err)

	summ, err := summarizer.New(provider, nil)
	require.NoError(t, err)
	qaGen, err := qa.New(provider, nil)
	require.NoError(t, err)

	chunkConfig := chunking.Config{}
	chunkConfig.SetDefaults()

	return NewIngestionWorker(IngestionDeps{
		Store:       docStore,
		Objects:     objects,
		Converter:   converter.New(log),
		TreeBuilder: tree.NewBuilder(log),
		Language:    language.NewDetector(log),
		Summarizer:  summ,
		QA:          qaGen,
		Chunker:     chunking.NewOrchestrator(chunkConfig, tok, log),
		Embedder:    &fakeEmbedder{},
		Vectors:     vectors,
		Sparse:      ix,
		Tokenizer:   tok,
	})
}

func TestIngestionWorkerCompletesDocument(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"A guide to installing and troubleshooting the client.",
		qaReply(),
	}}
	docStore := newFakeDocumentStore()
	objects := newFakeObjectStore()
	objects.objects["d1/original.md"] = []byte(testDocument)
	vectors := newRecordingVectorStore()
	ix := sparse.NewIndex()

	w := newIngestionWorker(t, provider, docStore, objects, vectors, ix)

	body, _ := json.Marshal(queue.IngestionJob{
		DocumentID:       "d1",
		FilePath:         "d1/original.md",
		OriginalFilename: "guide.md",
	})
	require.NoError(t, w.Handle(context.Background(), body))

	assert.Equal(t, []string{"d1"}, docStore.processing)
	require.Contains(t, docStore.completed, "d1")
	results := docStore.completed["d1"]
	assert.Greater(t, results.ChunkCount, 0)
	assert.Equal(t, 2, results.QAPairsCount)
	assert.Equal(t, "A guide to installing and troubleshooting the client.", results.Summary)
	// chunks + summary + one question and one answer point per pair
	assert.Equal(t, results.ChunkCount+1+4, results.VectorCount)
	assert.Equal(t, "en", results.PrimaryLanguage)
	assert.False(t, results.IsMultilingual)
	assert.NotEmpty(t, results.ChunkingStrategy)

	assert.Contains(t, objects.markdown["d1"], "# User Guide")
	assert.NotEmpty(t, objects.summary["d1"])
	assert.Contains(t, objects.qaPairs, "d1")
	assert.Contains(t, objects.metadata, "d1")

	assert.Equal(t, uint64(3), vectors.collections[vectordb.CollectionChunks])
	require.NotEmpty(t, vectors.points[vectordb.CollectionChunks])
	chunkPayload := vectors.points[vectordb.CollectionChunks][0].Payload
	assert.Equal(t, "d1", chunkPayload["document_id"])
	assert.Equal(t, vectordb.ContentTypeChunk, chunkPayload["content_type"])
	assert.NotEmpty(t, chunkPayload["text"])

	require.Len(t, vectors.points[vectordb.CollectionQA], 4)
	questionPayload := vectors.points[vectordb.CollectionQA][0].Payload
	assert.Equal(t, vectordb.ContentTypeQuestion, questionPayload["content_type"])
	assert.Equal(t, "factual", questionPayload["qa_type"])

	assert.Equal(t, results.ChunkCount, ix.Len(), "sparse index mirrors the chunks")
	assert.Empty(t, docStore.failed)
}

func TestIngestionWorkerFailureMarksDocumentFailed(t *testing.T) {
	docStore := newFakeDocumentStore()
	objects := newFakeObjectStore()
	// Missing original object makes the fetch stage fail.
	w := newIngestionWorker(t, &scriptedProvider{}, docStore, objects, newRecordingVectorStore(), nil)

	body, _ := json.Marshal(queue.IngestionJob{DocumentID: "d2", FilePath: "d2/original.pdf"})
	err := w.Handle(context.Background(), body)

	require.Error(t, err)
	require.Contains(t, docStore.failed, "d2")
	assert.Contains(t, docStore.failed["d2"], "failed to fetch original")
	assert.NotContains(t, docStore.completed, "d2")
}

func TestIngestionWorkerBadMessageNacks(t *testing.T) {
	docStore := newFakeDocumentStore()
	w := newIngestionWorker(t, &scriptedProvider{}, docStore, newFakeObjectStore(), newRecordingVectorStore(), nil)

	err := w.Handle(context.Background(), []byte("{"))
	assert.Error(t, err)
	assert.Empty(t, docStore.processing)
}

func TestQASectionsIncludeSubsectionContent(t *testing.T) {
	doc := &tree.Tree{
		Structure: tree.Structure{
			Sections: []tree.Section{
				{
					Title:   "Chapter",
					Level:   1,
					Content: "chapter intro",
					Subsections: []tree.Section{
						{Title: "Details", Level: 2, Content: "nested details"},
					},
				},
			},
		},
	}

	sections := qaSections(doc)

	require.Len(t, sections, 1)
	assert.Equal(t, "Chapter", sections[0].Title)
	assert.Contains(t, sections[0].Content, "chapter intro")
	assert.Contains(t, sections[0].Content, "nested details")
}

func TestDeleteDocumentVectors(t *testing.T) {
	ix := sparse.NewIndex()
	ix.Add(
		sparse.Document{ID: "a", Text: "alpha", Payload: map[string]any{"document_id": "d1"}},
		sparse.Document{ID: "b", Text: "beta", Payload: map[string]any{"document_id": "d2"}},
	)
	vectors := &deletingVectorStore{}

	require.NoError(t, DeleteDocumentVectors(context.Background(), vectors, ix, "d1"))

	assert.Equal(t, 1, ix.Len())
	assert.ElementsMatch(t, []string{
		vectordb.CollectionChunks,
		vectordb.CollectionSummaries,
		vectordb.CollectionQA,
	}, vectors.deleted)
}

type deletingVectorStore struct {
	vectordb.Store
	deleted []string
}

func (d *deletingVectorStore) DeleteByFilter(_ context.Context, collection string, _ map[string]any) error {
	d.deleted = append(d.deleted, collection)
	return nil
}
