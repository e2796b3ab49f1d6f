// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package worker contains the queue consumers: the ingestion pipeline
// state machine and the agentic query loop.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragstack/pkg/chunking"
	"github.com/kadirpekel/ragstack/pkg/converter"
	"github.com/kadirpekel/ragstack/pkg/embedder"
	"github.com/kadirpekel/ragstack/pkg/language"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/qa"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/summarizer"
	"github.com/kadirpekel/ragstack/pkg/tokenizer"
	"github.com/kadirpekel/ragstack/pkg/tree"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// DocumentStore persists document state transitions.
type DocumentStore interface {
	MarkDocumentProcessing(ctx context.Context, id string) error
	CompleteDocument(ctx context.Context, id string, results store.ProcessingResults) error
	FailDocument(ctx context.Context, id, message string) error
}

// ObjectStore is the artifact storage the pipeline reads and writes.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutMarkdown(ctx context.Context, documentID, markdown string) error
	PutSummary(ctx context.Context, documentID, summary string) error
	PutQAPairs(ctx context.Context, documentID string, pairs any) error
	PutMetadata(ctx context.Context, documentID string, metadata any) error
}

// IngestionDeps are the collaborators of the ingestion worker.
type IngestionDeps struct {
	Store       DocumentStore
	Objects     ObjectStore
	Converter   *converter.Converter
	TreeBuilder *tree.Builder
	Language    *language.Detector
	Summarizer  *summarizer.Summarizer
	QA          *qa.Generator
	Chunker     *chunking.Orchestrator
	Embedder    embedder.Embedder
	Vectors     vectordb.Store
	Sparse      *sparse.Index
	Tokenizer   *tokenizer.Tokenizer
}

// IngestionWorker drives a document through the full pipeline. Documents
// move pending -> processing -> completed or failed; a failed stage
// records its message and the job is not requeued.
type IngestionWorker struct {
	deps   IngestionDeps
	logger *slog.Logger
}

// NewIngestionWorker creates an ingestion worker.
func NewIngestionWorker(deps IngestionDeps) *IngestionWorker {
	return &IngestionWorker{deps: deps, logger: logger.GetLogger()}
}

// Run consumes the ingestion queue until the context is cancelled.
func (w *IngestionWorker) Run(ctx context.Context, broker *queue.Broker) error {
	return broker.Consume(ctx, queue.IngestionQueue, w.Handle)
}

// Handle processes one ingestion job. A returned error nacks the
// message; the document status is already failed by then.
func (w *IngestionWorker) Handle(ctx context.Context, body []byte) error {
	var job queue.IngestionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return ragerr.Queue("decode ingestion job", err)
	}
	w.logger.Info("Ingestion started", "document_id", job.DocumentID, "file_path", job.FilePath)

	if err := w.deps.Store.MarkDocumentProcessing(ctx, job.DocumentID); err != nil {
		return err
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Error("Ingestion failed", "document_id", job.DocumentID, "stage", ragerr.Stage(err), "error", err)
		if failErr := w.deps.Store.FailDocument(ctx, job.DocumentID, err.Error()); failErr != nil {
			w.logger.Error("Failed to record failure", "document_id", job.DocumentID, "error", failErr)
		}
		return err
	}
	return nil
}

func (w *IngestionWorker) process(ctx context.Context, job queue.IngestionJob) error {
	// Conversion: original bytes to unified markdown plus structure.
	original, err := w.deps.Objects.GetObject(ctx, job.FilePath)
	if err != nil {
		return ragerr.Processing("fetch", "failed to fetch original", err)
	}
	filename := job.OriginalFilename
	if filename == "" {
		filename = job.FilePath
	}
	converted, err := w.deps.Converter.Convert(ctx, filename, original)
	if err != nil {
		return ragerr.Processing("convert", "document conversion failed", err)
	}
	if err := w.deps.Objects.PutMarkdown(ctx, job.DocumentID, converted.Markdown); err != nil {
		return ragerr.Processing("convert", "failed to store markdown", err)
	}

	docTree := w.deps.TreeBuilder.Build(&converted.Analysis, nil)
	if docTree.Text == "" {
		docTree.Text = converted.Markdown
	}

	tokenCount := w.deps.Tokenizer.Count(docTree.Text)
	sizeCategory := language.CategorizeSize(tokenCount)
	detected := w.deps.Language.Detect(docTree.Text, sizeCategory)
	w.logger.Info("Document analyzed",
		"document_id", job.DocumentID,
		"tokens", tokenCount,
		"size_category", sizeCategory,
		"language", detected.Primary)

	// Enrichment: summary and Q&A over the tree.
	summaryResult, err := w.deps.Summarizer.Summarize(ctx, filename, converted.MimeType, docTree)
	if err != nil {
		return ragerr.Processing("summarize", "summarization failed", err)
	}
	if err := w.deps.Objects.PutSummary(ctx, job.DocumentID, summaryResult.DocumentSummary); err != nil {
		return ragerr.Processing("summarize", "failed to store summary", err)
	}

	qaPairs, err := w.deps.QA.Generate(ctx, converted.Markdown, qaSections(docTree),
		qa.SelectMethod(sizeCategory), qa.NumPairs(sizeCategory), filename, converted.MimeType)
	if err != nil {
		return ragerr.Processing("qa", "question generation failed", err)
	}
	if err := w.deps.Objects.PutQAPairs(ctx, job.DocumentID, qaPairs); err != nil {
		return ragerr.Processing("qa", "failed to store qa pairs", err)
	}

	// Chunking.
	chunks, strategy, err := w.deps.Chunker.ChunkDocument(converted.Markdown)
	if err != nil {
		return ragerr.Processing("chunk", "chunking failed", err)
	}

	// Embedding and vector storage.
	vectorCount, err := w.storeVectors(ctx, job.DocumentID, chunks, summaryResult.DocumentSummary, qaPairs, detected)
	if err != nil {
		return err
	}

	metadata := map[string]any{
		"filename":          filename,
		"mime_type":         converted.MimeType,
		"token_count":       tokenCount,
		"size_category":     sizeCategory,
		"language":          detected.Primary,
		"is_multilingual":   detected.IsMultilingual,
		"chunking_strategy": string(strategy),
		"summary_method":    summaryResult.Method,
		"sections":          docTree.Metadata.TotalSections,
		"tables":            docTree.Metadata.TotalTables,
		"images":            docTree.Metadata.TotalImages,
	}
	if err := w.deps.Objects.PutMetadata(ctx, job.DocumentID, metadata); err != nil {
		return ragerr.Processing("store", "failed to store metadata", err)
	}

	if err := w.deps.Store.CompleteDocument(ctx, job.DocumentID, store.ProcessingResults{
		ChunkCount:        len(chunks),
		VectorCount:       vectorCount,
		QAPairsCount:      len(qaPairs),
		Summary:           summaryResult.DocumentSummary,
		DetectedLanguages: detected.AllLanguages,
		PrimaryLanguage:   detected.Primary,
		IsMultilingual:    detected.IsMultilingual,
		ChunkingStrategy:  string(strategy),
	}); err != nil {
		return err
	}

	w.logger.Info("Ingestion completed",
		"document_id", job.DocumentID,
		"chunks", len(chunks),
		"vectors", vectorCount,
		"qa_pairs", len(qaPairs))
	return nil
}

// storeVectors embeds chunks, the summary and Q&A pairs and upserts them
// into their collections. The sparse index picks up the chunks too.
func (w *IngestionWorker) storeVectors(ctx context.Context, documentID string, chunks []chunking.Chunk, summary string, qaPairs []qa.Pair, detected language.Result) (int, error) {
	dim := uint64(w.deps.Embedder.Dimension())
	for _, collection := range []string{vectordb.CollectionChunks, vectordb.CollectionSummaries, vectordb.CollectionQA} {
		if err := w.deps.Vectors.EnsureCollection(ctx, collection, dim); err != nil {
			return 0, ragerr.Processing("store", "failed to ensure collection", err)
		}
	}

	// Chunks.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := w.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, ragerr.Processing("embed", "chunk embedding failed", err)
	}

	chunkPoints := make([]vectordb.Point, len(chunks))
	sparseDocs := make([]sparse.Document, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			"document_id":     documentID,
			"content_type":    vectordb.ContentTypeChunk,
			"text":            c.Text,
			"chunk_index":     int64(c.Index),
			"section":         c.Section,
			"hierarchy_path":  c.HierarchyPath,
			"chunk_type":      string(c.Type),
			"language":        detected.Primary,
			"is_multilingual": detected.IsMultilingual,
		}
		if c.ParentID != nil {
			payload["parent_id"] = int64(*c.ParentID)
		}
		id := uuid.NewString()
		chunkPoints[i] = vectordb.Point{ID: id, Vector: vectors[i], Payload: payload}
		sparseDocs[i] = sparse.Document{ID: id, Text: c.Text, Payload: payload}
	}
	if err := w.deps.Vectors.Upsert(ctx, vectordb.CollectionChunks, chunkPoints); err != nil {
		return 0, ragerr.Processing("store", "chunk upsert failed", err)
	}
	if w.deps.Sparse != nil {
		w.deps.Sparse.RemoveWhere(func(payload map[string]any) bool {
			return payload["document_id"] == documentID
		})
		w.deps.Sparse.Add(sparseDocs...)
	}
	total := len(chunkPoints)

	// Summary.
	if summary != "" {
		vector, err := w.deps.Embedder.Embed(ctx, summary)
		if err != nil {
			return 0, ragerr.Processing("embed", "summary embedding failed", err)
		}
		point := vectordb.Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: map[string]any{
				"document_id":  documentID,
				"content_type": vectordb.ContentTypeSummary,
				"text":         summary,
			},
		}
		if err := w.deps.Vectors.Upsert(ctx, vectordb.CollectionSummaries, []vectordb.Point{point}); err != nil {
			return 0, ragerr.Processing("store", "summary upsert failed", err)
		}
		total++
	}

	// Q&A: question and answer are separate points sharing qa_type.
	if len(qaPairs) > 0 {
		qaTexts := make([]string, 0, len(qaPairs)*2)
		for _, pair := range qaPairs {
			qaTexts = append(qaTexts, pair.Question, pair.Answer)
		}
		qaVectors, err := w.deps.Embedder.EmbedBatch(ctx, qaTexts)
		if err != nil {
			return 0, ragerr.Processing("embed", "qa embedding failed", err)
		}

		qaPoints := make([]vectordb.Point, 0, len(qaTexts))
		for i, pair := range qaPairs {
			qaPoints = append(qaPoints, vectordb.Point{
				ID:     uuid.NewString(),
				Vector: qaVectors[i*2],
				Payload: map[string]any{
					"document_id":  documentID,
					"content_type": vectordb.ContentTypeQuestion,
					"text":         pair.Question,
					"answer":       pair.Answer,
					"qa_type":      pair.Type,
				},
			}, vectordb.Point{
				ID:     uuid.NewString(),
				Vector: qaVectors[i*2+1],
				Payload: map[string]any{
					"document_id":  documentID,
					"content_type": vectordb.ContentTypeAnswer,
					"text":         pair.Answer,
					"question":     pair.Question,
					"qa_type":      pair.Type,
				},
			})
		}
		if err := w.deps.Vectors.Upsert(ctx, vectordb.CollectionQA, qaPoints); err != nil {
			return 0, ragerr.Processing("store", "qa upsert failed", err)
		}
		total += len(qaPoints)
	}

	return total, nil
}

// DeleteDocument removes a document's points from every collection and
// the sparse index. Vector-side failures are surfaced but do not stop
// the relational deletion; the caller decides.
func DeleteDocumentVectors(ctx context.Context, vectors vectordb.Store, ix *sparse.Index, documentID string) error {
	filter := map[string]any{"document_id": documentID}
	var firstErr error
	for _, collection := range []string{vectordb.CollectionChunks, vectordb.CollectionSummaries, vectordb.CollectionQA} {
		if err := vectors.DeleteByFilter(ctx, collection, filter); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ix != nil {
		ix.RemoveWhere(func(payload map[string]any) bool {
			return payload["document_id"] == documentID
		})
	}
	return firstErr
}

// qaSections flattens the tree's top level sections for per-section
// question generation.
func qaSections(t *tree.Tree) []qa.Section {
	sections := make([]qa.Section, 0, len(t.Structure.Sections))
	for _, s := range t.Structure.Sections {
		sections = append(sections, qa.Section{Title: s.Title, Content: sectionContent(s)})
	}
	return sections
}

func sectionContent(s tree.Section) string {
	content := s.Content
	for _, sub := range s.Subsections {
		content += "\n" + sectionContent(sub)
	}
	return content
}
