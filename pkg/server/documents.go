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

package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/ragstack/pkg/converter"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/store"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
	"github.com/kadirpekel/ragstack/pkg/worker"
)

// handleUploadDocument accepts a multipart upload, stages the original
// in object storage, and queues the document for ingestion.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, ragerr.Validation("request body must be multipart form data with a file field"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, ragerr.Validation("file field is required"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, ragerr.Validation("uploaded file must have a filename"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = converter.MimeTypeFor(header.Filename)
	}

	doc, err := s.deps.Store.CreateDocument(ctx, header.Filename, mimeType, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	key, err := s.deps.Objects.PutOriginal(ctx, doc.ID, header.Filename, mimeType, file, header.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	job := queue.IngestionJob{
		DocumentID:       doc.ID,
		FilePath:         key,
		OriginalFilename: header.Filename,
		MimeType:         mimeType,
		CorrelationID:    CorrelationIDFrom(ctx),
	}
	if err := s.deps.Broker.PublishIngestion(ctx, job); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("document queued for ingestion",
		"document_id", doc.ID,
		"filename", header.Filename,
		"size_bytes", header.Size)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       doc.ID,
		"filename": doc.Filename,
		"status":   doc.Status,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !validStatus(status) {
		writeError(w, ragerr.Validation("status must be one of pending, processing, completed, failed"))
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := s.deps.Store.ListDocuments(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentChunks returns a document's indexed chunks by
// scrolling the vector store with a document_id filter.
func (s *Server) handleGetDocumentChunks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := s.deps.Store.GetDocument(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Vectors == nil {
		writeError(w, ragerr.Internal("vector store is not configured", nil))
		return
	}

	points, err := s.deps.Vectors.Scroll(ctx, vectordb.CollectionChunks, map[string]any{"document_id": id}, 256)
	if err != nil {
		writeError(w, err)
		return
	}

	chunks := make([]map[string]any, 0, len(points))
	for _, p := range points {
		chunk := map[string]any{"id": p.ID}
		for k, v := range p.Payload {
			chunk[k] = v
		}
		chunks = append(chunks, chunk)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"chunks":      chunks,
		"total":       len(chunks),
	})
}

// handleDeleteDocument removes the document everywhere. Vector and
// object cleanup is best effort: the relational row is the source of
// truth, so its deletion decides the response.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := s.deps.Store.GetDocument(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	if s.deps.Vectors != nil {
		if err := worker.DeleteDocumentVectors(ctx, s.deps.Vectors, s.deps.Sparse, id); err != nil {
			s.logger.Warn("failed to delete document vectors", "document_id", id, "error", err)
		}
	}
	if err := s.deps.Objects.DeleteDocument(ctx, id); err != nil {
		s.logger.Warn("failed to delete document objects", "document_id", id, "error", err)
	}

	if err := s.deps.Store.DeleteDocument(ctx, id); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("document deleted", "document_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func validStatus(status string) bool {
	switch status {
	case store.StatusPending, store.StatusProcessing, store.StatusCompleted, store.StatusFailed:
		return true
	}
	return false
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
