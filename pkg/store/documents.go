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

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// Document is a row in the documents table.
type Document struct {
	ID                    string     `json:"id"`
	Filename              string     `json:"filename"`
	FileSizeBytes         int64      `json:"file_size_bytes"`
	MimeType              string     `json:"mime_type"`
	Status                string     `json:"status"`
	UploadedAt            time.Time  `json:"uploaded_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	ProcessingTimeSeconds *float64   `json:"processing_time_seconds,omitempty"`
	ChunkCount            int        `json:"chunk_count"`
	VectorCount           int        `json:"vector_count"`
	QAPairsCount          int        `json:"qa_pairs_count"`
	DetectedLanguages     []string   `json:"detected_languages,omitempty"`
	PrimaryLanguage       string     `json:"primary_language,omitempty"`
	IsMultilingual        bool       `json:"is_multilingual"`
	ChunkingStrategy      string     `json:"chunking_strategy,omitempty"`
	Summary               string     `json:"summary,omitempty"`
	Tags                  []string   `json:"tags,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
}

// ProcessingResults holds the derived fields the ingestion worker writes
// when a document completes.
type ProcessingResults struct {
	ChunkCount        int
	VectorCount       int
	QAPairsCount      int
	Summary           string
	DetectedLanguages []string
	PrimaryLanguage   string
	IsMultilingual    bool
	ChunkingStrategy  string
}

const documentColumns = `id, filename, file_size_bytes, mime_type, status,
	uploaded_at, processing_started_at, processing_completed_at, processing_time_seconds,
	chunk_count, vector_count, qa_pairs_count, detected_languages,
	COALESCE(primary_language, ''), is_multilingual, COALESCE(chunking_strategy, ''),
	COALESCE(summary, ''), tags, COALESCE(error_message, '')`

// CreateDocument inserts a new pending document and returns it.
func (s *Store) CreateDocument(ctx context.Context, filename, mimeType string, sizeBytes int64) (*Document, error) {
	doc := &Document{
		ID:            uuid.NewString(),
		Filename:      filename,
		FileSizeBytes: sizeBytes,
		MimeType:      mimeType,
		Status:        StatusPending,
		UploadedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, file_size_bytes, mime_type, status, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Filename, doc.FileSizeBytes, doc.MimeType, doc.Status, doc.UploadedAt)
	if err != nil {
		return nil, ragerr.Database("document insert", err)
	}
	s.logger.Info("Document created", "document_id", doc.ID, "filename", filename)
	return doc, nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ragerr.NotFound("document", id)
	}
	if err != nil {
		return nil, ragerr.Database("document select", err)
	}
	return doc, nil
}

// ListDocuments returns a page of documents, newest first, plus the
// total count for the same filter.
func (s *Store) ListDocuments(ctx context.Context, status string, limit, offset int) ([]Document, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{limit, offset}
	countArgs := []any{}
	if status != "" {
		where = " WHERE status = $3"
		args = append(args, status)
		countArgs = append(countArgs, status)
	}

	var total int
	countSQL := `SELECT count(*) FROM documents`
	if status != "" {
		countSQL += ` WHERE status = $1`
	}
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, ragerr.Database("document count", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents`+where+
			` ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, ragerr.Database("document list", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, ragerr.Database("document scan", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, ragerr.Database("document list", err)
	}
	return docs, total, nil
}

// MarkDocumentProcessing transitions a document to processing and stamps
// the start time once.
func (s *Store) MarkDocumentProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $1,
		     processing_started_at = COALESCE(processing_started_at, now()),
		     updated_at = now()
		 WHERE id = $2`,
		StatusProcessing, id)
	if err != nil {
		return ragerr.Database("document update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("document", id)
	}
	return nil
}

// CompleteDocument records processing results and marks the document
// completed. Processing time is derived from the start timestamp.
func (s *Store) CompleteDocument(ctx context.Context, id string, results ProcessingResults) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $1,
		     chunk_count = $2,
		     vector_count = $3,
		     qa_pairs_count = $4,
		     summary = $5,
		     detected_languages = $6,
		     primary_language = $7,
		     is_multilingual = $8,
		     chunking_strategy = $9,
		     processing_completed_at = now(),
		     processing_time_seconds = EXTRACT(EPOCH FROM (now() - processing_started_at)),
		     error_message = NULL,
		     updated_at = now()
		 WHERE id = $10`,
		StatusCompleted, results.ChunkCount, results.VectorCount, results.QAPairsCount,
		results.Summary, results.DetectedLanguages,
		results.PrimaryLanguage, results.IsMultilingual, results.ChunkingStrategy, id)
	if err != nil {
		return ragerr.Database("document update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("document", id)
	}
	s.logger.Info("Document completed",
		"document_id", id,
		"chunk_count", results.ChunkCount,
		"vector_count", results.VectorCount)
	return nil
}

// FailDocument marks a document failed with the error message recorded.
func (s *Store) FailDocument(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $1,
		     error_message = $2,
		     processing_completed_at = now(),
		     processing_time_seconds = EXTRACT(EPOCH FROM (now() - processing_started_at)),
		     updated_at = now()
		 WHERE id = $3`,
		StatusFailed, message, id)
	if err != nil {
		return ragerr.Database("document update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("document", id)
	}
	return nil
}

// DeleteDocument removes the relational record. Vector and object store
// cleanup is the caller's responsibility.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return ragerr.Database("document delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("document", id)
	}
	s.logger.Info("Document deleted", "document_id", id)
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.FileSizeBytes, &doc.MimeType, &doc.Status,
		&doc.UploadedAt, &doc.ProcessingStartedAt, &doc.ProcessingCompletedAt, &doc.ProcessingTimeSeconds,
		&doc.ChunkCount, &doc.VectorCount, &doc.QAPairsCount, &doc.DetectedLanguages,
		&doc.PrimaryLanguage, &doc.IsMultilingual, &doc.ChunkingStrategy,
		&doc.Summary, &doc.Tags, &doc.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
