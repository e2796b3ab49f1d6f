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
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// Query is a row in the queries table. Citations and DebugData are kept
// as raw JSON so the store stays decoupled from the pipeline types.
type Query struct {
	ID             string          `json:"id"`
	QueryText      string          `json:"query_text"`
	Status         string          `json:"status"`
	Answer         string          `json:"answer,omitempty"`
	Citations      json.RawMessage `json:"citations,omitempty"`
	DebugData      json.RawMessage `json:"debug_data,omitempty"`
	DocumentFilter []string        `json:"document_filter,omitempty"`
	IterationCount *int            `json:"iteration_count,omitempty"`
	TotalTimeMs    *int            `json:"total_time_ms,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// QueryResult holds the final state the query worker persists.
type QueryResult struct {
	Answer         string
	Citations      any
	DebugData      any
	IterationCount int
	TotalTimeMs    int
}

const queryColumns = `id, query_text, status, COALESCE(answer, ''), citations, debug_data,
	document_filter, iteration_count, total_time_ms, COALESCE(error_message, ''),
	created_at, completed_at`

// CreateQuery inserts a new pending query.
func (s *Store) CreateQuery(ctx context.Context, queryText string, documentFilter []string) (*Query, error) {
	q := &Query{
		ID:             uuid.NewString(),
		QueryText:      queryText,
		Status:         StatusPending,
		DocumentFilter: documentFilter,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO queries (id, query_text, status, document_filter, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.QueryText, q.Status, q.DocumentFilter, q.CreatedAt)
	if err != nil {
		return nil, ragerr.Database("query insert", err)
	}
	s.logger.Info("Query created", "query_id", q.ID)
	return q, nil
}

// GetQuery returns a query by id.
func (s *Store) GetQuery(ctx context.Context, id string) (*Query, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE id = $1`, id)
	q, err := scanQuery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ragerr.NotFound("query", id)
	}
	if err != nil {
		return nil, ragerr.Database("query select", err)
	}
	return q, nil
}

// MarkQueryProcessing transitions a query to processing.
func (s *Store) MarkQueryProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queries SET status = $1, updated_at = now() WHERE id = $2`,
		StatusProcessing, id)
	if err != nil {
		return ragerr.Database("query update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("query", id)
	}
	return nil
}

// CompleteQuery writes the final answer, citations and debug record.
func (s *Store) CompleteQuery(ctx context.Context, id string, result QueryResult) error {
	citations, err := json.Marshal(result.Citations)
	if err != nil {
		return ragerr.Internal("marshal citations", err)
	}
	debug, err := json.Marshal(result.DebugData)
	if err != nil {
		return ragerr.Internal("marshal debug data", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE queries
		 SET status = $1,
		     answer = $2,
		     citations = $3,
		     debug_data = $4,
		     iteration_count = $5,
		     total_time_ms = $6,
		     error_message = NULL,
		     completed_at = now(),
		     updated_at = now()
		 WHERE id = $7`,
		StatusCompleted, result.Answer, citations, debug,
		result.IterationCount, result.TotalTimeMs, id)
	if err != nil {
		return ragerr.Database("query update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("query", id)
	}
	s.logger.Info("Query completed", "query_id", id, "total_time_ms", result.TotalTimeMs)
	return nil
}

// FailQuery marks a query failed with the error message recorded.
func (s *Store) FailQuery(ctx context.Context, id, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queries
		 SET status = $1, error_message = $2, completed_at = now(), updated_at = now()
		 WHERE id = $3`,
		StatusFailed, message, id)
	if err != nil {
		return ragerr.Database("query update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragerr.NotFound("query", id)
	}
	return nil
}

func scanQuery(row pgx.Row) (*Query, error) {
	var q Query
	err := row.Scan(
		&q.ID, &q.QueryText, &q.Status, &q.Answer, &q.Citations, &q.DebugData,
		&q.DocumentFilter, &q.IterationCount, &q.TotalTimeMs, &q.ErrorMessage,
		&q.CreatedAt, &q.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
