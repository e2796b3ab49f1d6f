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
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

type createQueryRequest struct {
	QueryText      string   `json:"query_text"`
	DocumentFilter []string `json:"document_filter,omitempty"`
	DebugMode      bool     `json:"debug_mode,omitempty"`
	TopK           int      `json:"top_k,omitempty"`
	RerankTop      int      `json:"rerank_top,omitempty"`
}

// handleCreateQuery validates and persists the query, then hands it to
// the query worker through the broker. The client polls for the answer.
func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ragerr.Validation("request body must be valid JSON"))
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		writeError(w, ragerr.Validation("query_text is required"))
		return
	}
	if len(req.QueryText) > 4000 {
		writeError(w, ragerr.Validation("query_text must be at most 4000 characters"))
		return
	}
	for _, id := range req.DocumentFilter {
		if _, err := uuid.Parse(id); err != nil {
			writeError(w, ragerr.Validation("document_filter entries must be UUIDs"))
			return
		}
	}
	if req.TopK < 0 || req.TopK > 100 {
		writeError(w, ragerr.Validation("top_k must be between 1 and 100"))
		return
	}
	if req.RerankTop < 0 || (req.TopK != 0 && req.RerankTop > req.TopK) {
		writeError(w, ragerr.Validation("rerank_top must not exceed top_k"))
		return
	}

	q, err := s.deps.Store.CreateQuery(ctx, req.QueryText, req.DocumentFilter)
	if err != nil {
		writeError(w, err)
		return
	}

	job := queue.QueryJob{
		QueryID:        q.ID,
		QueryText:      req.QueryText,
		DocumentFilter: req.DocumentFilter,
		DebugMode:      req.DebugMode,
		TopK:           req.TopK,
		RerankTop:      req.RerankTop,
		CorrelationID:  CorrelationIDFrom(ctx),
	}
	if err := s.deps.Broker.PublishQuery(ctx, job); err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("query queued", "query_id", q.ID, "debug_mode", req.DebugMode)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     q.ID,
		"status": q.Status,
	})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	q, err := s.deps.Store.GetQuery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
