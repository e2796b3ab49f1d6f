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

package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kadirpekel/ragstack/pkg/agent"
	"github.com/kadirpekel/ragstack/pkg/answer"
	"github.com/kadirpekel/ragstack/pkg/embedder"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/queue"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/rerank"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
	"github.com/kadirpekel/ragstack/pkg/store"
)

// QueryStore persists query state transitions.
type QueryStore interface {
	MarkQueryProcessing(ctx context.Context, id string) error
	CompleteQuery(ctx context.Context, id string, result store.QueryResult) error
	FailQuery(ctx context.Context, id, message string) error
}

// QueryDeps are the collaborators of the query worker.
type QueryDeps struct {
	Store     QueryStore
	Embedder  embedder.Embedder
	Retriever *retrieval.Retriever
	Reranker  *rerank.Reranker
	Agent     *agent.Evaluator
	Answerer  *answer.Generator
}

// QueryConfig contains query worker configuration.
type QueryConfig struct {
	DefaultTopK      int `yaml:"default_top_k" json:"default_top_k"`
	DefaultRerankTop int `yaml:"default_rerank_top" json:"default_rerank_top"`
	MaxIterations    int `yaml:"max_agent_iterations" json:"max_agent_iterations"`
}

// SetDefaults sets default values for query worker configuration
func (c *QueryConfig) SetDefaults() {
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 10
	}
	if c.DefaultRerankTop == 0 {
		c.DefaultRerankTop = 5
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 3
	}
}

// Snapshot is a truncated view of one candidate for debug records.
type Snapshot struct {
	ID             string  `json:"id"`
	Score          float64 `json:"score"`
	Text           string  `json:"text"`
	Section        string  `json:"section,omitempty"`
	RerankPosition int     `json:"rerank_position,omitempty"`
}

// IterationTiming holds per-stage durations for one iteration.
type IterationTiming struct {
	EmbeddingMs int64 `json:"embedding_ms"`
	SearchMs    int64 `json:"search_ms"`
	RerankMs    int64 `json:"rerank_ms"`
	AgentMs     int64 `json:"agent_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// IterationRecord captures everything one loop iteration did.
type IterationRecord struct {
	IterationNumber    int                  `json:"iteration_number"`
	QueryUsed          string               `json:"query_used"`
	SearchSources      retrieval.Provenance `json:"search_sources"`
	ChunksBeforeRerank []Snapshot           `json:"chunks_before_rerank"`
	ChunksAfterRerank  []Snapshot           `json:"chunks_after_rerank"`
	AgentEvaluation    agent.Evaluation     `json:"agent_evaluation"`
	Timing             IterationTiming      `json:"timing"`
}

// TimingSummary aggregates stage durations across iterations.
type TimingSummary struct {
	EmbeddingMs  int64 `json:"embedding_ms"`
	SearchMs     int64 `json:"search_ms"`
	RerankMs     int64 `json:"rerank_ms"`
	AgentMs      int64 `json:"agent_ms"`
	GenerationMs int64 `json:"generation_ms"`
	TotalMs      int64 `json:"total_ms"`
}

// DebugData is the per-query debug record persisted alongside the answer.
type DebugData struct {
	Iterations []IterationRecord `json:"iterations"`
	Timing     TimingSummary     `json:"timing"`
}

// QueryWorker runs the agentic retrieval loop for each query job.
type QueryWorker struct {
	deps   QueryDeps
	config *QueryConfig
	logger *slog.Logger
}

// NewQueryWorker creates a query worker.
func NewQueryWorker(deps QueryDeps, config *QueryConfig) *QueryWorker {
	if config == nil {
		config = &QueryConfig{}
	}
	config.SetDefaults()
	return &QueryWorker{deps: deps, config: config, logger: logger.GetLogger()}
}

// Run consumes the query queue until the context is cancelled.
func (w *QueryWorker) Run(ctx context.Context, broker *queue.Broker) error {
	return broker.Consume(ctx, queue.QueryQueue, w.Handle)
}

// Handle processes one query job.
func (w *QueryWorker) Handle(ctx context.Context, body []byte) error {
	var job queue.QueryJob
	if err := json.Unmarshal(body, &job); err != nil {
		return ragerr.Queue("decode query job", err)
	}
	w.logger.Info("Query started", "query_id", job.QueryID)

	if err := w.deps.Store.MarkQueryProcessing(ctx, job.QueryID); err != nil {
		return err
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Error("Query failed", "query_id", job.QueryID, "error", err)
		if failErr := w.deps.Store.FailQuery(ctx, job.QueryID, err.Error()); failErr != nil {
			w.logger.Error("Failed to record failure", "query_id", job.QueryID, "error", failErr)
		}
		return err
	}
	return nil
}

func (w *QueryWorker) process(ctx context.Context, job queue.QueryJob) error {
	topK := job.TopK
	if topK <= 0 {
		topK = w.config.DefaultTopK
	}
	rerankTop := job.RerankTop
	if rerankTop <= 0 {
		rerankTop = w.config.DefaultRerankTop
	}
	maxIterations := w.config.MaxIterations

	currentQuery := job.QueryText
	var finalChunks []retrieval.Candidate
	var iterations []IterationRecord

	for iteration := 1; iteration <= maxIterations; iteration++ {
		iterationStart := time.Now()
		var timing IterationTiming

		embedStart := time.Now()
		queryVector, err := w.deps.Embedder.Embed(ctx, currentQuery)
		if err != nil {
			return err
		}
		timing.EmbeddingMs = time.Since(embedStart).Milliseconds()

		searchStart := time.Now()
		candidates, provenance, err := w.deps.Retriever.Retrieve(ctx, queryVector, currentQuery, topK, job.DocumentFilter)
		if err != nil {
			return err
		}
		timing.SearchMs = time.Since(searchStart).Milliseconds()

		before := candidates
		if len(before) > rerankTop {
			before = before[:rerankTop]
		}

		rerankStart := time.Now()
		reranked, err := w.deps.Reranker.Rerank(ctx, currentQuery, candidates, rerankTop)
		if err != nil {
			return err
		}
		timing.RerankMs = time.Since(rerankStart).Milliseconds()

		agentStart := time.Now()
		evaluation := w.deps.Agent.Evaluate(ctx, currentQuery, reranked, iteration, maxIterations)
		timing.AgentMs = time.Since(agentStart).Milliseconds()
		timing.TotalMs = time.Since(iterationStart).Milliseconds()

		iterations = append(iterations, IterationRecord{
			IterationNumber:    iteration,
			QueryUsed:          currentQuery,
			SearchSources:      provenance,
			ChunksBeforeRerank: snapshots(before),
			ChunksAfterRerank:  snapshots(reranked),
			AgentEvaluation:    evaluation,
			Timing:             timing,
		})

		done := false
		switch evaluation.Decision {
		case agent.DecisionRefine:
			finalChunks = reranked
			currentQuery = evaluation.RefinedQuery
		case agent.DecisionExpand:
			// Keep the current chunks as a fallback and search again.
			finalChunks = reranked
		default:
			finalChunks = reranked
			done = true
		}
		if done {
			break
		}
	}

	generationStart := time.Now()
	result, err := w.deps.Answerer.Generate(ctx, job.QueryText, finalChunks)
	if err != nil {
		return err
	}
	generationMs := time.Since(generationStart).Milliseconds()

	debug := DebugData{Iterations: iterations, Timing: TimingSummary{GenerationMs: generationMs}}
	for _, it := range iterations {
		debug.Timing.EmbeddingMs += it.Timing.EmbeddingMs
		debug.Timing.SearchMs += it.Timing.SearchMs
		debug.Timing.RerankMs += it.Timing.RerankMs
		debug.Timing.AgentMs += it.Timing.AgentMs
		debug.Timing.TotalMs += it.Timing.TotalMs
	}
	debug.Timing.TotalMs += generationMs

	if err := w.deps.Store.CompleteQuery(ctx, job.QueryID, store.QueryResult{
		Answer:         result.Answer,
		Citations:      result.Citations,
		DebugData:      debug,
		IterationCount: len(iterations),
		TotalTimeMs:    int(debug.Timing.TotalMs),
	}); err != nil {
		return err
	}

	w.logger.Info("Query completed",
		"query_id", job.QueryID,
		"iterations", len(iterations),
		"total_ms", debug.Timing.TotalMs,
		"citations", len(result.Citations))
	return nil
}

// snapshots truncates candidate texts to 200 characters for the debug
// record.
func snapshots(candidates []retrieval.Candidate) []Snapshot {
	out := make([]Snapshot, len(candidates))
	for i, c := range candidates {
		text := c.Text
		if len(text) > 200 {
			text = text[:200]
		}
		out[i] = Snapshot{
			ID:             c.ID,
			Score:          c.Score,
			Text:           text,
			Section:        c.Section(),
			RerankPosition: c.RerankPosition,
		}
	}
	return out
}
