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

// Package rerank reorders retrieval candidates by LLM-judged relevance.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
)

// Config contains reranker configuration.
type Config struct {
	// SnippetChars bounds how much of each candidate goes into the prompt.
	SnippetChars int     `yaml:"snippet_chars" json:"snippet_chars"`
	MaxTokens    int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
}

// SetDefaults sets default values for reranker configuration
func (c *Config) SetDefaults() {
	if c.SnippetChars == 0 {
		c.SnippetChars = 500
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 50
	}
}

// Reranker asks the LLM to pick the most relevant candidates.
type Reranker struct {
	provider llms.Provider
	config   *Config
	logger   *slog.Logger
}

// New creates a reranker.
func New(provider llms.Provider, config *Config) *Reranker {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	return &Reranker{
		provider: provider,
		config:   config,
		logger:   logger.GetLogger(),
	}
}

// Rerank returns the topK most relevant candidates in the order the LLM
// ranked them, each stamped with its rerank position. Any failure falls
// back to the input order truncated to topK.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retrieval.Candidate, topK int) ([]retrieval.Candidate, error) {
	if len(candidates) == 0 {
		return []retrieval.Candidate{}, nil
	}
	r.logger.Info("Reranking candidates", "count", len(candidates), "top_k", topK)

	temp := r.config.Temperature
	result, err := r.provider.Complete(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: "You are a relevance ranking assistant."},
			{Role: llms.RoleUser, Content: r.prompt(query, candidates, topK)},
		},
		Temperature: &temp,
		MaxTokens:   r.config.MaxTokens,
	})
	if err != nil {
		r.logger.Warn("Reranking call failed, falling back to original order", "error", err)
		return stamp(truncate(candidates, topK)), nil
	}

	reranked := pick(candidates, ParseIndices(result.Text, len(candidates)))
	if len(reranked) == 0 {
		r.logger.Warn("Reranking returned no usable indices, falling back to original order",
			"response", result.Text)
		reranked = truncate(candidates, topK)
	}
	return stamp(truncate(reranked, topK)), nil
}

func (r *Reranker) prompt(query string, candidates []retrieval.Candidate, topK int) string {
	var b strings.Builder
	for i, candidate := range candidates {
		text := candidate.Text
		if len(text) > r.config.SnippetChars {
			text = text[:r.config.SnippetChars]
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i, text)
	}

	return fmt.Sprintf(`Given the query and document chunks below, rank the chunks by relevance to the query.
Output only the indices of the top %d most relevant chunks, in order, separated by commas.

Query: %s

Chunks:
%s
Top %d most relevant chunk indices (comma-separated):`, topK, query, b.String(), topK)
}

// ParseIndices extracts 0-based candidate indices from a comma-separated
// response. Out-of-range and non-integer fields are dropped, duplicates
// keep their first position.
func ParseIndices(text string, n int) []int {
	var indices []int
	seen := make(map[int]bool)
	for _, field := range strings.Split(strings.TrimSpace(text), ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	return indices
}

func pick(candidates []retrieval.Candidate, indices []int) []retrieval.Candidate {
	picked := make([]retrieval.Candidate, 0, len(indices))
	for _, idx := range indices {
		picked = append(picked, candidates[idx])
	}
	return picked
}

func truncate(candidates []retrieval.Candidate, topK int) []retrieval.Candidate {
	if topK > 0 && len(candidates) > topK {
		return candidates[:topK]
	}
	return candidates
}

func stamp(candidates []retrieval.Candidate) []retrieval.Candidate {
	for i := range candidates {
		candidates[i].RerankPosition = i + 1
	}
	return candidates
}
