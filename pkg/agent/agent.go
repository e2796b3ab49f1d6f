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

// Package agent evaluates retrieval quality and decides whether the query
// loop should answer, refine the query, or widen the search.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
)

// Decisions the evaluator can return.
const (
	DecisionProceed = "proceed"
	DecisionRefine  = "refine_query"
	DecisionExpand  = "expand_search"
)

// Evaluation is the evaluator's verdict for one iteration.
type Evaluation struct {
	Decision     string  `json:"decision"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	RefinedQuery string  `json:"refined_query,omitempty"`
}

// Config contains evaluator configuration.
type Config struct {
	// ContextChunks is how many top candidates the evaluator sees.
	ContextChunks int `yaml:"context_chunks" json:"context_chunks"`
	// SnippetChars bounds each candidate's excerpt in the prompt.
	SnippetChars int     `yaml:"snippet_chars" json:"snippet_chars"`
	MaxTokens    int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
}

// SetDefaults sets default values for evaluator configuration
func (c *Config) SetDefaults() {
	if c.ContextChunks == 0 {
		c.ContextChunks = 5
	}
	if c.SnippetChars == 0 {
		c.SnippetChars = 300
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 200
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// Evaluator decides how the agentic loop continues.
type Evaluator struct {
	provider llms.Provider
	config   *Config
	logger   *slog.Logger
}

// New creates an evaluator.
func New(provider llms.Provider, config *Config) *Evaluator {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	return &Evaluator{
		provider: provider,
		config:   config,
		logger:   logger.GetLogger(),
	}
}

// Evaluate returns the decision for this iteration. At the iteration cap it
// proceeds unconditionally without calling the model; any provider or parse
// failure also degrades to proceed so a query never fails on the evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, query string, candidates []retrieval.Candidate, iteration, maxIterations int) Evaluation {
	if iteration >= maxIterations {
		e.logger.Info("Agent at iteration cap, proceeding", "iteration", iteration)
		return Evaluation{
			Decision:   DecisionProceed,
			Confidence: 1.0,
			Reasoning:  "Maximum iterations reached, proceeding with available information",
		}
	}

	temp := e.config.Temperature
	result, err := e.provider.Complete(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: "You are an evaluation agent. Always respond with valid JSON."},
			{Role: llms.RoleUser, Content: e.prompt(query, candidates)},
		},
		Temperature: &temp,
		MaxTokens:   e.config.MaxTokens,
	})
	if err != nil {
		e.logger.Warn("Agent evaluation call failed, proceeding", "error", err)
		return Evaluation{
			Decision:   DecisionProceed,
			Confidence: 0.5,
			Reasoning:  fmt.Sprintf("Agent evaluation error: %v", err),
		}
	}

	evaluation, err := parseEvaluation(result.Text)
	if err != nil {
		e.logger.Warn("Failed to parse agent response, proceeding", "response", result.Text)
		return Evaluation{
			Decision:   DecisionProceed,
			Confidence: 0.5,
			Reasoning:  "Agent evaluation inconclusive, proceeding with available information",
		}
	}

	// A refine decision without a new query has nothing to loop on.
	if evaluation.Decision == DecisionRefine && strings.TrimSpace(evaluation.RefinedQuery) == "" {
		evaluation.Decision = DecisionProceed
	}

	e.logger.Info("Agent decision",
		"iteration", iteration,
		"decision", evaluation.Decision,
		"confidence", evaluation.Confidence)
	return evaluation
}

func (e *Evaluator) prompt(query string, candidates []retrieval.Candidate) string {
	var context strings.Builder
	limit := e.config.ContextChunks
	if len(candidates) < limit {
		limit = len(candidates)
	}
	for i := 0; i < limit; i++ {
		text := candidates[i].Text
		if len(text) > e.config.SnippetChars {
			text = text[:e.config.SnippetChars]
		}
		context.WriteString(text)
		context.WriteString("...\n\n")
	}

	return fmt.Sprintf(`You are an AI agent evaluating whether retrieved information is sufficient to answer a query.

Query: %s

Retrieved Information:
%s
Evaluate the quality and sufficiency of the retrieved information. Choose ONE action:
1. "proceed" - Information is sufficient to answer the query
2. "refine_query" - Information is insufficient, suggest a refined query
3. "expand_search" - Information is partially relevant, expand search scope

Respond in JSON format:
{
  "decision": "proceed|refine_query|expand_search",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "refined_query": "new query if refine_query, else null"
}`, query, context.String())
}

// parseEvaluation decodes the model response, tolerating markdown fences.
func parseEvaluation(text string) (Evaluation, error) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if strings.Contains(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = parts[1]
		}
	}

	var evaluation Evaluation
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &evaluation); err != nil {
		return Evaluation{}, err
	}
	switch evaluation.Decision {
	case DecisionProceed, DecisionRefine, DecisionExpand:
		return evaluation, nil
	default:
		return Evaluation{}, fmt.Errorf("unknown decision %q", evaluation.Decision)
	}
}
