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

// Package answer generates the final cited answer from retrieved context.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
)

// InsufficientContext is returned when no candidates survived retrieval.
const InsufficientContext = "I don't have enough information to answer this question."

// Citation links a bracketed reference in the answer back to its source.
type Citation struct {
	CitationNumber int    `json:"citation_number"`
	Text           string `json:"text"`
	Section        string `json:"section,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	Type           string `json:"type,omitempty"`
}

// Result is a generated answer with its citations.
type Result struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Config contains answer generation configuration.
type Config struct {
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// SetDefaults sets default values for answer generation configuration
func (c *Config) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// Generator produces answers grounded in retrieved candidates.
type Generator struct {
	provider llms.Provider
	config   *Config
	logger   *slog.Logger
}

// New creates a generator.
func New(provider llms.Provider, config *Config) *Generator {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	return &Generator{
		provider: provider,
		config:   config,
		logger:   logger.GetLogger(),
	}
}

// Generate answers the query from the candidates. With no candidates it
// returns a fixed insufficient-context answer without calling the model.
func (g *Generator) Generate(ctx context.Context, query string, candidates []retrieval.Candidate) (*Result, error) {
	if len(candidates) == 0 {
		return &Result{Answer: InsufficientContext, Citations: []Citation{}}, nil
	}

	var contextText strings.Builder
	for i, c := range candidates {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		fmt.Fprintf(&contextText, "[%d] %s", i+1, c.Text)
	}

	temp := g.config.Temperature
	result, err := g.provider.Complete(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: "You are a helpful assistant that answers questions based on provided context. Always cite your sources using [1], [2], etc."},
			{Role: llms.RoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer the question based on the context above. Cite sources using [1], [2], etc.", contextText.String(), query)},
		},
		Temperature: &temp,
		MaxTokens:   g.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	answer := strings.TrimSpace(result.Text)
	citations := ExtractCitations(answer, candidates)
	g.logger.Info("Answer generated", "citations", len(citations), "chars", len(answer))

	return &Result{Answer: answer, Citations: citations}, nil
}

// ExtractCitations returns a citation for every candidate whose [n] marker
// appears in the answer, in candidate order.
func ExtractCitations(answer string, candidates []retrieval.Candidate) []Citation {
	citations := []Citation{}
	for i, c := range candidates {
		marker := fmt.Sprintf("[%d]", i+1)
		if !strings.Contains(answer, marker) {
			continue
		}
		citations = append(citations, Citation{
			CitationNumber: i + 1,
			Text:           c.Text,
			Section:        c.Section(),
			DocumentID:     c.DocumentID(),
			Type:           c.ContentType(),
		})
	}
	return citations
}
