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

// Package qa generates question-answer pairs for retrieval. Small and
// medium documents get a single generation call over the whole text, larger
// ones get a per-section pass with deduplication.
package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
)

// Generation methods.
const (
	MethodSingle     = "single"
	MethodPerSection = "per_section"
)

// Question types the prompts ask for.
const (
	TypeFactual    = "factual"
	TypeOverview   = "overview"
	TypeProcedural = "procedural"
	TypeComparison = "comparison"
	TypeReasoning  = "reasoning"
)

// Pair is one generated question-answer pair.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Type     string `json:"type"`
}

// Section is a titled slice of the document used by the per-section method.
type Section struct {
	Title   string
	Content string
}

// Config contains Q&A generator configuration. Character limits bound the
// prompt size, not the document.
type Config struct {
	MaxSingleChars   int     `yaml:"max_single_chars" json:"max_single_chars"`
	MaxSectionChars  int     `yaml:"max_section_chars" json:"max_section_chars"`
	SingleMaxTokens  int     `yaml:"single_max_tokens" json:"single_max_tokens"`
	SectionMaxTokens int     `yaml:"section_max_tokens" json:"section_max_tokens"`
	MinPerSection    int     `yaml:"min_per_section" json:"min_per_section"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
}

// SetDefaults sets default values for Q&A configuration
func (c *Config) SetDefaults() {
	if c.MaxSingleChars == 0 {
		c.MaxSingleChars = 15000
	}
	if c.MaxSectionChars == 0 {
		c.MaxSectionChars = 5000
	}
	if c.SingleMaxTokens == 0 {
		c.SingleMaxTokens = 2000
	}
	if c.SectionMaxTokens == 0 {
		c.SectionMaxTokens = 1000
	}
	if c.MinPerSection == 0 {
		c.MinPerSection = 2
	}
	if c.Temperature == 0 {
		c.Temperature = 0.5
	}
}

// Validate validates Q&A configuration
func (c *Config) Validate() error {
	if c.MinPerSection < 1 {
		return fmt.Errorf("min_per_section must be at least 1, got %d", c.MinPerSection)
	}
	return nil
}

// NumPairs returns the recommended number of Q&A pairs for a document size
// category.
func NumPairs(sizeCategory string) int {
	switch sizeCategory {
	case "small":
		return 8
	case "medium":
		return 12
	default:
		return 15
	}
}

// SelectMethod returns the generation method for a document size category.
func SelectMethod(sizeCategory string) string {
	switch sizeCategory {
	case "small", "medium":
		return MethodSingle
	default:
		return MethodPerSection
	}
}

// Generator generates Q&A pairs through a chat provider.
type Generator struct {
	provider llms.Provider
	config   *Config
	logger   *slog.Logger
}

// New creates a Q&A generator.
func New(provider llms.Provider, config *Config) (*Generator, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid qa configuration: %w", err)
	}
	return &Generator{
		provider: provider,
		config:   config,
		logger:   logger.GetLogger(),
	}, nil
}

// Generate produces up to numQuestions Q&A pairs using the given method.
func (g *Generator) Generate(ctx context.Context, markdown string, sections []Section, method string, numQuestions int, filename, mimeType string) ([]Pair, error) {
	g.logger.Info("Generating Q&A pairs",
		"method", method,
		"num_questions", numQuestions,
		"sections", len(sections))

	switch method {
	case MethodSingle:
		return g.generateSingle(ctx, markdown, numQuestions, filename, mimeType)
	case MethodPerSection:
		if len(sections) == 0 {
			return g.generateSingle(ctx, markdown, numQuestions, filename, mimeType)
		}
		return g.generatePerSection(ctx, sections, numQuestions)
	default:
		return nil, fmt.Errorf("unknown Q&A generation method: %s", method)
	}
}

func (g *Generator) generateSingle(ctx context.Context, markdown string, numQuestions int, filename, mimeType string) ([]Pair, error) {
	if len(markdown) > g.config.MaxSingleChars {
		markdown = markdown[:g.config.MaxSingleChars] + "\n\n[Document truncated]"
	}

	text, err := g.complete(ctx, singlePrompt(markdown, filename, mimeType, numQuestions), g.config.SingleMaxTokens)
	if err != nil {
		return nil, err
	}

	pairs := Deduplicate(g.parsePairs(text))
	g.logger.Info("Generated Q&A pairs", "method", MethodSingle, "count", len(pairs))
	return pairs, nil
}

func (g *Generator) generatePerSection(ctx context.Context, sections []Section, total int) ([]Pair, error) {
	perSection := total / len(sections)
	if perSection < g.config.MinPerSection {
		perSection = g.config.MinPerSection
	}

	var all []Pair
	for i, section := range sections {
		content := section.Content
		if len(content) > g.config.MaxSectionChars {
			content = content[:g.config.MaxSectionChars] + "\n[Section truncated]"
		}
		g.logger.Info("Generating Q&A for section",
			"section", i+1,
			"total_sections", len(sections),
			"section_title", section.Title)

		text, err := g.complete(ctx, sectionPrompt(section.Title, content, perSection), g.config.SectionMaxTokens)
		if err != nil {
			return nil, fmt.Errorf("section %d (%s): %w", i, section.Title, err)
		}
		all = append(all, g.parsePairs(text)...)
	}

	deduplicated := Deduplicate(all)
	if len(deduplicated) > total {
		deduplicated = deduplicated[:total]
	}
	g.logger.Info("Generated Q&A pairs",
		"method", MethodPerSection,
		"raw", len(all),
		"deduplicated", len(deduplicated))
	return deduplicated, nil
}

func (g *Generator) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	temp := g.config.Temperature
	result, err := g.provider.Complete(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: qaSystem},
			{Role: llms.RoleUser, Content: prompt},
		},
		Temperature: &temp,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

// parsePairs decodes the model output. The contract is JSON
// {"qa_pairs": [...]}, with a best-effort pipe-separated fallback
// (question|answer|type per line) for models that ignore JSON mode.
func (g *Generator) parsePairs(text string) []Pair {
	var decoded struct {
		QAPairs []Pair `json:"qa_pairs"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return validPairs(decoded.QAPairs)
	}

	g.logger.Warn("Q&A response is not valid JSON, trying pipe-separated fallback",
		"response_length", len(text))
	var pairs []Pair
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		pair := Pair{
			Question: strings.TrimSpace(fields[0]),
			Answer:   strings.TrimSpace(fields[1]),
			Type:     TypeFactual,
		}
		if len(fields) > 2 {
			pair.Type = strings.TrimSpace(fields[2])
		}
		pairs = append(pairs, pair)
	}
	return validPairs(pairs)
}

func validPairs(pairs []Pair) []Pair {
	valid := make([]Pair, 0, len(pairs))
	for _, pair := range pairs {
		if strings.TrimSpace(pair.Question) == "" || strings.TrimSpace(pair.Answer) == "" {
			continue
		}
		if pair.Type == "" {
			pair.Type = TypeFactual
		}
		valid = append(valid, pair)
	}
	return valid
}

// Deduplicate drops exact duplicate questions and near-duplicates, where a
// near-duplicate is a substring match with a length difference under 10
// characters. Comparison is case-insensitive.
func Deduplicate(pairs []Pair) []Pair {
	seen := make([]string, 0, len(pairs))
	result := make([]Pair, 0, len(pairs))

	for _, pair := range pairs {
		question := strings.ToLower(strings.TrimSpace(pair.Question))

		similar := false
		for _, prev := range seen {
			if question == prev {
				similar = true
				break
			}
			if strings.Contains(prev, question) || strings.Contains(question, prev) {
				if abs(len(question)-len(prev)) < 10 {
					similar = true
					break
				}
			}
		}
		if !similar {
			seen = append(seen, question)
			result = append(result, pair)
		}
	}
	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
