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

// Package summarizer generates hierarchical document summaries. Short
// documents are summarized with a single completion; long documents go
// through a map-reduce pass where sections are summarized in parallel and
// the section summaries are reduced into the final summary.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/tree"
)

// Summarization methods.
const (
	MethodSingle    = "single"
	MethodMapReduce = "map_reduce"
)

// Config contains summarizer configuration. Size thresholds are in
// characters.
type Config struct {
	ShortDocThreshold int     `yaml:"short_doc_threshold" json:"short_doc_threshold"`
	MaxSectionSize    int     `yaml:"max_section_size" json:"max_section_size"`
	MinSectionSize    int     `yaml:"min_section_size" json:"min_section_size"`
	SectionMaxTokens  int     `yaml:"section_max_tokens" json:"section_max_tokens"`
	FinalMaxTokens    int     `yaml:"final_max_tokens" json:"final_max_tokens"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	MaxConcurrent     int     `yaml:"max_concurrent" json:"max_concurrent"`
}

// SetDefaults sets default values for summarizer configuration
func (c *Config) SetDefaults() {
	if c.ShortDocThreshold == 0 {
		c.ShortDocThreshold = 12000
	}
	if c.MaxSectionSize == 0 {
		c.MaxSectionSize = 15000
	}
	if c.MinSectionSize == 0 {
		c.MinSectionSize = 500
	}
	if c.SectionMaxTokens == 0 {
		c.SectionMaxTokens = 300
	}
	if c.FinalMaxTokens == 0 {
		c.FinalMaxTokens = 800
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
}

// Validate validates summarizer configuration
func (c *Config) Validate() error {
	if c.MinSectionSize > c.MaxSectionSize {
		return fmt.Errorf("min_section_size (%d) must not exceed max_section_size (%d)",
			c.MinSectionSize, c.MaxSectionSize)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative, got %d", c.MaxConcurrent)
	}
	return nil
}

// SectionSummary is the summary of a single section.
type SectionSummary struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	OriginalLength int    `json:"original_length"`
}

// Result is a complete summarization result.
type Result struct {
	DocumentSummary  string           `json:"document_summary"`
	SectionSummaries []SectionSummary `json:"section_summaries"`
	Method           string           `json:"method"`
	SectionsCount    int              `json:"sections_count"`
}

// section is a summarizable unit of the document.
type section struct {
	title   string
	content string
}

// Summarizer generates document summaries through a chat provider.
type Summarizer struct {
	provider llms.Provider
	config   *Config
	logger   *slog.Logger
}

// New creates a summarizer.
func New(provider llms.Provider, config *Config) (*Summarizer, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid summarizer configuration: %w", err)
	}
	return &Summarizer{
		provider: provider,
		config:   config,
		logger:   logger.GetLogger(),
	}, nil
}

// Summarize generates a hierarchical summary of the document. The method is
// chosen by document size: at or under ShortDocThreshold characters a single
// completion summarizes the whole text, above it sections are map-reduced.
func (s *Summarizer) Summarize(ctx context.Context, title, docType string, t *tree.Tree) (*Result, error) {
	textLength := len(t.Text)
	s.logger.Info("Starting summarization",
		"document_title", title,
		"text_length", textLength,
		"threshold", s.config.ShortDocThreshold)

	if textLength <= s.config.ShortDocThreshold {
		return s.summarizeShort(ctx, title, docType, t.Text)
	}
	return s.summarizeMapReduce(ctx, title, docType, t)
}

func (s *Summarizer) summarizeShort(ctx context.Context, title, docType, content string) (*Result, error) {
	summary, err := s.complete(ctx, shortDocSummarySystem,
		fmt.Sprintf(shortDocSummaryUser, title, docType, content), s.config.FinalMaxTokens)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Short document summarization complete",
		"document_title", title,
		"summary_length", len(summary))
	return &Result{
		DocumentSummary:  summary,
		SectionSummaries: []SectionSummary{},
		Method:           MethodSingle,
	}, nil
}

func (s *Summarizer) summarizeMapReduce(ctx context.Context, title, docType string, t *tree.Tree) (*Result, error) {
	sections := s.splitIntoSections(t)
	s.logger.Info("Document split into sections", "section_count", len(sections))

	summaries, err := s.mapSections(ctx, sections)
	if err != nil {
		return nil, err
	}

	final, err := s.reduce(ctx, title, docType, summaries)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Map-reduce summarization complete",
		"document_title", title,
		"final_summary_length", len(final),
		"section_summaries", len(summaries))
	return &Result{
		DocumentSummary:  final,
		SectionSummaries: summaries,
		Method:           MethodMapReduce,
		SectionsCount:    len(sections),
	}, nil
}

// splitIntoSections turns the tree into summarizable sections: natural
// sections when the document has structure, size-based windows otherwise.
// Sections under MinSectionSize are skipped, sections over MaxSectionSize
// are split on paragraph boundaries.
func (s *Summarizer) splitIntoSections(t *tree.Tree) []section {
	var sections []section
	for _, node := range t.Structure.Sections {
		text := sectionText(node)
		if len(text) < s.config.MinSectionSize {
			s.logger.Debug("Skipping short section",
				"section_title", node.Title,
				"length", len(text))
			continue
		}
		if len(text) > s.config.MaxSectionSize {
			sections = append(sections, s.splitLongSection(node.Title, text)...)
		} else {
			sections = append(sections, section{title: node.Title, content: text})
		}
	}

	if len(sections) == 0 {
		s.logger.Warn("No structured sections found, using size-based splitting")
		sections = s.splitBySize(t.Text)
	}
	return sections
}

// splitLongSection splits an oversize section into "(Part N)" pieces on
// paragraph boundaries.
func (s *Summarizer) splitLongSection(title, content string) []section {
	var parts []section
	var current strings.Builder
	partNum := 1

	flush := func(last bool) {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		// A section that never overflowed keeps its original title.
		partTitle := fmt.Sprintf("%s (Part %d)", title, partNum)
		if last && partNum == 1 {
			partTitle = title
		}
		parts = append(parts, section{title: partTitle, content: text})
		partNum++
		current.Reset()
	}

	for _, para := range strings.Split(content, "\n\n") {
		if current.Len()+len(para) > s.config.MaxSectionSize && current.Len() > 0 {
			flush(false)
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush(true)
	return parts
}

// splitBySize windows unstructured text into "Section N" pieces.
func (s *Summarizer) splitBySize(text string) []section {
	var sections []section
	var current strings.Builder
	num := 1

	flush := func() {
		t := strings.TrimSpace(current.String())
		if t == "" {
			return
		}
		sections = append(sections, section{title: fmt.Sprintf("Section %d", num), content: t})
		num++
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		if current.Len()+len(para) > s.config.MaxSectionSize && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return sections
}

// mapSections summarizes every section with bounded parallelism. Results
// keep section order regardless of completion order.
func (s *Summarizer) mapSections(ctx context.Context, sections []section) ([]SectionSummary, error) {
	summaries := make([]SectionSummary, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for i, sec := range sections {
		g.Go(func() error {
			content := sec.content
			if len(content) > s.config.MaxSectionSize {
				content = content[:s.config.MaxSectionSize]
			}
			summary, err := s.complete(gctx, sectionSummarySystem,
				fmt.Sprintf(sectionSummaryUser, sec.title, content), s.config.SectionMaxTokens)
			if err != nil {
				return fmt.Errorf("section %d (%s): %w", i, sec.title, err)
			}
			summaries[i] = SectionSummary{
				Title:          sec.title,
				Summary:        summary,
				OriginalLength: len(sec.content),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Summarizer) reduce(ctx context.Context, title, docType string, summaries []SectionSummary) (string, error) {
	formatted := make([]string, len(summaries))
	for i, sum := range summaries {
		formatted[i] = fmt.Sprintf("### %s\n%s", sum.Title, sum.Summary)
	}
	return s.complete(ctx, finalSummarySystem,
		fmt.Sprintf(finalSummaryUser, title, docType, strings.Join(formatted, "\n\n")),
		s.config.FinalMaxTokens)
}

func (s *Summarizer) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	temp := s.config.Temperature
	result, err := s.provider.Complete(ctx, llms.Request{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: system},
			{Role: llms.RoleUser, Content: user},
		},
		Temperature: &temp,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

// sectionText flattens a section node and its subsections into plain text.
func sectionText(node tree.Section) string {
	parts := []string{node.Content}
	for _, sub := range node.Subsections {
		parts = append(parts, sectionText(sub))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
