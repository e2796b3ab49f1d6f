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

// Package chunking splits document text into retrievable chunks under three
// strategies (simple, semantic, hierarchical) sharing a common contract, plus
// an orchestrator that auto-selects a strategy from text size and structure.
package chunking

import (
	"fmt"
	"log/slog"

	"github.com/kadirpekel/ragstack/pkg/tokenizer"
)

// Strategy identifies a chunking strategy.
type Strategy string

const (
	StrategySimple       Strategy = "simple"
	StrategySemantic     Strategy = "semantic"
	StrategyHierarchical Strategy = "hierarchical"
	StrategyAuto         Strategy = "auto"
)

// ChunkType distinguishes hierarchical roles. Simple and semantic chunks are
// always standalone.
type ChunkType string

const (
	TypeStandalone ChunkType = "standalone"
	TypeParent     ChunkType = "parent"
	TypeChild      ChunkType = "child"
)

// Chunk is one retrievable unit of text with its placement metadata.
type Chunk struct {
	Text          string         `json:"text"`
	Index         int            `json:"chunk_index"`
	TokenCount    int            `json:"token_count"`
	HierarchyPath []string       `json:"hierarchy_path,omitempty"`
	Section       string         `json:"section_title,omitempty"`
	Strategy      Strategy       `json:"chunking_strategy"`
	Type          ChunkType      `json:"chunk_type"`
	ParentID      *int           `json:"parent_id,omitempty"`
	ParentSummary string         `json:"parent_summary,omitempty"`
	HasOverlap    bool           `json:"has_overlap"`
	OverlapTokens int            `json:"overlap_tokens"`
	StartToken    int            `json:"start_token,omitempty"`
	EndToken      int            `json:"end_token,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Config contains chunking configuration.
type Config struct {
	Strategy     string `yaml:"strategy" json:"strategy"`
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	MinChunkSize int    `yaml:"min_chunk_size" json:"min_chunk_size"`
	MaxChunkSize int    `yaml:"max_chunk_size" json:"max_chunk_size"`

	SemanticOverlapEnabled *bool `yaml:"semantic_overlap_enabled" json:"semantic_overlap_enabled"`
	SemanticOverlapTokens  int   `yaml:"semantic_overlap_tokens" json:"semantic_overlap_tokens"`

	ParentChunkMultiplier  float64 `yaml:"parent_chunk_multiplier" json:"parent_chunk_multiplier"`
	ParentSummaryMaxLength int     `yaml:"parent_summary_max_length" json:"parent_summary_max_length"`

	HierarchicalThresholdChars int `yaml:"hierarchical_threshold_chars" json:"hierarchical_threshold_chars"`
	SemanticThresholdChars     int `yaml:"semantic_threshold_chars" json:"semantic_threshold_chars"`
	MinHeadersForSemantic      int `yaml:"min_headers_for_semantic" json:"min_headers_for_semantic"`
}

// SetDefaults sets default values for chunking configuration
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = string(StrategyAuto)
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 512
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 50
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 100
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 1000
	}
	if c.SemanticOverlapEnabled == nil {
		enabled := true
		c.SemanticOverlapEnabled = &enabled
	}
	if c.SemanticOverlapTokens == 0 {
		c.SemanticOverlapTokens = 50
	}
	if c.ParentChunkMultiplier == 0 {
		c.ParentChunkMultiplier = 2.0
	}
	if c.ParentSummaryMaxLength == 0 {
		c.ParentSummaryMaxLength = 300
	}
	if c.HierarchicalThresholdChars == 0 {
		c.HierarchicalThresholdChars = 60000
	}
	if c.SemanticThresholdChars == 0 {
		c.SemanticThresholdChars = 12000
	}
	if c.MinHeadersForSemantic == 0 {
		c.MinHeadersForSemantic = 3
	}
}

// Validate validates chunking configuration
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", c.ChunkOverlap)
	}
	switch Strategy(c.Strategy) {
	case StrategySimple, StrategySemantic, StrategyHierarchical, StrategyAuto:
	default:
		return fmt.Errorf("invalid chunking strategy: %s (must be 'simple', 'semantic', 'hierarchical', or 'auto')", c.Strategy)
	}
	return nil
}

// SemanticOverlap reports whether semantic overlap is enabled.
func (c *Config) SemanticOverlap() bool {
	return c.SemanticOverlapEnabled == nil || *c.SemanticOverlapEnabled
}

// Chunker is the contract shared by all strategies. Sizes are in tokens.
type Chunker interface {
	Chunk(text string, chunkSize, chunkOverlap int) ([]Chunk, error)
	Strategy() Strategy
}

// NewChunker creates a chunker for a concrete (non-auto) strategy.
func NewChunker(strategy Strategy, config Config, tok *tokenizer.Tokenizer, logger *slog.Logger) (Chunker, error) {
	base := newBase(config, tok, logger)
	switch strategy {
	case StrategySimple:
		return &SimpleChunker{base: base}, nil
	case StrategySemantic:
		return NewSemanticChunker(base)
	case StrategyHierarchical:
		return &HierarchicalChunker{base: base}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %s", strategy)
	}
}

// base carries what every strategy needs: the tokenizer, limits and a logger
// for the shared size warnings.
type base struct {
	config Config
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

func newBase(config Config, tok *tokenizer.Tokenizer, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{config: config, tok: tok, logger: logger}
}

func (b *base) logStart(strategy Strategy, text string) {
	b.logger.Debug("chunking started",
		"strategy", strategy,
		"text_chars", len(text))
}

func (b *base) logComplete(strategy Strategy, chunks []Chunk) {
	b.logger.Debug("chunking complete",
		"strategy", strategy,
		"chunks", len(chunks))
}

// warnSize flags chunks outside the configured [min, max] token range.
func (b *base) warnSize(index, tokenCount int) {
	if tokenCount < b.config.MinChunkSize {
		b.logger.Warn("chunk below minimum size",
			"chunk_index", index,
			"token_count", tokenCount,
			"min_chunk_size", b.config.MinChunkSize)
	} else if tokenCount > b.config.MaxChunkSize {
		b.logger.Warn("chunk above maximum size",
			"chunk_index", index,
			"token_count", tokenCount,
			"max_chunk_size", b.config.MaxChunkSize)
	}
}
