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

package chunking

import (
	"log/slog"

	"github.com/kadirpekel/ragstack/pkg/markdown"
	"github.com/kadirpekel/ragstack/pkg/tokenizer"
)

// Orchestrator routes text to a chunking strategy, resolving "auto" from
// text size and header structure.
type Orchestrator struct {
	config Config
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. Config must have passed Validate.
func NewOrchestrator(config Config, tok *tokenizer.Tokenizer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{config: config, tok: tok, logger: logger}
}

// AutoSelect decides a concrete strategy from text length and header count.
// It is a pure function of its inputs and the configured thresholds.
func AutoSelect(textLen, headerCount int, config Config) Strategy {
	switch {
	case textLen > config.HierarchicalThresholdChars:
		return StrategyHierarchical
	case headerCount >= config.MinHeadersForSemantic && textLen > config.SemanticThresholdChars:
		return StrategySemantic
	case headerCount >= config.MinHeadersForSemantic && textLen > 3000:
		return StrategySemantic
	default:
		return StrategySimple
	}
}

// Resolve maps the configured strategy name (possibly "auto") to a concrete
// strategy for the given text. Unknown names fall back to simple with a
// warning.
func (o *Orchestrator) Resolve(text string) Strategy {
	strategy := Strategy(o.config.Strategy)

	switch strategy {
	case StrategySimple, StrategySemantic, StrategyHierarchical:
		return strategy
	case StrategyAuto:
		selected := AutoSelect(len(text), markdown.HeaderCount(text), o.config)
		o.logger.Debug("auto-selected chunking strategy",
			"strategy", selected,
			"text_chars", len(text),
			"header_count", markdown.HeaderCount(text))
		return selected
	default:
		o.logger.Warn("unknown chunking strategy, falling back to simple",
			"strategy", o.config.Strategy)
		return StrategySimple
	}
}

// ChunkDocument resolves the strategy and chunks the text. The resolved
// strategy is returned so the caller can persist it on the document.
func (o *Orchestrator) ChunkDocument(text string) ([]Chunk, Strategy, error) {
	strategy := o.Resolve(text)

	chunker, err := NewChunker(strategy, o.config, o.tok, o.logger)
	if err != nil {
		return nil, strategy, err
	}

	chunks, err := chunker.Chunk(text, o.config.ChunkSize, o.config.ChunkOverlap)
	if err != nil {
		return nil, strategy, err
	}

	o.logger.Info("document chunked",
		"strategy", strategy,
		"chunks", len(chunks))
	return chunks, strategy, nil
}
