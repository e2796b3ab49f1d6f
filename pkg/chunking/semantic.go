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
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/kadirpekel/ragstack/pkg/markdown"
)

// SemanticChunker partitions text by parsed sections, aggregating small
// consecutive sections up to the chunk size and splitting oversized sections
// at sentence boundaries.
type SemanticChunker struct {
	base    base
	sentTok *sentences.DefaultSentenceTokenizer
}

// NewSemanticChunker creates a semantic chunker with an English sentence
// tokenizer for oversized-section splitting.
func NewSemanticChunker(b base) (*SemanticChunker, error) {
	sentTok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentence tokenizer: %w", err)
	}
	return &SemanticChunker{base: b, sentTok: sentTok}, nil
}

func (c *SemanticChunker) Strategy() Strategy {
	return StrategySemantic
}

// Chunk partitions markdown text by sections. Consecutive sections are
// aggregated while the running token count stays within chunkSize; sections
// exceeding chunkSize are split at sentence boundaries. When semantic
// overlap is enabled, each chunk after the first is prefixed with the tail
// tokens of its predecessor.
func (c *SemanticChunker) Chunk(text string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	c.base.logStart(StrategySemantic, text)

	sections := markdown.Parse(text)
	chunks := c.chunksFromSections(sections, chunkSize)

	if c.base.config.SemanticOverlap() && len(chunks) > 1 {
		c.applyOverlap(chunks)
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TokenCount = c.base.tok.Count(chunks[i].Text)
		c.base.warnSize(i, chunks[i].TokenCount)
	}

	c.base.logComplete(StrategySemantic, chunks)
	return chunks, nil
}

// sectionText rebuilds the section with its header line so chunk text keeps
// the document structure visible.
func sectionText(s markdown.Section) string {
	if s.Title != "" && s.Level > 0 {
		return fmt.Sprintf("%s %s\n\n%s", strings.Repeat("#", s.Level), s.Title, s.Content)
	}
	return s.Content
}

type chunkPart struct {
	text string
	path []string
}

func (c *SemanticChunker) chunksFromSections(sections []markdown.Section, chunkSize int) []Chunk {
	var chunks []Chunk
	var parts []chunkPart
	running := 0

	flush := func() {
		if len(parts) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(parts))
		parts = nil
		running = 0
	}

	for _, section := range sections {
		text := sectionText(section)
		tokens := c.base.tok.Count(text)

		switch {
		case tokens > chunkSize:
			flush()
			chunks = append(chunks, c.splitLargeSection(section, chunkSize)...)
		case running+tokens > chunkSize:
			flush()
			parts = []chunkPart{{text: text, path: section.HierarchyPath}}
			running = tokens
		default:
			parts = append(parts, chunkPart{text: text, path: section.HierarchyPath})
			running += tokens
		}
	}
	flush()

	return chunks
}

func (c *SemanticChunker) buildChunk(parts []chunkPart) Chunk {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.text
	}

	var path []string
	for _, p := range parts {
		if len(p.path) > 0 {
			path = p.path
			break
		}
	}

	section := ""
	if len(path) > 0 {
		section = path[len(path)-1]
	}

	return Chunk{
		Text:          strings.Join(texts, "\n\n"),
		HierarchyPath: path,
		Section:       section,
		Strategy:      StrategySemantic,
		Type:          TypeStandalone,
	}
}

// splitLargeSection cuts an oversized section at sentence boundaries,
// packing sentences greedily up to chunkSize tokens.
func (c *SemanticChunker) splitLargeSection(section markdown.Section, chunkSize int) []Chunk {
	text := sectionText(section)

	var sents []string
	for _, s := range c.sentTok.Tokenize(text) {
		sents = append(sents, s.Text)
	}
	if len(sents) == 0 {
		sents = []string{text}
	}

	newChunk := func(body string) Chunk {
		return Chunk{
			Text:          strings.TrimSpace(body),
			HierarchyPath: section.HierarchyPath,
			Section:       section.Title,
			Strategy:      StrategySemantic,
			Type:          TypeStandalone,
			Metadata:      map[string]any{"split_from_large_section": true},
		}
	}

	var chunks []Chunk
	current := ""
	for _, sent := range sents {
		candidate := current + sent
		if c.base.tok.Count(candidate) > chunkSize && current != "" {
			chunks = append(chunks, newChunk(current))
			current = sent
			continue
		}
		current = candidate
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, newChunk(current))
	}

	if len(chunks) == 0 {
		return []Chunk{newChunk(text)}
	}
	return chunks
}

// applyOverlap prepends the tail of each previous chunk, marked with an
// ellipsis, to the next chunk.
func (c *SemanticChunker) applyOverlap(chunks []Chunk) {
	overlap := c.base.config.SemanticOverlapTokens
	for i := len(chunks) - 1; i >= 1; i-- {
		tail := c.base.tok.Tail(chunks[i-1].Text, overlap)
		chunks[i].Text = fmt.Sprintf("...%s\n\n%s", tail, chunks[i].Text)
		chunks[i].HasOverlap = true
		chunks[i].OverlapTokens = overlap
	}
}
