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

	"github.com/kadirpekel/ragstack/pkg/markdown"
)

// HierarchicalChunker emits a parent summary chunk per section plus child
// content chunks referencing the parent. Children carry a snapshot of the
// parent summary so retrieval never needs to resolve the reference.
type HierarchicalChunker struct {
	base base
}

func (c *HierarchicalChunker) Strategy() Strategy {
	return StrategyHierarchical
}

// Chunk processes each section large enough to matter: one parent chunk
// holding the section summary, then child chunks sliding a token window over
// the section content. Sections below min_chunk_size tokens are skipped.
// Chunk indices are assigned over the combined output in document order, and
// each child's ParentID is its parent's chunk index.
func (c *HierarchicalChunker) Chunk(text string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	c.base.logStart(StrategyHierarchical, text)

	sections := markdown.Parse(text)

	var chunks []Chunk
	parents := 0

	for _, section := range sections {
		content := sectionText(section)
		sectionTokens := c.base.tok.Count(content)

		if sectionTokens < c.base.config.MinChunkSize {
			c.base.logger.Debug("skipping small section",
				"section", section.Title,
				"token_count", sectionTokens)
			continue
		}

		summary := c.parentSummary(section)
		parentIndex := len(chunks)

		chunks = append(chunks, Chunk{
			Text:          summary,
			Index:         parentIndex,
			TokenCount:    c.base.tok.Count(summary),
			HierarchyPath: section.HierarchyPath,
			Section:       section.Title,
			Strategy:      StrategyHierarchical,
			Type:          TypeParent,
			Metadata: map[string]any{
				"is_summary":              true,
				"original_section_tokens": sectionTokens,
			},
		})
		parents++

		for _, child := range c.childChunks(section, content, parentIndex, summary, chunkSize, chunkOverlap) {
			child.Index = len(chunks)
			c.base.warnSize(child.Index, child.TokenCount)
			chunks = append(chunks, child)
		}
	}

	c.base.logger.Info("hierarchical chunking complete",
		"total", len(chunks),
		"parents", parents,
		"children", len(chunks)-parents)
	c.base.logComplete(StrategyHierarchical, chunks)
	return chunks, nil
}

// parentSummary is the first meaningful paragraph of the section, bounded by
// parent_summary_max_length characters and prefixed with the bolded title.
func (c *HierarchicalChunker) parentSummary(section markdown.Section) string {
	maxLen := c.base.config.ParentSummaryMaxLength

	summary := markdown.FirstParagraph(section.Content)
	summary = strings.Join(strings.Fields(summary), " ")
	if len(summary) > maxLen {
		cut := summary[:maxLen]
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		summary = cut + "..."
	}

	if section.Title != "" {
		summary = fmt.Sprintf("**%s**: %s", section.Title, summary)
	}
	return summary
}

func (c *HierarchicalChunker) childChunks(section markdown.Section, content string, parentIndex int, parentSummary string, chunkSize, chunkOverlap int) []Chunk {
	tokens := c.base.tok.Encode(content)
	total := len(tokens)
	if total == 0 {
		return nil
	}

	var children []Chunk
	start := 0
	local := 0

	for start < total {
		end := start + chunkSize
		if end > total {
			end = total
		}

		parent := parentIndex
		children = append(children, Chunk{
			Text:          c.base.tok.Decode(tokens[start:end]),
			TokenCount:    end - start,
			HierarchyPath: section.HierarchyPath,
			Section:       section.Title,
			Strategy:      StrategyHierarchical,
			Type:          TypeChild,
			ParentID:      &parent,
			ParentSummary: parentSummary,
			StartToken:    start,
			EndToken:      end,
			Metadata:      map[string]any{"local_index": local},
		})
		local++

		start += chunkSize - chunkOverlap
		if chunkSize <= chunkOverlap {
			break
		}
	}

	return children
}
