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

// Package tree folds an analyzed paragraph stream into a hierarchical
// section tree with tables and images attached in document order.
package tree

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/converter"
)

// Section is one node of the document tree.
type Section struct {
	Title       string    `json:"title"`
	Level       int       `json:"level"`
	Content     string    `json:"content"`
	Subsections []Section `json:"subsections"`
}

// TableNode is a table attached to the tree.
type TableNode struct {
	Index       int        `json:"index"`
	Page        int        `json:"page_number,omitempty"`
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	Cells       [][]string `json:"cells"`
}

// ImageNode is an image description attached to the tree.
type ImageNode struct {
	ID          string `json:"id"`
	Page        int    `json:"page_number,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Structure groups the tree's typed children.
type Structure struct {
	Sections []Section   `json:"sections"`
	Tables   []TableNode `json:"tables"`
	Images   []ImageNode `json:"images"`
}

// Metadata carries the tree's aggregate counts.
type Metadata struct {
	TotalPages    int `json:"total_pages"`
	TotalSections int `json:"total_sections"`
	TotalTables   int `json:"total_tables"`
	TotalImages   int `json:"total_images"`
}

// Tree is the built document tree.
type Tree struct {
	Text      string    `json:"text"`
	Structure Structure `json:"structure"`
	Metadata  Metadata  `json:"metadata"`
}

// Builder folds analysis output into a Tree.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a tree builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build creates the document tree. Each title or sectionHeading paragraph
// opens a new section (level 1 and 2 respectively); other paragraphs
// accumulate into the current section. Content before the first header lands
// in a default "Main Content" section.
func (b *Builder) Build(analysis *converter.Analysis, imageDescriptions map[string]string) *Tree {
	sections := buildSections(analysis.Paragraphs)
	sectionCount := len(sections)
	for _, s := range sections {
		sectionCount += len(s.Subsections)
	}

	tables := make([]TableNode, 0, len(analysis.Tables))
	for i, t := range analysis.Tables {
		tables = append(tables, TableNode{
			Index:       i,
			Page:        t.Page,
			RowCount:    t.RowCount,
			ColumnCount: t.ColumnCount,
			Cells:       t.Cells,
		})
	}

	images := make([]ImageNode, 0, len(analysis.Images))
	for _, img := range analysis.Images {
		images = append(images, ImageNode{
			ID:          img.ID,
			Page:        img.Page,
			Description: imageDescriptions[img.ID],
			Type:        "chart_or_diagram",
		})
	}

	tree := &Tree{
		Text: analysis.Text.Content,
		Structure: Structure{
			Sections: sections,
			Tables:   tables,
			Images:   images,
		},
		Metadata: Metadata{
			TotalPages:    len(analysis.Pages),
			TotalSections: sectionCount,
			TotalTables:   len(tables),
			TotalImages:   len(images),
		},
	}

	b.logger.Info("document tree built",
		"sections", sectionCount,
		"tables", len(tables),
		"images", len(images))
	return tree
}

// buildSections nests sectionHeading paragraphs (level 2) under the
// preceding title paragraph (level 1). A heading with no open title, like
// body text with no header at all, opens its own top level section.
func buildSections(paragraphs []converter.Paragraph) []Section {
	var roots []*Section
	subs := map[*Section][]*Section{}
	var parent *Section
	var current *Section

	for _, para := range paragraphs {
		content := strings.TrimSpace(para.Content)
		if content == "" {
			continue
		}

		switch para.Role {
		case converter.RoleTitle:
			sec := &Section{Title: content, Level: 1, Subsections: []Section{}}
			roots = append(roots, sec)
			parent = sec
			current = sec
		case converter.RoleSectionHeading:
			sec := &Section{Title: content, Level: 2, Subsections: []Section{}}
			if parent == nil {
				roots = append(roots, sec)
			} else {
				subs[parent] = append(subs[parent], sec)
			}
			current = sec
		case converter.RolePageNumber:
			// dropped
		default:
			if current == nil {
				sec := &Section{Title: "Main Content", Level: 1, Subsections: []Section{}}
				roots = append(roots, sec)
				parent = sec
				current = sec
			}
			current.Content = fmt.Sprintf("%s\n%s", current.Content, content)
		}
	}

	sections := make([]Section, 0, len(roots))
	for _, root := range roots {
		root.Content = strings.TrimSpace(root.Content)
		for _, sub := range subs[root] {
			sub.Content = strings.TrimSpace(sub.Content)
			root.Subsections = append(root.Subsections, *sub)
		}
		sections = append(sections, *root)
	}
	return sections
}
