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

// Package markdown parses Markdown into an ordered list of sections with
// header-derived hierarchy paths. Chunking strategies and the summarizer
// operate on these sections rather than raw text.
package markdown

import (
	"regexp"
	"strings"
)

// PathSeparator joins hierarchy path elements for display and payloads.
const PathSeparator = " > "

// Section is one header-delimited region of a document. Level 0 means the
// text had no headers at all.
type Section struct {
	Title         string
	Level         int
	Content       string
	StartLine     int
	HierarchyPath []string
}

// Path returns the hierarchy path joined by the standard separator.
func (s Section) Path() string {
	return strings.Join(s.HierarchyPath, PathSeparator)
}

var headerRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// headerEntry is a stack frame while computing hierarchy paths.
type headerEntry struct {
	level int
	title string
}

// Parse splits Markdown text into ordered sections. A running header stack
// computes each section's hierarchy path: a header at level L pops all stack
// entries with level >= L before being pushed, so the path always lists
// strict ancestors followed by the section itself.
func Parse(text string) []Section {
	lines := strings.Split(text, "\n")

	var sections []Section
	var stack []headerEntry
	var current *Section
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		sections = append(sections, *current)
		current = nil
		body = nil
	}

	for i, line := range lines {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			if current == nil {
				// Preamble before the first header becomes a level-0 section.
				if strings.TrimSpace(line) != "" {
					current = &Section{Level: 0, StartLine: i + 1}
					body = append(body, line)
				}
				continue
			}
			body = append(body, line)
			continue
		}

		flush()

		level := len(m[1])
		title := strings.TrimSpace(m[2])

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, headerEntry{level: level, title: title})

		path := make([]string, len(stack))
		for j, e := range stack {
			path[j] = e.title
		}

		current = &Section{
			Title:         title,
			Level:         level,
			StartLine:     i + 1,
			HierarchyPath: path,
		}
	}
	flush()

	if len(sections) == 0 {
		return []Section{{Level: 0, Content: strings.TrimSpace(text)}}
	}
	return sections
}

// HeaderCount returns the number of Markdown headers in text.
func HeaderCount(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if headerRe.MatchString(line) {
			count++
		}
	}
	return count
}

// FirstParagraph returns the first non-empty paragraph of content, skipping
// lines that are themselves headers or table rows.
func FirstParagraph(content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "#") || strings.HasPrefix(para, "|") {
			continue
		}
		return para
	}
	return ""
}

// SplitParagraphs returns the non-empty paragraphs of content in order.
func SplitParagraphs(content string) []string {
	var out []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}
