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

package converter

import (
	"bytes"
	"encoding/json"

	"github.com/kadirpekel/ragstack/pkg/markdown"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// convertPlainText passes text through with encoding detection. Existing
// Markdown headers in the text are preserved as structure.
func (c *Converter) convertPlainText(data []byte, mimeType string) (*Result, error) {
	content, encoding := DecodeText(data)
	md := markdown.Sanitize(content)

	analysis := Analysis{Text: Text{Content: content, Encoding: encoding}}
	for _, section := range markdown.Parse(md) {
		role := ""
		if section.Level == 1 {
			role = RoleTitle
		} else if section.Level >= 2 {
			role = RoleSectionHeading
		}
		if section.Title != "" {
			analysis.Paragraphs = append(analysis.Paragraphs, Paragraph{
				Content: section.Title,
				Role:    role,
			})
		}
		if section.Content != "" {
			analysis.Paragraphs = append(analysis.Paragraphs, Paragraph{Content: section.Content})
		}
	}

	return &Result{Markdown: md, Analysis: analysis, MimeType: mimeType}, nil
}

// convertMarkdown is plain-text conversion; the input is already Markdown.
func (c *Converter) convertMarkdown(data []byte, mimeType string) (*Result, error) {
	return c.convertPlainText(data, mimeType)
}

// convertJSON pretty-prints the input inside a fenced code block.
func (c *Converter) convertJSON(data []byte, mimeType string) (*Result, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return nil, ragerr.Processing("convert", "invalid JSON input", err)
	}

	md := "```json\n" + pretty.String() + "\n```"
	return &Result{
		Markdown: md,
		Analysis: Analysis{Text: Text{Content: pretty.String(), Encoding: "utf-8"}},
		MimeType: mimeType,
	}, nil
}
