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
	"fmt"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/markdown"
)

// AssembleMarkdown builds the unified Markdown document from an analysis
// record. Role policy: title -> level-1 header, sectionHeading -> level-2,
// page headers and footers are italicized, page numbers are dropped. Tables
// are collected at the end under an inserted "Tables" section. Images with a
// description produce inline [Image: ...] markers in page order.
func AssembleMarkdown(analysis *Analysis, imageDescriptions map[string]string) string {
	var b strings.Builder

	imagesByPage := map[int][]Image{}
	for _, img := range analysis.Images {
		if _, ok := imageDescriptions[img.ID]; ok {
			imagesByPage[img.Page] = append(imagesByPage[img.Page], img)
		}
	}

	lastPage := 0
	emitImages := func(page int) {
		for _, img := range imagesByPage[page] {
			fmt.Fprintf(&b, "[Image: %s]\n\n", imageDescriptions[img.ID])
		}
		delete(imagesByPage, page)
	}

	for _, para := range analysis.Paragraphs {
		if para.Page != lastPage {
			emitImages(lastPage)
			lastPage = para.Page
		}

		content := strings.TrimSpace(para.Content)
		if content == "" {
			continue
		}

		switch para.Role {
		case RoleTitle:
			fmt.Fprintf(&b, "# %s\n\n", content)
		case RoleSectionHeading:
			fmt.Fprintf(&b, "## %s\n\n", content)
		case RolePageHeader, RolePageFooter:
			fmt.Fprintf(&b, "*%s*\n\n", content)
		case RolePageNumber:
			// dropped
		default:
			fmt.Fprintf(&b, "%s\n\n", content)
		}
	}
	emitImages(lastPage)

	// remaining images on pages past the last paragraph
	for _, img := range analysis.Images {
		if desc, ok := imageDescriptions[img.ID]; ok {
			if _, pending := imagesByPage[img.Page]; pending {
				fmt.Fprintf(&b, "[Image: %s]\n\n", desc)
			}
		}
	}

	if len(analysis.Tables) > 0 {
		b.WriteString("## Tables\n\n")
		for i, table := range analysis.Tables {
			fmt.Fprintf(&b, "### Table %d\n\n", i+1)
			b.WriteString(markdown.FormatTable(table.Cells))
			b.WriteString("\n\n")
		}
	}

	return markdown.Sanitize(b.String())
}
