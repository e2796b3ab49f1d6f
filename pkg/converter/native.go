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
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/kadirpekel/ragstack/pkg/markdown"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// convertPDFNative extracts plain text page by page. No layout roles are
// available without the analysis provider, so each page becomes untyped
// paragraphs.
func (c *Converter) convertPDFNative(data []byte, mimeType string) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ragerr.Processing("convert", "failed to parse PDF", err)
	}

	analysis := Analysis{}
	var parts []string
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		analysis.Pages = append(analysis.Pages, Page{Number: pageNum})

		text, err := page.GetPlainText(nil)
		if err != nil {
			c.logger.Warn("PDF page extraction failed",
				"page", pageNum,
				"error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		parts = append(parts, text)
		for _, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para != "" {
				analysis.Paragraphs = append(analysis.Paragraphs, Paragraph{
					Content: para,
					Page:    pageNum,
				})
			}
		}
	}

	content := strings.Join(parts, "\n\n")
	analysis.Text = Text{Content: content, Encoding: "utf-8"}

	return &Result{
		Markdown: markdown.Sanitize(content),
		Analysis: analysis,
		MimeType: mimeType,
	}, nil
}

// convertWordNative extracts the document text from a .docx archive.
func (c *Converter) convertWordNative(data []byte, mimeType string) (*Result, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ragerr.Processing("convert", "failed to parse Word document", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = stripXMLTags(content)

	analysis := Analysis{Text: Text{Content: content, Encoding: "utf-8"}}
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			analysis.Paragraphs = append(analysis.Paragraphs, Paragraph{Content: para})
		}
	}

	return &Result{
		Markdown: markdown.Sanitize(content),
		Analysis: analysis,
		MimeType: mimeType,
	}, nil
}

// convertPowerPointNative extracts slide text straight from the .pptx
// archive. Slides live under ppt/slides/slideN.xml and all visible text
// sits in DrawingML <a:t> runs.
func (c *Converter) convertPowerPointNative(data []byte, mimeType string) (*Result, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ragerr.Processing("convert", "failed to parse PowerPoint document", err)
	}

	var names []string
	files := map[string]*zip.File{}
	for _, f := range archive.File {
		if slidePattern.MatchString(f.Name) {
			names = append(names, f.Name)
			files[f.Name] = f
		}
	}
	if len(names) == 0 {
		return nil, ragerr.Processing("convert", "no slides found in PowerPoint document", nil)
	}
	sort.Slice(names, func(i, j int) bool {
		return slideNumber(names[i]) < slideNumber(names[j])
	})

	analysis := Analysis{}
	var b strings.Builder

	for i, name := range names {
		runs, err := slideTextRuns(files[name])
		if err != nil {
			c.logger.Warn("slide extraction failed",
				"slide", name,
				"error", err)
			continue
		}

		analysis.Pages = append(analysis.Pages, Page{Number: i + 1})

		fmt.Fprintf(&b, "## Slide %d\n\n", i+1)
		for _, run := range runs {
			b.WriteString(run)
			b.WriteString("\n\n")
			analysis.Paragraphs = append(analysis.Paragraphs, Paragraph{
				Content: run,
				Page:    i + 1,
			})
		}
	}

	md := markdown.Sanitize(b.String())
	analysis.Text = Text{Content: md, Encoding: "utf-8"}

	return &Result{Markdown: md, Analysis: analysis, MimeType: mimeType}, nil
}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func slideNumber(name string) int {
	m := slidePattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// slideTextRuns streams one slide's XML and collects the character data
// of every <a:t> element in document order.
func slideTextRuns(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var runs []string
	var inText bool
	var current strings.Builder

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				if run := strings.TrimSpace(current.String()); run != "" {
					runs = append(runs, run)
				}
			}
		}
	}
	return runs, nil
}

// convertExcel renders each sheet as a Markdown table.
func (c *Converter) convertExcel(data []byte, mimeType string) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ragerr.Processing("convert", "failed to parse Excel document", err)
	}
	defer f.Close()

	analysis := Analysis{}
	var b strings.Builder

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			c.logger.Warn("failed to read sheet",
				"sheet", sheetName,
				"error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", sheetName)
		b.WriteString(markdown.FormatTable(rows))
		b.WriteString("\n\n")

		cols := 0
		for _, row := range rows {
			if len(row) > cols {
				cols = len(row)
			}
		}
		analysis.Tables = append(analysis.Tables, Table{
			RowCount:    len(rows),
			ColumnCount: cols,
			Cells:       rows,
		})
	}

	md := markdown.Sanitize(b.String())
	analysis.Text = Text{Content: md, Encoding: "utf-8"}

	return &Result{Markdown: md, Analysis: analysis, MimeType: mimeType}, nil
}

// stripXMLTags removes leftover markup the docx text extraction leaks
// through for tracked changes and smart tags.
func stripXMLTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
