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

// Package converter turns raw uploads (PDF, Office, text, Markdown, JSON,
// images) into unified Markdown plus a structural record. A remote
// document-analysis provider is used when configured; PDF, Word and Excel
// inputs fall back to native parsing.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// Paragraph roles as reported by document analysis.
const (
	RoleTitle          = "title"
	RoleSectionHeading = "sectionHeading"
	RolePageHeader     = "pageHeader"
	RolePageFooter     = "pageFooter"
	RolePageNumber     = "pageNumber"
)

// Page describes one page of the analyzed document.
type Page struct {
	Number int     `json:"page_number"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Paragraph is one analyzed text region with its structural role.
type Paragraph struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
	Page    int    `json:"page_number,omitempty"`
}

// Table is an analyzed table; Cells[0] is treated as the header row.
type Table struct {
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	Cells       [][]string `json:"cells"`
	Page        int        `json:"page_number,omitempty"`
}

// Image is an extracted image region, PNG-encoded.
type Image struct {
	ID   string `json:"id"`
	Page int    `json:"page_number,omitempty"`
	Data []byte `json:"-"`
}

// Analysis is the structural record produced by conversion.
type Analysis struct {
	Text       Text        `json:"-"`
	Pages      []Page      `json:"pages"`
	Paragraphs []Paragraph `json:"paragraphs"`
	Tables     []Table     `json:"tables"`
	Images     []Image     `json:"images,omitempty"`
	Styles     []string    `json:"styles,omitempty"`
}

// Text carries the raw extracted text and the encoding it was decoded with.
type Text struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"`
}

// Result is the converter output: unified Markdown plus the analysis record.
type Result struct {
	Markdown string
	Analysis Analysis
	MimeType string
}

// AnalysisProvider is a remote document-analysis service (layout, roles,
// tables). Optional; native parsing covers PDF, Word and Excel without it.
type AnalysisProvider interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (*Analysis, error)
}

// ImageDescriber resolves extracted images to short text descriptions for
// inline markers. Optional.
type ImageDescriber interface {
	DescribeAll(ctx context.Context, images []Image) (map[string]string, error)
}

// Converter routes files to format-specific conversion.
type Converter struct {
	analysis AnalysisProvider
	vision   ImageDescriber
	logger   *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithAnalysisProvider sets the remote document-analysis provider.
func WithAnalysisProvider(p AnalysisProvider) Option {
	return func(c *Converter) { c.analysis = p }
}

// WithImageDescriber enables inline image description markers.
func WithImageDescriber(d ImageDescriber) Option {
	return func(c *Converter) { c.vision = d }
}

// New creates a converter.
func New(logger *slog.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Converter{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MimeTypeFor maps a filename extension to its MIME type.
func MimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Convert turns a raw file into Markdown plus its structural record.
func (c *Converter) Convert(ctx context.Context, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType := MimeTypeFor(filename)

	c.logger.Debug("converting document",
		"filename", filename,
		"extension", ext,
		"size_bytes", len(data))

	var result *Result
	var err error

	switch ext {
	case ".pdf":
		result, err = c.convertAnalyzable(ctx, data, mimeType, c.convertPDFNative)
	case ".docx":
		result, err = c.convertAnalyzable(ctx, data, mimeType, c.convertWordNative)
	case ".pptx":
		result, err = c.convertAnalyzable(ctx, data, mimeType, c.convertPowerPointNative)
	case ".xlsx":
		result, err = c.convertExcel(data, mimeType)
	case ".txt":
		result, err = c.convertPlainText(data, mimeType)
	case ".md", ".markdown":
		result, err = c.convertMarkdown(data, mimeType)
	case ".json":
		result, err = c.convertJSON(data, mimeType)
	case ".png", ".jpg", ".jpeg":
		result, err = c.convertImage(ctx, filename, data, mimeType)
	default:
		return nil, ragerr.Processing("convert",
			fmt.Sprintf("unsupported file type: %s", ext), nil)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("document converted",
		"filename", filename,
		"markdown_chars", len(result.Markdown),
		"paragraphs", len(result.Analysis.Paragraphs),
		"tables", len(result.Analysis.Tables))
	return result, nil
}

// convertAnalyzable prefers the remote analysis provider and falls back to a
// native parser.
func (c *Converter) convertAnalyzable(ctx context.Context, data []byte, mimeType string, native func([]byte, string) (*Result, error)) (*Result, error) {
	if c.analysis != nil {
		return c.convertViaAnalysis(ctx, data, mimeType)
	}
	return native(data, mimeType)
}

func (c *Converter) convertViaAnalysis(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if c.analysis == nil {
		return nil, ragerr.Processing("convert",
			fmt.Sprintf("no analysis provider configured for %s", mimeType), nil)
	}

	analysis, err := c.analysis.Analyze(ctx, data, mimeType)
	if err != nil {
		return nil, ragerr.Processing("convert", "document analysis failed", err)
	}

	descriptions := map[string]string{}
	if c.vision != nil && len(analysis.Images) > 0 {
		descriptions, err = c.vision.DescribeAll(ctx, analysis.Images)
		if err != nil {
			// image description is an enrichment, not a gate
			c.logger.Warn("image description failed", "error", err)
			descriptions = map[string]string{}
		}
	}

	return &Result{
		Markdown: AssembleMarkdown(analysis, descriptions),
		Analysis: *analysis,
		MimeType: mimeType,
	}, nil
}

func (c *Converter) convertImage(ctx context.Context, filename string, data []byte, mimeType string) (*Result, error) {
	if c.analysis != nil {
		return c.convertViaAnalysis(ctx, data, mimeType)
	}
	if c.vision == nil {
		return nil, ragerr.Processing("convert",
			"image input requires an analysis provider or image describer", nil)
	}

	images := []Image{{ID: filename, Data: data}}
	descriptions, err := c.vision.DescribeAll(ctx, images)
	if err != nil {
		return nil, ragerr.Processing("convert", "image description failed", err)
	}

	markdown := fmt.Sprintf("[Image: %s]", descriptions[filename])
	return &Result{
		Markdown: markdown,
		Analysis: Analysis{
			Text:   Text{Content: markdown},
			Images: images,
		},
		MimeType: mimeType,
	}, nil
}
