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

// Package vision describes extracted images so they can be indexed as
// text. The chat completions vision API takes multimodal content parts,
// so this package carries its own request types instead of the plain
// text ones in pkg/llms.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// Image is one image to describe, with optional surrounding context.
type Image struct {
	ID      string
	Data    []byte
	Context string
}

// Description pairs an image id with its generated description.
type Description struct {
	ImageID     string `json:"image_id"`
	Description string `json:"description"`
}

// Config contains vision configuration. The HTTP surface reuses the
// chat provider config shape.
type Config struct {
	llms.Config `yaml:",inline"`
	// MaxConcurrent bounds parallel image descriptions.
	MaxConcurrent int `yaml:"max_concurrent_image_processing" json:"max_concurrent_image_processing"`
}

// SetDefaults sets default values for vision configuration
func (c *Config) SetDefaults() {
	c.Config.SetDefaults()
	if c.Model == "" || c.Model == "gpt-4o-mini" {
		c.Model = "gpt-4o"
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxTokens == 0 || c.MaxTokens == 2000 {
		c.MaxTokens = 500
	}
}

// Describer generates image descriptions via a vision-capable model.
type Describer struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a describer.
func New(config *Config) (*Describer, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vision configuration: %w", err)
	}
	return &Describer{
		config:     config,
		httpClient: &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		logger:     logger.GetLogger(),
	}, nil
}

// Describe generates a description for one image. Failures degrade to a
// placeholder so a bad image never fails the document.
func (d *Describer) Describe(ctx context.Context, img Image) string {
	description, err := d.describe(ctx, img)
	if err != nil {
		d.logger.Warn("Image description failed", "image_id", img.ID, "error", err)
		return "[Image: description unavailable]"
	}
	return description
}

// DescribeBatch describes images with bounded concurrency, preserving
// input order in the result.
func (d *Describer) DescribeBatch(ctx context.Context, images []Image) []Description {
	results := make([]Description, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MaxConcurrent)
	for i, img := range images {
		g.Go(func() error {
			results[i] = Description{ImageID: img.ID, Description: d.Describe(ctx, img)}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("Described images", "count", len(results))
	return results
}

// visionMessage carries multimodal content parts.
type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

func (d *Describer) describe(ctx context.Context, img Image) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(img.Data)
	body, err := json.Marshal(visionRequest{
		Model: d.config.Model,
		Messages: []visionMessage{{
			Role: llms.RoleUser,
			Content: []contentPart{
				{Type: "text", Text: buildPrompt(img.Context)},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + encoded}},
			},
		}},
		MaxTokens: d.config.MaxTokens,
	})
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindInternal, "VISION_MARSHAL", "failed to marshal vision request", err)
	}

	url := strings.TrimSuffix(d.config.Host, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindInternal, "VISION_REQUEST", "failed to create HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.EqualFold(d.config.APIKeyHeader, "authorization") {
		httpReq.Header.Set("Authorization", "Bearer "+d.config.APIKey)
	} else {
		httpReq.Header.Set(d.config.APIKeyHeader, d.config.APIKey)
	}

	httpResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindExternalService, "VISION_UNREACHABLE", "vision request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", ragerr.Wrap(ragerr.KindExternalService, "VISION_READ", "failed to read vision response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		var apiErr llms.OpenAIErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", ragerr.External("vision", httpResp.StatusCode,
			fmt.Sprintf("vision request failed with status %d: %s", httpResp.StatusCode, msg), nil)
	}

	var apiResp llms.OpenAIChatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", ragerr.Wrap(ragerr.KindExternalService, "VISION_DECODE", "failed to decode vision response", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", ragerr.Wrap(ragerr.KindExternalService, "VISION_EMPTY", "vision response has no choices", nil)
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

func buildPrompt(context string) string {
	base := `Describe this image for a document search index.

Include:
1. What type of image this is (chart, diagram, photo, screenshot, etc.)
2. For charts: the chart type, axis labels, data trends, key values
3. For diagrams: the components and their relationships
4. For photos: the subject and notable details
5. Any text visible in the image
6. Specific numbers, dates, or names that appear

Be factual and specific. Write 2-5 sentences.`
	if context != "" {
		return base + "\n\nContext from the surrounding document: " + context
	}
	return base
}

// Close releases the underlying HTTP client.
func (d *Describer) Close() error {
	d.httpClient.CloseIdleConnections()
	return nil
}
