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

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
	"github.com/kadirpekel/ragstack/pkg/tokenizer"
)

// ============================================================================
// OPENAI EMBEDDINGS API TYPES
// ============================================================================

// OpenAIEmbedRequest represents a request to the OpenAI embeddings API
type OpenAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// OpenAIEmbedResponse represents a response from the OpenAI embeddings API
type OpenAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// OpenAIErrorResponse represents an error response from the OpenAI API
type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ============================================================================
// OPENAI EMBEDDER
// ============================================================================

// OpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	config     *Config
	httpClient *http.Client
	tok        *tokenizer.Tokenizer
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedder.
func NewOpenAIEmbedder(config *Config) (*OpenAIEmbedder, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder configuration: %w", err)
	}

	tok, err := tokenizer.ForModel(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer for %s: %w", config.Model, err)
	}

	return &OpenAIEmbedder{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		tok: tok,
	}, nil
}

// Embed converts a single text to a vector embedding.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in sequential batches of BatchSize. A failed batch
// fails the whole call, no partial results are returned.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += e.config.BatchSize {
		end := i + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if i > 0 && e.config.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(e.config.BatchPause) * time.Millisecond):
			}
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			batchErr := ragerr.Embedding(
				fmt.Sprintf("batch %d-%d of %d texts failed", i, end, len(texts)), err)
			return nil, batchErr.WithDetail("batch_start", i).WithDetail("batch_end", end)
		}
		copy(result[i:end], vectors)
	}

	return result, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, text := range texts {
		// Empty inputs are rejected by the API; oversize ones are truncated
		// to the model's context limit.
		if strings.TrimSpace(text) == "" {
			text = " "
		}
		input[i] = e.tok.Truncate(text, e.config.MaxTokens)
	}

	body, err := json.Marshal(OpenAIEmbedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindInternal, "EMBED_MARSHAL", "failed to marshal embed request", err)
	}
	url := strings.TrimSuffix(e.config.Host, "/") + "/embeddings"

	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(e.config.RetryDelay) * time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vectors, err := e.doRequest(ctx, url, body, len(texts))
		if err != nil {
			lastErr = err
			if ragerr.IsRetryable(err) {
				continue
			}
			return nil, err
		}
		return vectors, nil
	}

	return nil, ragerr.Wrap(ragerr.KindExternalService, "EMBED_RETRIES_EXHAUSTED",
		fmt.Sprintf("embedding failed after %d attempts", e.config.MaxRetries), lastErr)
}

func (e *OpenAIEmbedder) doRequest(ctx context.Context, url string, body []byte, want int) ([][]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindInternal, "EMBED_REQUEST", "failed to create HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "EMBED_UNREACHABLE", "embedding request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "EMBED_READ", "failed to read embedding response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr OpenAIErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, ragerr.External("embedder", httpResp.StatusCode,
			fmt.Sprintf("embedding failed with status %d: %s", httpResp.StatusCode, msg), nil)
	}

	var apiResp OpenAIEmbedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "EMBED_DECODE", "failed to decode embedding response", err)
	}
	if len(apiResp.Data) != want {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "EMBED_COUNT",
			fmt.Sprintf("expected %d embeddings, got %d", want, len(apiResp.Data)), nil)
	}

	// The API may return items out of order; sort by index to restore
	// input order.
	sort.Slice(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})
	vectors := make([][]float32, len(apiResp.Data))
	for i, item := range apiResp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// Dimension returns the embedding vector dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.config.Dimension
}

// Model returns the model name being used
func (e *OpenAIEmbedder) Model() string {
	return e.config.Model
}

// Close closes the embedder and releases resources
func (e *OpenAIEmbedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
