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

package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// ============================================================================
// OPENAI CHAT API TYPES
// ============================================================================

// OpenAIChatRequest represents a request to the OpenAI chat completions API
type OpenAIChatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat *OpenAIRespFmt `json:"response_format,omitempty"`
}

// OpenAIRespFmt selects the response format ("json_object" forces JSON mode)
type OpenAIRespFmt struct {
	Type string `json:"type"`
}

// OpenAIChatResponse represents a response from the OpenAI chat completions API
type OpenAIChatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage OpenAIUsage `json:"usage"`
}

// OpenAIUsage represents token usage from the OpenAI API
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIErrorResponse represents an error response from the OpenAI API
type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ============================================================================
// OPENAI PROVIDER
// ============================================================================

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	config     *Config
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible chat provider.
func NewOpenAIProvider(config *Config) (*OpenAIProvider, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM configuration: %w", err)
	}

	return &OpenAIProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// Complete sends a chat completion request and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if len(req.Messages) == 0 {
		return nil, ragerr.Validation("at least one message is required")
	}

	temperature := p.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	apiReq := OpenAIChatRequest{
		Model:       p.config.Model,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		apiReq.ResponseFormat = &OpenAIRespFmt{Type: "json_object"}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindInternal, "LLM_MARSHAL", "failed to marshal chat request", err)
	}

	url := strings.TrimSuffix(p.config.Host, "/") + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(p.config.RetryDelay) * time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := p.doRequest(ctx, url, body)
		if err != nil {
			lastErr = err
			if ragerr.IsRetryable(err) {
				continue
			}
			return nil, err
		}
		return resp, nil
	}

	return nil, ragerr.Wrap(ragerr.KindExternalService, "LLM_RETRIES_EXHAUSTED",
		fmt.Sprintf("chat completion failed after %d attempts", p.config.MaxRetries), lastErr)
}

func (p *OpenAIProvider) doRequest(ctx context.Context, url string, body []byte) (*Completion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindInternal, "LLM_REQUEST", "failed to create HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.EqualFold(p.config.APIKeyHeader, "authorization") {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	} else {
		httpReq.Header.Set(p.config.APIKeyHeader, p.config.APIKey)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "LLM_UNREACHABLE", "chat completion request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "LLM_READ", "failed to read chat completion response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr OpenAIErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, ragerr.External("llm", httpResp.StatusCode,
			fmt.Sprintf("chat completion failed with status %d: %s", httpResp.StatusCode, msg), nil)
	}

	var apiResp OpenAIChatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "LLM_DECODE", "failed to decode chat completion response", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, ragerr.Wrap(ragerr.KindExternalService, "LLM_EMPTY", "chat completion returned no choices", nil)
	}

	return &Completion{
		Text: apiResp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
	}, nil
}

// ModelName returns the configured model name
func (p *OpenAIProvider) ModelName() string {
	return p.config.Model
}

// Close closes the provider and releases resources
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
