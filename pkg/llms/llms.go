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

// Package llms provides the chat-completion provider used by the summarizer,
// Q&A generator, reranker, agent evaluator and answer generator.
package llms

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. Zero Temperature/MaxTokens fall back to
// the provider's configured defaults.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
}

// Usage reports provider-side token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a completion result.
type Completion struct {
	Text  string
	Usage Usage
}

// Provider is the behavioral contract any chat-completion backend must
// satisfy.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	ModelName() string
	Close() error
}

// Config contains LLM provider configuration.
type Config struct {
	Host        string  `yaml:"host" json:"host"`
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Timeout     int     `yaml:"timeout" json:"timeout"`
	MaxRetries  int     `yaml:"max_retries" json:"max_retries"`
	RetryDelay  int     `yaml:"retry_delay" json:"retry_delay"`

	// APIKeyHeader selects the auth header. "authorization" sends a Bearer
	// token; any other value is used as a literal header name (Azure-style
	// deployments use "api-key").
	APIKeyHeader string `yaml:"api_key_header" json:"api_key_header"`
}

// SetDefaults sets default values for LLM configuration
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "authorization"
	}
}

// Validate validates LLM configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required for LLM provider")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %f", c.Temperature)
	}
	return nil
}
