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

// Package embedder provides text embedding services for semantic search.
package embedder

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings from text.
//
// Embeddings back the dense side of hybrid retrieval. EmbedBatch preserves
// input order: result[i] is the vector for texts[i].
type Embedder interface {
	// Embed converts a single text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings.
	// More efficient than calling Embed multiple times.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Config contains embedder configuration.
type Config struct {
	Host       string `yaml:"host" json:"host"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	Model      string `yaml:"model" json:"model"`
	Dimension  int    `yaml:"dimension" json:"dimension"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	MaxTokens  int    `yaml:"max_tokens" json:"max_tokens"`
	Timeout    int    `yaml:"timeout" json:"timeout"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	RetryDelay int    `yaml:"retry_delay" json:"retry_delay"`

	// BatchPause is the pause between consecutive batches in milliseconds.
	// Keeps sustained ingestion under provider rate limits.
	BatchPause int `yaml:"batch_pause" json:"batch_pause"`
}

// SetDefaults sets default values for embedder configuration
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-large"
	}
	if c.Dimension == 0 {
		c.Dimension = 3072
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 8191
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
	if c.BatchPause == 0 {
		c.BatchPause = 100
	}
}

// Validate validates embedder configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required for embedder")
	}
	if c.Dimension < 0 {
		return fmt.Errorf("dimension must not be negative, got %d", c.Dimension)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	return nil
}
