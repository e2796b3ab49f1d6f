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

// Package vectordb provides the vector store used for dense retrieval.
package vectordb

import (
	"context"
	"fmt"
)

// Collection names, one per content family.
const (
	CollectionChunks    = "documents_chunks"
	CollectionSummaries = "documents_summaries"
	CollectionQA        = "documents_qa"
)

// Payload content types.
const (
	ContentTypeChunk    = "chunk"
	ContentTypeSummary  = "summary"
	ContentTypeQuestion = "question"
	ContentTypeAnswer   = "answer"
)

// Point is a vector with its payload, addressed by a UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored point returned by Search or Scroll. Scroll
// results carry a zero score.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Text returns the payload's text field, if present.
func (r SearchResult) Text() string {
	if s, ok := r.Payload["text"].(string); ok {
		return s
	}
	return ""
}

// Store is the behavioral contract for a vector database.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert adds or replaces points.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs similarity search, optionally constrained by a
	// payload filter (exact matches, all conditions must hold).
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]SearchResult, error)

	// Scroll returns every point matching the filter, paging internally.
	Scroll(ctx context.Context, collection string, filter map[string]any, batchSize int) ([]SearchResult, error)

	// DeleteByFilter removes every point matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// DeleteCollection removes a collection entirely.
	DeleteCollection(ctx context.Context, collection string) error

	// Healthy reports whether the store is reachable.
	Healthy(ctx context.Context) error

	Close() error
}

// Config contains vector store configuration.
type Config struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	UseTLS  bool   `yaml:"use_tls" json:"use_tls"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// SetDefaults sets default values for vector store configuration
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

// Validate validates vector store configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535], got %d", c.Port)
	}
	return nil
}
