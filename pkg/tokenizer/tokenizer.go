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

// Package tokenizer provides deterministic text/token conversion. All chunk
// sizing in the platform is measured in tokens produced by this package.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no encoding name is configured.
const DefaultEncoding = "cl100k_base"

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// Tokenizer wraps a byte-pair encoding chosen by name.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// New creates a tokenizer for the named encoding. Unknown names fall back to
// cl100k_base so downstream sizing never fails on configuration typos.
func New(encodingName string) (*Tokenizer, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}

	cacheMu.RLock()
	cached, exists := encodingCache[encodingName]
	cacheMu.RUnlock()

	if exists {
		return &Tokenizer{encoding: cached, name: encodingName}, nil
	}

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
		encodingName = DefaultEncoding
	}

	cacheMu.Lock()
	encodingCache[encodingName] = encoding
	cacheMu.Unlock()

	return &Tokenizer{encoding: encoding, name: encodingName}, nil
}

// ForModel creates a tokenizer using the encoding registered for a model
// name, falling back to cl100k_base.
func ForModel(model string) (*Tokenizer, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return New(DefaultEncoding)
	}
	return &Tokenizer{encoding: encoding, name: model}, nil
}

// Name returns the encoding name this tokenizer was configured with.
func (t *Tokenizer) Name() string {
	return t.name
}

// Encode converts text to token ids.
func (t *Tokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode converts token ids back to text.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}

// Count returns the exact token count for text.
func (t *Tokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Truncate returns text cut to at most maxTokens tokens.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}

// Tail returns the text of the last n tokens. Used for overlap carry-over
// between consecutive chunks.
func (t *Tokenizer) Tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	return t.encoding.Decode(tokens[len(tokens)-n:])
}

// Window returns the text covered by the token window [start, end).
// Indices are clamped to the valid range.
func (t *Tokenizer) Window(text string, start, end int) string {
	tokens := t.encoding.Encode(text, nil, nil)
	if start < 0 {
		start = 0
	}
	if end > len(tokens) {
		end = len(tokens)
	}
	if start >= end {
		return ""
	}
	return t.encoding.Decode(tokens[start:end])
}
