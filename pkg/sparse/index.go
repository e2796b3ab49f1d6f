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

// Package sparse provides the in-memory BM25 index backing keyword
// retrieval.
package sparse

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Document is a unit of indexed text.
type Document struct {
	ID      string
	Text    string
	Payload map[string]any
}

// Result is one scored document from a keyword search.
type Result struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Option configures an Index.
type Option func(*Index)

// WithK1 sets the term frequency saturation parameter (typically 1.2-2.0).
func WithK1(k1 float64) Option {
	return func(ix *Index) { ix.k1 = k1 }
}

// WithB sets the document length normalization parameter (typically 0.75).
func WithB(b float64) Option {
	return func(ix *Index) { ix.b = b }
}

// WithTokenizer sets a custom tokenizer.
func WithTokenizer(tokenizer func(string) []string) Option {
	return func(ix *Index) { ix.tokenizer = tokenizer }
}

// indexedDoc caches a document's term frequencies.
type indexedDoc struct {
	id      string
	tf      map[string]int
	length  int
	payload map[string]any
}

// Index is a BM25 index. All methods are safe for concurrent use; a query
// worker searches it while rebuilds replace it wholesale.
type Index struct {
	mu        sync.RWMutex
	k1        float64
	b         float64
	docs      []indexedDoc
	docFreq   map[string]int
	idf       map[string]float64
	avgDocLen float64
	tokenizer func(string) []string
	stopwords map[string]bool
}

// NewIndex creates an empty BM25 index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		k1:        1.5,
		b:         0.75,
		docFreq:   make(map[string]int),
		idf:       make(map[string]float64),
		tokenizer: defaultTokenizer,
		stopwords: defaultStopwords(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Replace rebuilds the index from the given corpus.
func (ix *Index) Replace(documents []Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.docs = make([]indexedDoc, 0, len(documents))
	for _, doc := range documents {
		ix.docs = append(ix.docs, ix.indexDoc(doc))
	}
	ix.recompute()
}

// Add appends documents to the index.
func (ix *Index) Add(documents ...Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, doc := range documents {
		ix.docs = append(ix.docs, ix.indexDoc(doc))
	}
	ix.recompute()
}

// RemoveWhere drops every document whose payload matches the predicate.
func (ix *Index) RemoveWhere(match func(payload map[string]any) bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.docs[:0]
	for _, doc := range ix.docs {
		if !match(doc.payload) {
			kept = append(kept, doc)
		}
	}
	ix.docs = kept
	ix.recompute()
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search returns the topK documents ranked by BM25 score. Documents that
// share no terms with the query are not returned.
func (ix *Index) Search(query string, topK int) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	queryTerms := ix.tokenize(query)
	if len(queryTerms) == 0 || len(ix.docs) == 0 {
		return nil
	}

	// Deduplicate query terms; repeated terms do not score twice.
	seen := make(map[string]bool, len(queryTerms))
	terms := queryTerms[:0]
	for _, term := range queryTerms {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}

	results := make([]Result, 0, len(ix.docs))
	for _, doc := range ix.docs {
		score := ix.score(terms, doc)
		if score > 0 {
			results = append(results, Result{ID: doc.id, Score: score, Payload: doc.payload})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

func (ix *Index) score(terms []string, doc indexedDoc) float64 {
	var score float64
	for _, term := range terms {
		freq := doc.tf[term]
		if freq == 0 {
			continue
		}
		idf := ix.idf[term]
		if idf <= 0 {
			continue
		}
		tfNorm := float64(freq) * (ix.k1 + 1)
		tfDenom := float64(freq) + ix.k1*(1-ix.b+ix.b*(float64(doc.length)/ix.avgDocLen))
		score += idf * (tfNorm / tfDenom)
	}
	return score
}

func (ix *Index) indexDoc(doc Document) indexedDoc {
	tokens := ix.tokenize(doc.Text)
	tf := make(map[string]int, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}
	return indexedDoc{id: doc.ID, tf: tf, length: len(tokens), payload: doc.Payload}
}

// recompute rebuilds document frequencies and IDF. Callers hold the write
// lock.
func (ix *Index) recompute() {
	ix.docFreq = make(map[string]int)
	ix.idf = make(map[string]float64)

	var totalLength int
	for _, doc := range ix.docs {
		totalLength += doc.length
		for term := range doc.tf {
			ix.docFreq[term]++
		}
	}
	if len(ix.docs) == 0 {
		ix.avgDocLen = 0
		return
	}
	ix.avgDocLen = float64(totalLength) / float64(len(ix.docs))

	n := float64(len(ix.docs))
	for term, df := range ix.docFreq {
		// IDF with smoothing to avoid negative values.
		ix.idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
	}
}

func (ix *Index) tokenize(text string) []string {
	tokens := ix.tokenizer(text)
	filtered := tokens[:0]
	for _, token := range tokens {
		if !ix.stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// defaultTokenizer lowercases, strips punctuation and splits on whitespace.
// \p{L} keeps non-Latin scripts intact.
func defaultTokenizer(text string) []string {
	text = punctRe.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(text)
}

func defaultStopwords() map[string]bool {
	words := []string{
		"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "been",
		"be", "have", "has", "had", "do", "does", "did", "will", "would",
		"could", "should", "may", "might", "must", "shall", "can", "need",
		"this", "that", "these", "those", "i", "you", "he", "she", "it",
		"we", "they", "what", "which", "who", "whom", "when", "where", "why",
		"how", "all", "each", "every", "both", "few", "more", "most", "other",
		"some", "such", "no", "nor", "not", "only", "own", "same", "so",
		"than", "too", "very", "just", "also", "now",
	}
	stopwords := make(map[string]bool, len(words))
	for _, w := range words {
		stopwords[w] = true
	}
	return stopwords
}
