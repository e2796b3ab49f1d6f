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

// Package retrieval implements hybrid retrieval: dense search over chunks,
// summaries and Q&A pairs, keyword search over chunks, fused with
// Reciprocal Rank Fusion.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/sparse"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// Retrieval source names, used in provenance and candidate attribution.
const (
	SourceVectorChunks    = "vector_chunks"
	SourceVectorSummaries = "vector_summaries"
	SourceVectorQA        = "vector_qa"
	SourceKeywordBM25     = "keyword_bm25"
)

// Candidate is one fused retrieval result.
type Candidate struct {
	ID             string         `json:"id"`
	Score          float64        `json:"score"`
	Text           string         `json:"text"`
	Sources        []string       `json:"sources"`
	Payload        map[string]any `json:"payload,omitempty"`
	RerankPosition int            `json:"rerank_position,omitempty"`
}

// DocumentID returns the owning document id from the payload.
func (c Candidate) DocumentID() string {
	if s, ok := c.Payload["document_id"].(string); ok {
		return s
	}
	return ""
}

// Section returns the section title from the payload.
func (c Candidate) Section() string {
	if s, ok := c.Payload["section"].(string); ok {
		return s
	}
	return ""
}

// ContentType returns the payload content type.
func (c Candidate) ContentType() string {
	if s, ok := c.Payload["content_type"].(string); ok {
		return s
	}
	return ""
}

// Provenance counts the contributions of each retrieval source.
type Provenance struct {
	VectorChunks    int `json:"vector_chunks"`
	VectorSummaries int `json:"vector_summaries"`
	VectorQA        int `json:"vector_qa"`
	KeywordBM25     int `json:"keyword_bm25"`
	AfterMerge      int `json:"after_merge"`
}

// Config contains retriever configuration.
type Config struct {
	RRFK             int  `yaml:"rrf_k" json:"rrf_k"`
	SummariesLimit   int  `yaml:"summaries_limit" json:"summaries_limit"`
	QALimit          int  `yaml:"qa_limit" json:"qa_limit"`
	EnableHybrid     bool `yaml:"enable_hybrid_search" json:"enable_hybrid_search"`
	EnableQAMatching bool `yaml:"enable_qa_matching" json:"enable_qa_matching"`
}

// SetDefaults sets default values for retriever configuration
func (c *Config) SetDefaults() {
	if c.RRFK == 0 {
		c.RRFK = 60
	}
	if c.SummariesLimit == 0 {
		c.SummariesLimit = 5
	}
	if c.QALimit == 0 {
		c.QALimit = 5
	}
}

// Validate validates retriever configuration
func (c *Config) Validate() error {
	if c.RRFK < 1 {
		return fmt.Errorf("rrf_k must be at least 1, got %d", c.RRFK)
	}
	return nil
}

// Retriever fuses dense and sparse search results.
type Retriever struct {
	store  vectordb.Store
	index  *sparse.Index
	config *Config
	logger *slog.Logger
}

// New creates a hybrid retriever.
func New(store vectordb.Store, index *sparse.Index, config *Config) (*Retriever, error) {
	if config == nil {
		config = &Config{EnableHybrid: true, EnableQAMatching: true}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retriever configuration: %w", err)
	}
	return &Retriever{
		store:  store,
		index:  index,
		config: config,
		logger: logger.GetLogger(),
	}, nil
}

// List is one source's ranked results before fusion.
type List struct {
	Source  string
	Entries []Candidate
}

// Retrieve runs the four ranked queries and fuses them. documentFilter, when
// non-empty, restricts every source to the given document ids.
func (r *Retriever) Retrieve(ctx context.Context, queryVector []float32, queryText string, topK int, documentFilter []string) ([]Candidate, Provenance, error) {
	lists := make([]List, 0, 4)

	chunks, err := r.denseSearch(ctx, vectordb.CollectionChunks, queryVector, topK, documentFilter)
	if err != nil {
		return nil, Provenance{}, err
	}
	lists = append(lists, List{Source: SourceVectorChunks, Entries: chunks})

	summaries, err := r.denseSearch(ctx, vectordb.CollectionSummaries, queryVector, r.config.SummariesLimit, documentFilter)
	if err != nil {
		return nil, Provenance{}, err
	}
	lists = append(lists, List{Source: SourceVectorSummaries, Entries: summaries})

	if r.config.EnableQAMatching {
		qaResults, err := r.denseSearch(ctx, vectordb.CollectionQA, queryVector, r.config.QALimit, documentFilter)
		if err != nil {
			return nil, Provenance{}, err
		}
		lists = append(lists, List{Source: SourceVectorQA, Entries: qaResults})
	}

	if r.config.EnableHybrid {
		lists = append(lists, List{Source: SourceKeywordBM25, Entries: r.keywordSearch(queryText, topK, documentFilter)})
	}

	fused, provenance := Fuse(lists, r.config.RRFK, topK)
	r.logger.Debug("Hybrid retrieval complete",
		"vector_chunks", provenance.VectorChunks,
		"vector_summaries", provenance.VectorSummaries,
		"vector_qa", provenance.VectorQA,
		"keyword_bm25", provenance.KeywordBM25,
		"after_merge", provenance.AfterMerge,
		"returned", len(fused))
	return fused, provenance, nil
}

func (r *Retriever) denseSearch(ctx context.Context, collection string, vector []float32, limit int, documentFilter []string) ([]Candidate, error) {
	filter := map[string]any{}
	if len(documentFilter) > 0 {
		filter["document_id"] = documentFilter
	}
	results, err := r.store.Search(ctx, collection, vector, limit, filter)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(results))
	for i, result := range results {
		candidates[i] = Candidate{
			ID:      result.ID,
			Score:   float64(result.Score),
			Text:    result.Text(),
			Payload: result.Payload,
		}
	}
	return candidates, nil
}

func (r *Retriever) keywordSearch(queryText string, topK int, documentFilter []string) []Candidate {
	if r.index == nil {
		return nil
	}
	results := r.index.Search(queryText, 0)

	allowed := make(map[string]bool, len(documentFilter))
	for _, id := range documentFilter {
		allowed[id] = true
	}

	candidates := make([]Candidate, 0, topK)
	for _, result := range results {
		if len(allowed) > 0 {
			docID, _ := result.Payload["document_id"].(string)
			if !allowed[docID] {
				continue
			}
		}
		text, _ := result.Payload["text"].(string)
		candidates = append(candidates, Candidate{
			ID:      result.ID,
			Score:   result.Score,
			Text:    text,
			Payload: result.Payload,
		})
		if len(candidates) == topK {
			break
		}
	}
	return candidates
}

// Fuse merges ranked lists with Reciprocal Rank Fusion: an entry at rank r
// (1-indexed) contributes 1/(rrfK+r) to its id's fused score. Ties keep
// first-appearance order across the lists.
func Fuse(lists []List, rrfK, topK int) ([]Candidate, Provenance) {
	merged := make(map[string]*Candidate)
	var order []string
	provenance := Provenance{}

	for _, list := range lists {
		switch list.Source {
		case SourceVectorChunks:
			provenance.VectorChunks = len(list.Entries)
		case SourceVectorSummaries:
			provenance.VectorSummaries = len(list.Entries)
		case SourceVectorQA:
			provenance.VectorQA = len(list.Entries)
		case SourceKeywordBM25:
			provenance.KeywordBM25 = len(list.Entries)
		}

		for rank, entry := range list.Entries {
			contribution := 1.0 / float64(rrfK+rank+1)
			existing, ok := merged[entry.ID]
			if !ok {
				candidate := entry
				candidate.Score = contribution
				candidate.Sources = []string{list.Source}
				merged[entry.ID] = &candidate
				order = append(order, entry.ID)
				continue
			}
			existing.Score += contribution
			existing.Sources = append(existing.Sources, list.Source)
		}
	}
	provenance.AfterMerge = len(merged)

	fused := make([]Candidate, 0, len(merged))
	for _, id := range order {
		fused = append(fused, *merged[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, provenance
}
