package rerank

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
)

type fakeProvider struct {
	reply string
	fail  bool
	seen  []llms.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llms.Request) (*llms.Completion, error) {
	f.seen = append(f.seen, req)
	if f.fail {
		return nil, fmt.Errorf("provider down")
	}
	return &llms.Completion{Text: f.reply}, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Close() error      { return nil }

func fourCandidates() []retrieval.Candidate {
	return []retrieval.Candidate{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
		{ID: "c", Text: "third"},
		{ID: "d", Text: "fourth"},
	}
}

func TestRerankPreservesLLMOrder(t *testing.T) {
	provider := &fakeProvider{reply: "2, 0, 3"}
	r := New(provider, nil)

	reranked, err := r.Rerank(context.Background(), "q", fourCandidates(), 3)
	require.NoError(t, err)

	require.Len(t, reranked, 3)
	assert.Equal(t, "c", reranked[0].ID)
	assert.Equal(t, "a", reranked[1].ID)
	assert.Equal(t, "d", reranked[2].ID)
	assert.Equal(t, 1, reranked[0].RerankPosition)
	assert.Equal(t, 2, reranked[1].RerankPosition)
	assert.Equal(t, 3, reranked[2].RerankPosition)
}

func TestRerankFallsBackOnUnparsableResponse(t *testing.T) {
	provider := &fakeProvider{reply: "the most relevant chunks are lovely"}
	r := New(provider, nil)

	reranked, err := r.Rerank(context.Background(), "q", fourCandidates(), 2)
	require.NoError(t, err)
	require.Len(t, reranked, 2)
	assert.Equal(t, "a", reranked[0].ID)
	assert.Equal(t, "b", reranked[1].ID)
	assert.Equal(t, 1, reranked[0].RerankPosition)
}

func TestRerankFallsBackOnProviderError(t *testing.T) {
	provider := &fakeProvider{fail: true}
	r := New(provider, nil)

	reranked, err := r.Rerank(context.Background(), "q", fourCandidates(), 2)
	require.NoError(t, err)
	require.Len(t, reranked, 2)
	assert.Equal(t, "a", reranked[0].ID)
}

func TestRerankEmptyCandidates(t *testing.T) {
	provider := &fakeProvider{}
	r := New(provider, nil)

	reranked, err := r.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, reranked)
	assert.Empty(t, provider.seen, "no LLM call without candidates")
}

func TestRerankTruncatesLongSnippets(t *testing.T) {
	provider := &fakeProvider{reply: "0"}
	r := New(provider, &Config{SnippetChars: 10})

	candidates := []retrieval.Candidate{{ID: "a", Text: "0123456789_overflow"}}
	_, err := r.Rerank(context.Background(), "q", candidates, 1)
	require.NoError(t, err)
	prompt := provider.seen[0].Messages[1].Content
	assert.Contains(t, prompt, "[0] 0123456789\n")
	assert.NotContains(t, prompt, "overflow")
}

func TestParseIndices(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3}, ParseIndices("2, 0, 3", 4))
	assert.Equal(t, []int{1}, ParseIndices(" 1 ", 4))
	assert.Equal(t, []int{0, 2}, ParseIndices("0, 9, -1, x, 2, 0", 4), "out-of-range, junk and duplicates dropped")
	assert.Empty(t, ParseIndices("none of these", 4))
}
