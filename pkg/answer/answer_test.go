package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/llms"
	"github.com/kadirpekel/ragstack/pkg/retrieval"
)

type fakeProvider struct {
	reply    string
	err      error
	calls    int
	requests []llms.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llms.Request) (*llms.Completion, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llms.Completion{Text: f.reply}, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Close() error      { return nil }

func candidate(id, text, docID, section, contentType string) retrieval.Candidate {
	return retrieval.Candidate{
		ID:   id,
		Text: text,
		Payload: map[string]any{
			"document_id":  docID,
			"section":      section,
			"content_type": contentType,
		},
	}
}

func TestGenerateCitesSources(t *testing.T) {
	provider := &fakeProvider{reply: "Yes [1] and partly [3]."}
	gen := New(provider, nil)

	cands := []retrieval.Candidate{
		candidate("a", "first chunk", "d1", "Intro", "chunk"),
		candidate("b", "second chunk", "d1", "Body", "chunk"),
		candidate("c", "third chunk", "d2", "Summary", "summary"),
	}
	result, err := gen.Generate(context.Background(), "is it so?", cands)
	require.NoError(t, err)

	assert.Equal(t, "Yes [1] and partly [3].", result.Answer)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, 1, result.Citations[0].CitationNumber)
	assert.Equal(t, "first chunk", result.Citations[0].Text)
	assert.Equal(t, "d1", result.Citations[0].DocumentID)
	assert.Equal(t, 3, result.Citations[1].CitationNumber)
	assert.Equal(t, "summary", result.Citations[1].Type)
	assert.Equal(t, "Summary", result.Citations[1].Section)
}

func TestGenerateNumbersContext(t *testing.T) {
	provider := &fakeProvider{reply: "ok [1]"}
	gen := New(provider, nil)

	cands := []retrieval.Candidate{
		candidate("a", "alpha", "d1", "", "chunk"),
		candidate("b", "beta", "d1", "", "chunk"),
	}
	_, err := gen.Generate(context.Background(), "q", cands)
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Contains(t, req.Messages[1].Content, "[1] alpha\n\n[2] beta")
	assert.Contains(t, req.Messages[1].Content, "Question: q")
	assert.Contains(t, req.Messages[0].Content, "cite your sources")
	assert.Equal(t, 500, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.3, *req.Temperature)
}

func TestGenerateNoCandidates(t *testing.T) {
	provider := &fakeProvider{}
	gen := New(provider, nil)

	result, err := gen.Generate(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.Equal(t, InsufficientContext, result.Answer)
	assert.Empty(t, result.Citations)
	assert.NotNil(t, result.Citations)
	assert.Equal(t, 0, provider.calls)
}

func TestGenerateProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	gen := New(provider, nil)

	_, err := gen.Generate(context.Background(), "q", []retrieval.Candidate{
		candidate("a", "alpha", "d1", "", "chunk"),
	})
	assert.Error(t, err)
}

func TestExtractCitationsIgnoresUnreferenced(t *testing.T) {
	cands := []retrieval.Candidate{
		candidate("a", "alpha", "d1", "", "chunk"),
		candidate("b", "beta", "d1", "", "chunk"),
	}
	citations := ExtractCitations("nothing is cited here", cands)
	assert.Empty(t, citations)

	citations = ExtractCitations("see [2]", cands)
	require.Len(t, citations, 1)
	assert.Equal(t, 2, citations[0].CitationNumber)
	assert.Equal(t, "beta", citations[0].Text)
}
