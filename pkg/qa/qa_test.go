package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/llms"
)

type fakeProvider struct {
	replies  []string
	requests []llms.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llms.Request) (*llms.Completion, error) {
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return nil, fmt.Errorf("provider down")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return &llms.Completion{Text: reply}, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Close() error      { return nil }

func pairsJSON(pairs ...Pair) string {
	data, _ := json.Marshal(map[string][]Pair{"qa_pairs": pairs})
	return string(data)
}

func newGenerator(t *testing.T, provider llms.Provider) *Generator {
	t.Helper()
	g, err := New(provider, &Config{MaxSingleChars: 100, MaxSectionChars: 50})
	require.NoError(t, err)
	return g
}

func TestGenerateSingle(t *testing.T) {
	provider := &fakeProvider{replies: []string{pairsJSON(
		Pair{Question: "What is it?", Answer: "A test.", Type: TypeOverview},
		Pair{Question: "When?", Answer: "Now."},
	)}}
	g := newGenerator(t, provider)

	pairs, err := g.Generate(context.Background(), "doc text", nil, MethodSingle, 8, "doc.pdf", "application/pdf")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, TypeOverview, pairs[0].Type)
	assert.Equal(t, TypeFactual, pairs[1].Type, "missing type should default to factual")

	require.Len(t, provider.requests, 1)
	assert.True(t, provider.requests[0].JSONMode)
	prompt := provider.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "doc.pdf")
	assert.Contains(t, prompt, "Generate 8 diverse")
}

func TestGenerateSingleDropsDuplicateQuestions(t *testing.T) {
	provider := &fakeProvider{replies: []string{pairsJSON(
		Pair{Question: "What is the total?", Answer: "42."},
		Pair{Question: "what is the total?", Answer: "Forty-two."},
		Pair{Question: "Who wrote it?", Answer: "The team."},
	)}}
	g := newGenerator(t, provider)

	pairs, err := g.Generate(context.Background(), "doc text", nil, MethodSingle, 8, "f", "m")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is the total?", pairs[0].Question)
	assert.Equal(t, "Who wrote it?", pairs[1].Question)
}

func TestGenerateSingleTruncatesLongDocuments(t *testing.T) {
	provider := &fakeProvider{replies: []string{pairsJSON(Pair{Question: "q", Answer: "a"})}}
	g := newGenerator(t, provider)

	_, err := g.Generate(context.Background(), strings.Repeat("x", 500), nil, MethodSingle, 8, "f", "m")
	require.NoError(t, err)
	assert.Contains(t, provider.requests[0].Messages[1].Content, "[Document truncated]")
}

func TestGeneratePerSectionMergesAndCaps(t *testing.T) {
	provider := &fakeProvider{replies: []string{
		pairsJSON(Pair{Question: "Q one?", Answer: "a"}, Pair{Question: "Q two?", Answer: "b"}),
		pairsJSON(Pair{Question: "Q three?", Answer: "c"}, Pair{Question: "Q four?", Answer: "d"}),
	}}
	g := newGenerator(t, provider)

	sections := []Section{
		{Title: "Intro", Content: "intro text"},
		{Title: "Body", Content: strings.Repeat("y", 200)},
	}
	pairs, err := g.Generate(context.Background(), "", sections, MethodPerSection, 3, "f", "m")
	require.NoError(t, err)
	assert.Len(t, pairs, 3, "result should be capped at the requested total")
	assert.Len(t, provider.requests, 2)
	assert.Contains(t, provider.requests[1].Messages[1].Content, "[Section truncated]")
}

func TestGeneratePerSectionWithoutSectionsFallsBackToSingle(t *testing.T) {
	provider := &fakeProvider{replies: []string{pairsJSON(Pair{Question: "q", Answer: "a"})}}
	g := newGenerator(t, provider)

	pairs, err := g.Generate(context.Background(), "text", nil, MethodPerSection, 5, "f", "m")
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.Len(t, provider.requests, 1)
}

func TestGenerateUnknownMethod(t *testing.T) {
	g := newGenerator(t, &fakeProvider{})
	_, err := g.Generate(context.Background(), "text", nil, "bogus", 5, "f", "m")
	require.Error(t, err)
}

func TestParsePairsPipeFallback(t *testing.T) {
	g := newGenerator(t, &fakeProvider{})

	pairs := g.parsePairs("What is X?|X is a thing.|overview\nHow to Y?|Do Z.\nnot a pair")
	require.Len(t, pairs, 2)
	assert.Equal(t, "What is X?", pairs[0].Question)
	assert.Equal(t, TypeOverview, pairs[0].Type)
	assert.Equal(t, TypeFactual, pairs[1].Type)
}

func TestDeduplicate(t *testing.T) {
	pairs := []Pair{
		{Question: "What is the revenue?", Answer: "1"},
		{Question: "what is the revenue?", Answer: "2"},
		{Question: "What is the revenue??", Answer: "3"},
		{Question: "What is the revenue in the fourth fiscal quarter?", Answer: "4"},
		{Question: "Who is the CEO?", Answer: "5"},
	}

	result := Deduplicate(pairs)
	require.Len(t, result, 3)
	assert.Equal(t, "1", result[0].Answer, "first occurrence wins")
	assert.Equal(t, "4", result[1].Answer, "long variant differs by more than the similarity margin")
	assert.Equal(t, "5", result[2].Answer)
}

func TestNumPairsAndMethodBySize(t *testing.T) {
	assert.Equal(t, 8, NumPairs("small"))
	assert.Equal(t, 12, NumPairs("medium"))
	assert.Equal(t, 15, NumPairs("large"))
	assert.Equal(t, 15, NumPairs("very_large"))

	assert.Equal(t, MethodSingle, SelectMethod("small"))
	assert.Equal(t, MethodSingle, SelectMethod("medium"))
	assert.Equal(t, MethodPerSection, SelectMethod("large"))
	assert.Equal(t, MethodPerSection, SelectMethod("very_large"))
}
