package agent

import (
	"context"
	"errors"
	"strings"
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

func candidates(texts ...string) []retrieval.Candidate {
	out := make([]retrieval.Candidate, len(texts))
	for i, t := range texts {
		out[i] = retrieval.Candidate{ID: t, Text: t}
	}
	return out
}

func TestEvaluateForcedProceedAtIterationCap(t *testing.T) {
	provider := &fakeProvider{reply: `{"decision": "refine_query", "refined_query": "other"}`}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "q", candidates("a"), 2, 2)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "Maximum iterations reached, proceeding with available information", result.Reasoning)
	assert.Equal(t, 0, provider.calls, "no model call at the cap")
}

func TestEvaluateParsesDecision(t *testing.T) {
	provider := &fakeProvider{reply: `{"decision": "refine_query", "confidence": 0.4, "reasoning": "too vague", "refined_query": "billing API errors"}`}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "errors?", candidates("a", "b"), 0, 2)

	assert.Equal(t, DecisionRefine, result.Decision)
	assert.Equal(t, 0.4, result.Confidence)
	assert.Equal(t, "billing API errors", result.RefinedQuery)
}

func TestEvaluateStripsMarkdownFences(t *testing.T) {
	provider := &fakeProvider{reply: "```json\n{\"decision\": \"expand_search\", \"confidence\": 0.6, \"reasoning\": \"partial\"}\n```"}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "q", candidates("a"), 0, 2)

	assert.Equal(t, DecisionExpand, result.Decision)
	assert.Equal(t, 0.6, result.Confidence)
}

func TestEvaluateParseFailureProceeds(t *testing.T) {
	provider := &fakeProvider{reply: "I think you should probably refine the query."}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "q", candidates("a"), 0, 2)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.5, result.Confidence)
	assert.NotEmpty(t, result.Reasoning)
}

func TestEvaluateProviderErrorProceeds(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "q", candidates("a"), 1, 3)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Contains(t, result.Reasoning, "connection refused")
}

func TestEvaluateRefineWithoutQueryBecomesProceed(t *testing.T) {
	provider := &fakeProvider{reply: `{"decision": "refine_query", "confidence": 0.3, "reasoning": "weak", "refined_query": "  "}`}
	ev := New(provider, nil)

	result := ev.Evaluate(context.Background(), "q", candidates("a"), 0, 2)

	assert.Equal(t, DecisionProceed, result.Decision)
	assert.Equal(t, 0.3, result.Confidence, "confidence from the model is kept")
}

func TestEvaluatePromptTruncatesContext(t *testing.T) {
	provider := &fakeProvider{reply: `{"decision": "proceed", "confidence": 0.9, "reasoning": "ok"}`}
	ev := New(provider, nil)

	long := strings.Repeat("x", 400)
	texts := []string{long, "two", "three", "four", "five", "six", "seven"}
	ev.Evaluate(context.Background(), "q", candidates(texts...), 0, 2)

	require.Len(t, provider.requests, 1)
	prompt := provider.requests[0].Messages[1].Content
	assert.Contains(t, prompt, strings.Repeat("x", 300)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 301))
	assert.Contains(t, prompt, "five")
	assert.NotContains(t, prompt, "six", "only the top five candidates are shown")
	assert.Equal(t, 200, provider.requests[0].MaxTokens)
	require.NotNil(t, provider.requests[0].Temperature)
	assert.Equal(t, 0.3, *provider.requests[0].Temperature)
}

func TestParseEvaluationRejectsUnknownDecision(t *testing.T) {
	_, err := parseEvaluation(`{"decision": "retry", "confidence": 0.5}`)
	assert.Error(t, err)
}
