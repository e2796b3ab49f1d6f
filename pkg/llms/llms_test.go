package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

func chatResponse(text string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": text}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider, err := NewOpenAIProvider(&Config{
		Host:       srv.URL,
		APIKey:     "test-key",
		Model:      "test-model",
		RetryDelay: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider, srv
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var gotReq OpenAIChatRequest
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(chatResponse("hello"))
	})

	result, err := provider.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, 15, result.Usage.TotalTokens)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.Nil(t, gotReq.ResponseFormat)
}

func TestCompleteJSONMode(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req OpenAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		_ = json.NewEncoder(w).Encode(chatResponse(`{"ok":true}`))
	})

	result, err := provider.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, result.Text)
}

func TestCompleteRetriesOnServerError(t *testing.T) {
	calls := 0
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse("recovered"))
	})

	result, err := provider.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, 2, calls)
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad prompt"}}`))
	})

	_, err := provider.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "bad prompt")
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the server")
	})

	_, err := provider.Complete(context.Background(), Request{})
	require.Error(t, err)

	var re *ragerr.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ragerr.KindValidation, re.Kind)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "authorization", cfg.APIKeyHeader)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{APIKey: "k", Temperature: 3.5}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())

	cfg = &Config{}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate(), "missing API key should fail validation")
}
