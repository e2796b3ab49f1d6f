package vectordb

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToQdrantFilter(t *testing.T) {
	assert.Nil(t, toQdrantFilter(nil))
	assert.Nil(t, toQdrantFilter(map[string]any{}))

	filter := toQdrantFilter(map[string]any{
		"document_id":  "doc-1",
		"chunk_index":  3,
		"is_summary":   true,
		"content_type": ContentTypeChunk,
	})
	require.NotNil(t, filter)
	assert.Len(t, filter.Must, 4)
}

func TestPayloadRoundTrip(t *testing.T) {
	payload, err := toQdrantPayload(map[string]any{
		"text":        "hello",
		"chunk_index": int64(2),
		"score":       0.5,
		"flag":        true,
		"path":        []any{"A", "B"},
	})
	require.NoError(t, err)

	back := fromQdrantPayload(payload)
	assert.Equal(t, "hello", back["text"])
	assert.Equal(t, int64(2), back["chunk_index"])
	assert.Equal(t, 0.5, back["score"])
	assert.Equal(t, true, back["flag"])
	assert.Equal(t, []any{"A", "B"}, back["path"])
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "", pointID(nil))
	assert.Equal(t, "abc", pointID(qdrant.NewID("abc")))
	assert.Equal(t, "7", pointID(qdrant.NewIDNum(7)))
}

func TestSearchResultText(t *testing.T) {
	r := SearchResult{Payload: map[string]any{"text": "body"}}
	assert.Equal(t, "body", r.Text())
	assert.Equal(t, "", SearchResult{}.Text())
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 30, cfg.Timeout)
	require.NoError(t, cfg.Validate())

	bad := &Config{Port: 99999}
	assert.Error(t, bad.Validate())
}
