package chunking

import (
	"log/slog"
	"strings"
	"testing"
)

func newSemantic(t *testing.T, cfg Config) *SemanticChunker {
	t.Helper()
	c, err := NewSemanticChunker(newBase(cfg, testTokenizer(t), slog.Default()))
	if err != nil {
		t.Fatalf("NewSemanticChunker: %v", err)
	}
	return c
}

func TestSemanticAggregatesSmallSections(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.SemanticOverlapEnabled = &disabled
	chunker := newSemantic(t, cfg)

	text := "# A\n\nfirst small section\n\n# B\n\nsecond small section\n\n# C\n\nthird small section"

	chunks, err := chunker.Chunk(text, 512, 50)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 aggregated chunk", len(chunks))
	}
	for _, title := range []string{"A", "B", "C"} {
		if !strings.Contains(chunks[0].Text, "# "+title) {
			t.Errorf("aggregated chunk missing section %s", title)
		}
	}
	if chunks[0].Section != "A" {
		t.Errorf("section = %q, want first section title", chunks[0].Section)
	}
}

func TestSemanticSplitsOversizedSection(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.SemanticOverlapEnabled = &disabled
	chunker := newSemantic(t, cfg)

	text := "# Long\n\n" + strings.Repeat("This is a full sentence about the topic at hand. ", 120)

	chunks, err := chunker.Chunk(text, 100, 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want oversized section split", len(chunks))
	}

	for i, c := range chunks {
		// sentence packing may not hit the target exactly; allow one
		// sentence worth of slack
		if c.TokenCount > 100+15 {
			t.Errorf("chunk %d: token_count = %d exceeds size with slack", i, c.TokenCount)
		}
		if c.Section != "Long" {
			t.Errorf("chunk %d: section = %q", i, c.Section)
		}
	}
}

func TestSemanticOverlapPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.SemanticOverlapTokens = 10
	chunker := newSemantic(t, cfg)

	text := "# One\n\n" + strings.Repeat("Alpha sentence content here. ", 40) +
		"\n\n# Two\n\n" + strings.Repeat("Beta sentence content here. ", 40)

	chunks, err := chunker.Chunk(text, 120, 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	if chunks[0].HasOverlap {
		t.Error("first chunk must not carry overlap")
	}
	for i := 1; i < len(chunks); i++ {
		c := chunks[i]
		if !c.HasOverlap || c.OverlapTokens != 10 {
			t.Errorf("chunk %d: overlap = (%v, %d), want (true, 10)", i, c.HasOverlap, c.OverlapTokens)
		}
		if !strings.HasPrefix(c.Text, "...") {
			t.Errorf("chunk %d: overlap text must start with ellipsis marker", i)
		}
	}
}

func TestSemanticIndicesSequential(t *testing.T) {
	chunker := newSemantic(t, testConfig())

	text := "# A\n\n" + strings.Repeat("Words all the way down. ", 80) +
		"\n\n# B\n\n" + strings.Repeat("More words again here. ", 80)

	chunks, err := chunker.Chunk(text, 100, 0)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: index = %d", i, c.Index)
		}
		if c.TokenCount == 0 {
			t.Errorf("chunk %d: token count not set", i)
		}
	}
}
