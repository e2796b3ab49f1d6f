package chunking

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/kadirpekel/ragstack/pkg/tokenizer"
)

func testConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}
	return tok
}

func newTestChunker(t *testing.T, strategy Strategy) Chunker {
	t.Helper()
	c, err := NewChunker(strategy, testConfig(), testTokenizer(t), slog.Default())
	if err != nil {
		t.Fatalf("NewChunker(%s): %v", strategy, err)
	}
	return c
}

func TestSimpleChunkerFixedWindows(t *testing.T) {
	chunker := newTestChunker(t, StrategySimple)
	text := strings.Repeat("word ", 400)

	chunks, err := chunker.Chunk(text, 50, 10)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}

	for i, c := range chunks {
		if i < len(chunks)-1 && c.TokenCount != 50 {
			t.Errorf("chunk %d: token_count = %d, want 50", i, c.TokenCount)
		}
		if c.Type != TypeStandalone {
			t.Errorf("chunk %d: type = %s, want standalone", i, c.Type)
		}
		if len(c.HierarchyPath) != 0 {
			t.Errorf("chunk %d: unexpected hierarchy path", i)
		}
		if i == 0 {
			if c.HasOverlap || c.OverlapTokens != 0 {
				t.Error("first chunk must not carry overlap")
			}
		} else {
			if !c.HasOverlap || c.OverlapTokens != 10 {
				t.Errorf("chunk %d: overlap = (%v, %d), want (true, 10)", i, c.HasOverlap, c.OverlapTokens)
			}
		}
		if c.Index != i {
			t.Errorf("chunk %d: index = %d", i, c.Index)
		}
	}
}

func TestSimpleChunkerWindowCoverage(t *testing.T) {
	tok := testTokenizer(t)
	chunker := newTestChunker(t, StrategySimple)
	text := strings.Repeat("alpha beta gamma ", 60)
	total := tok.Count(text)

	chunks, err := chunker.Chunk(text, 40, 8)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	// windows must tile [0, total) with step size-overlap
	covered := 0
	for i, c := range chunks {
		if c.StartToken != covered {
			t.Errorf("chunk %d: start = %d, want %d", i, c.StartToken, covered)
		}
		if i < len(chunks)-1 {
			covered += 40 - 8
		} else if c.EndToken != total {
			t.Errorf("last chunk end = %d, want %d", c.EndToken, total)
		}
	}
}

func TestSimpleChunkerOverlapGuard(t *testing.T) {
	chunker := newTestChunker(t, StrategySimple)
	text := strings.Repeat("word ", 100)

	// overlap >= size must not loop forever; exactly one window is emitted
	chunks, err := chunker.Chunk(text, 10, 10)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(chunks))
	}
}

func TestSimpleChunkerShortText(t *testing.T) {
	chunker := newTestChunker(t, StrategySimple)

	chunks, err := chunker.Chunk("tiny input", 512, 50)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].HasOverlap {
		t.Error("single chunk must not carry overlap")
	}
}
