package chunking

import (
	"fmt"
	"strings"
	"testing"
)

// threeSectionDoc builds a document with three sections, each comfortably
// above the configured min chunk size in tokens.
func threeSectionDoc() string {
	var b strings.Builder
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "# Section %d\n\n", i)
		fmt.Fprintf(&b, "Opening paragraph of section %d with enough words to matter.\n\n", i)
		b.WriteString(strings.Repeat(fmt.Sprintf("Body sentence %d repeats here. ", i), 60))
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestHierarchicalParentChildIntegrity(t *testing.T) {
	chunker := newTestChunker(t, StrategyHierarchical)

	chunks, err := chunker.Chunk(threeSectionDoc(), 64, 8)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	parents := map[int]Chunk{}
	var children []Chunk
	for _, c := range chunks {
		switch c.Type {
		case TypeParent:
			parents[c.Index] = c
		case TypeChild:
			children = append(children, c)
		default:
			t.Errorf("chunk %d: unexpected type %s", c.Index, c.Type)
		}
	}

	if len(parents) != 3 {
		t.Fatalf("got %d parents, want 3", len(parents))
	}
	if len(children) == 0 {
		t.Fatal("no children produced")
	}

	childrenPerParent := map[int]int{}
	for _, c := range children {
		if c.ParentID == nil {
			t.Fatalf("child %d has nil parent id", c.Index)
		}
		parent, ok := parents[*c.ParentID]
		if !ok {
			t.Fatalf("child %d references unknown parent %d", c.Index, *c.ParentID)
		}
		if c.ParentSummary != parent.Text {
			t.Errorf("child %d: parent summary does not match parent text", c.Index)
		}
		childrenPerParent[*c.ParentID]++
	}

	// every parent has at least one child
	for idx := range parents {
		if childrenPerParent[idx] == 0 {
			t.Errorf("parent %d has no children", idx)
		}
	}

	// parents are never children
	for _, p := range parents {
		if p.ParentID != nil {
			t.Errorf("parent %d carries a parent id", p.Index)
		}
	}
}

func TestHierarchicalIndicesUnique(t *testing.T) {
	chunker := newTestChunker(t, StrategyHierarchical)

	chunks, err := chunker.Chunk(threeSectionDoc(), 64, 8)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	seen := map[int]bool{}
	for _, c := range chunks {
		if seen[c.Index] {
			t.Errorf("duplicate chunk index %d", c.Index)
		}
		seen[c.Index] = true
	}
}

func TestHierarchicalParentSummaryShape(t *testing.T) {
	chunker := newTestChunker(t, StrategyHierarchical)

	chunks, err := chunker.Chunk(threeSectionDoc(), 64, 8)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	for _, c := range chunks {
		if c.Type != TypeParent {
			continue
		}
		if !strings.HasPrefix(c.Text, "**"+c.Section+"**: ") {
			t.Errorf("parent %d: summary %q lacks bolded title prefix", c.Index, c.Text)
		}
	}
}

func TestHierarchicalSkipsSmallSections(t *testing.T) {
	chunker := newTestChunker(t, StrategyHierarchical)

	text := "# Tiny\n\nshort.\n\n# Big\n\n" +
		strings.Repeat("This section carries real content worth indexing. ", 50)

	chunks, err := chunker.Chunk(text, 64, 8)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	for _, c := range chunks {
		if c.Section == "Tiny" {
			t.Error("section below min_chunk_size must be skipped")
		}
	}
}
