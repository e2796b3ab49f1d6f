package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNoHeaders(t *testing.T) {
	sections := Parse("just some plain text\nwith two lines")

	assert.Len(t, sections, 1)
	assert.Equal(t, 0, sections[0].Level)
	assert.Equal(t, "", sections[0].Title)
	assert.Contains(t, sections[0].Content, "plain text")
	assert.Empty(t, sections[0].HierarchyPath)
}

func TestParseHierarchyPath(t *testing.T) {
	text := strings.Join([]string{
		"# Intro",
		"intro body",
		"## Background",
		"background body",
		"### Details",
		"details body",
		"## Methods",
		"methods body",
		"# Results",
		"results body",
	}, "\n")

	sections := Parse(text)
	assert.Len(t, sections, 5)

	assert.Equal(t, "Intro", sections[0].Path())
	assert.Equal(t, "Intro > Background", sections[1].Path())
	assert.Equal(t, "Intro > Background > Details", sections[2].Path())
	// level-3 entry is popped when a sibling level-2 header arrives
	assert.Equal(t, "Intro > Methods", sections[3].Path())
	// level-1 sibling pops everything
	assert.Equal(t, "Results", sections[4].Path())
}

func TestParseSameLevelSiblingPopsPrevious(t *testing.T) {
	sections := Parse("## A\none\n## B\ntwo")

	assert.Len(t, sections, 2)
	assert.Equal(t, []string{"A"}, sections[0].HierarchyPath)
	assert.Equal(t, []string{"B"}, sections[1].HierarchyPath)
}

func TestParsePreamble(t *testing.T) {
	sections := Parse("leading text\n\n# First\nbody")

	assert.Len(t, sections, 2)
	assert.Equal(t, 0, sections[0].Level)
	assert.Contains(t, sections[0].Content, "leading text")
	assert.Equal(t, "First", sections[1].Title)
}

func TestParseStartLines(t *testing.T) {
	sections := Parse("# A\nbody\n## B\nbody")

	assert.Equal(t, 1, sections[0].StartLine)
	assert.Equal(t, 3, sections[1].StartLine)
}

func TestHeaderCount(t *testing.T) {
	assert.Equal(t, 0, HeaderCount("no headers here"))
	assert.Equal(t, 3, HeaderCount("# A\n## B\ntext\n### C"))
	// a hash mid-line is not a header
	assert.Equal(t, 0, HeaderCount("value #1 is fine"))
}

func TestFirstParagraph(t *testing.T) {
	content := "\n\n| a | b |\n\nThe actual paragraph.\n\nSecond paragraph."
	assert.Equal(t, "The actual paragraph.", FirstParagraph(content))
	assert.Equal(t, "", FirstParagraph("   \n\n  "))
}

func TestEscapeCell(t *testing.T) {
	assert.Equal(t, `a \| b`, EscapeCell("a | b"))
	assert.Equal(t, "line one line two", EscapeCell("line one\nline two"))
}

func TestFormatTable(t *testing.T) {
	table := FormatTable([][]string{
		{"Name", "Value"},
		{"rate", "5|s"},
		{"only-one"},
	})

	lines := strings.Split(table, "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "| Name | Value |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, `| rate | 5\|s |`, lines[2])
	assert.Equal(t, "| only-one |  |", lines[3])
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\n\nb", Sanitize("a\n\n\n\n\nb\n"))
}
