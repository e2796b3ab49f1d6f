package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeSize(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{0, SizeSmall},
		{2999, SizeSmall},
		{3000, SizeMedium},
		{19999, SizeMedium},
		{20000, SizeLarge},
		{59999, SizeLarge},
		{60000, SizeVeryLarge},
	}
	for _, tt := range tests {
		if got := CategorizeSize(tt.tokens); got != tt.want {
			t.Errorf("CategorizeSize(%d) = %s, want %s", tt.tokens, got, tt.want)
		}
	}
}

func TestSamplePoints(t *testing.T) {
	assert.Equal(t, 3, SamplePoints(SizeMedium))
	assert.Equal(t, 5, SamplePoints(SizeLarge))
	assert.Equal(t, 5, SamplePoints(SizeVeryLarge))
}

func TestSamplePositionsEvenlySpaced(t *testing.T) {
	positions := samplePositions(4000, 3)
	assert.Equal(t, []int{1000, 2000, 3000}, positions)

	positions = samplePositions(6000, 5)
	assert.Equal(t, []int{1000, 2000, 3000, 4000, 5000}, positions)

	assert.Equal(t, []int{500}, samplePositions(1000, 1))
}

func TestSnapToRuneStart(t *testing.T) {
	s := "aß" // ß is 2 bytes, starting at offset 1

	assert.Equal(t, 0, snapToRuneStart(s, 0))
	assert.Equal(t, 1, snapToRuneStart(s, 1))
	assert.Equal(t, 1, snapToRuneStart(s, 2), "mid-rune offset snaps back")
	assert.Equal(t, 3, snapToRuneStart(s, 3), "length offset stays put")
}

func TestDetectSamplingKeepsRunesIntact(t *testing.T) {
	d := NewDetector(nil)

	// dense with two-byte umlauts so raw byte offsets land mid-rune
	text := strings.Repeat("Die Prüfung der jährlichen Geschäftsberichte wurde gründlich durchgeführt. ", 300)
	result := d.Detect(text, SizeLarge)

	assert.Equal(t, MethodSampling, result.Method)
	assert.Equal(t, "de", result.Primary)
	assert.False(t, result.IsMultilingual)
}

func TestDetectEmptyText(t *testing.T) {
	d := NewDetector(nil)

	result := d.Detect("   ", SizeSmall)
	assert.Equal(t, "unknown", result.Primary)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, MethodFailed, result.Method)
}

func TestDetectDirectEnglish(t *testing.T) {
	d := NewDetector(nil)

	text := "The quick brown fox jumps over the lazy dog. " +
		"This sentence is written entirely in the English language."
	result := d.Detect(text, SizeSmall)

	assert.Equal(t, "en", result.Primary)
	assert.Greater(t, result.Confidence, 0.5)
	assert.Equal(t, MethodDirect, result.Method)
	assert.Contains(t, result.AllLanguages, "en")
}

func TestDetectSamplingSingleLanguage(t *testing.T) {
	d := NewDetector(nil)

	text := strings.Repeat("The committee reviewed the annual financial report in detail. ", 500)
	result := d.Detect(text, SizeLarge)

	assert.Equal(t, "en", result.Primary)
	assert.Equal(t, MethodSampling, result.Method)
	assert.False(t, result.IsMultilingual)
	assert.Equal(t, 1.0, result.Distribution["en"])
}
