// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package language detects a document's primary language and multilingual
// distribution. Small documents are analyzed directly; larger ones by
// evenly-spaced sampling.
package language

import (
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// Detection methods.
const (
	MethodDirect   = "direct"
	MethodSampling = "sampling"
	MethodFailed   = "failed"
)

// Size categories by token count.
const (
	SizeSmall     = "small"
	SizeMedium    = "medium"
	SizeLarge     = "large"
	SizeVeryLarge = "very_large"
)

const sampleSize = 1000

// CategorizeSize buckets a document by token count.
func CategorizeSize(tokenCount int) string {
	switch {
	case tokenCount < 3000:
		return SizeSmall
	case tokenCount < 20000:
		return SizeMedium
	case tokenCount < 60000:
		return SizeLarge
	default:
		return SizeVeryLarge
	}
}

// SamplePoints returns how many samples each size category warrants.
func SamplePoints(sizeCategory string) int {
	if sizeCategory == SizeMedium {
		return 3
	}
	return 5
}

// Result is the detection outcome.
type Result struct {
	Primary        string             `json:"primary"`
	Confidence     float64            `json:"confidence"`
	IsMultilingual bool               `json:"is_multilingual"`
	AllLanguages   []string           `json:"all_languages"`
	Distribution   map[string]float64 `json:"distribution"`
	Method         string             `json:"detection_method"`
}

// Detector wraps a lingua language detector.
type Detector struct {
	detector lingua.LanguageDetector
	logger   *slog.Logger
}

// NewDetector builds a detector over all supported languages.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build(),
		logger: logger,
	}
}

// Detect analyzes text according to its size category: direct detection for
// small documents, evenly-spaced sampling otherwise.
func (d *Detector) Detect(text, sizeCategory string) Result {
	if strings.TrimSpace(text) == "" {
		return emptyResult()
	}

	d.logger.Debug("detecting language", "size_category", sizeCategory)

	if sizeCategory == SizeSmall || sizeCategory == "" {
		return d.detectDirect(text)
	}
	return d.detectSampling(text, SamplePoints(sizeCategory))
}

// detectDirect runs confidence detection over the full text. The document is
// multilingual when the second-best language's confidence exceeds 0.20.
func (d *Detector) detectDirect(text string) Result {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return emptyResult()
	}

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Value() > values[j].Value()
	})

	distribution := map[string]float64{}
	for _, v := range values {
		if v.Value() > 0.1 {
			distribution[isoCode(v.Language())] = round3(v.Value())
		}
	}

	primary := isoCode(values[0].Language())
	if len(distribution) == 0 {
		distribution[primary] = round3(values[0].Value())
	}

	return Result{
		Primary:        primary,
		Confidence:     values[0].Value(),
		IsMultilingual: len(values) > 1 && values[1].Value() > 0.2,
		AllLanguages:   sortedKeys(distribution),
		Distribution:   distribution,
		Method:         MethodDirect,
	}
}

// detectSampling takes evenly-spaced 1000-char samples, detects each, and
// aggregates by count. The document is multilingual when two or more
// languages appear across samples.
func (d *Detector) detectSampling(text string, samplePoints int) Result {
	counts := map[string]int{}
	total := 0

	for _, pos := range samplePositions(len(text), samplePoints) {
		start := pos - sampleSize/2
		if start < 0 {
			start = 0
		}
		end := pos + sampleSize/2
		if end > len(text) {
			end = len(text)
		}
		sample := text[snapToRuneStart(text, start):snapToRuneStart(text, end)]
		if strings.TrimSpace(sample) == "" {
			continue
		}

		lang, ok := d.detector.DetectLanguageOf(sample)
		if !ok {
			continue
		}
		counts[isoCode(lang)]++
		total++
	}

	if total == 0 {
		return emptyResult()
	}

	distribution := map[string]float64{}
	primary := ""
	best := 0
	for lang, count := range counts {
		distribution[lang] = round3(float64(count) / float64(total))
		if count > best || (count == best && lang < primary) {
			primary = lang
			best = count
		}
	}

	d.logger.Info("language detection complete",
		"languages", len(distribution),
		"samples", total,
		"primary", primary)

	return Result{
		Primary:        primary,
		Confidence:     distribution[primary],
		IsMultilingual: len(distribution) > 1,
		AllLanguages:   sortedKeys(distribution),
		Distribution:   distribution,
		Method:         MethodSampling,
	}
}

// snapToRuneStart moves a byte offset back to the nearest rune boundary so
// a sample never opens or closes mid-rune.
func snapToRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// samplePositions spreads n positions evenly through [0, textLen).
func samplePositions(textLen, n int) []int {
	if n <= 1 {
		return []int{textLen / 2}
	}
	step := float64(textLen) / float64(n+1)
	positions := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		positions = append(positions, int(step*float64(i)))
	}
	return positions
}

func isoCode(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func emptyResult() Result {
	return Result{
		Primary:      "unknown",
		Confidence:   0,
		AllLanguages: []string{},
		Distribution: map[string]float64{},
		Method:       MethodFailed,
	}
}
