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

package chunking

// SimpleChunker slides a fixed token window over the whole text. No
// structure is tracked; every chunk is standalone.
type SimpleChunker struct {
	base base
}

func (c *SimpleChunker) Strategy() Strategy {
	return StrategySimple
}

// Chunk splits text into fixed-size token windows advancing by
// chunkSize - chunkOverlap. The first chunk carries no overlap marker.
func (c *SimpleChunker) Chunk(text string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	c.base.logStart(StrategySimple, text)

	tokens := c.base.tok.Encode(text)
	total := len(tokens)

	var chunks []Chunk
	start := 0
	index := 0

	for start < total {
		end := start + chunkSize
		if end > total {
			end = total
		}

		chunk := Chunk{
			Text:          c.base.tok.Decode(tokens[start:end]),
			Index:         index,
			TokenCount:    end - start,
			Strategy:      StrategySimple,
			Type:          TypeStandalone,
			HasOverlap:    index > 0 && chunkOverlap > 0,
			OverlapTokens: 0,
			StartToken:    start,
			EndToken:      end,
		}
		if chunk.HasOverlap {
			chunk.OverlapTokens = chunkOverlap
		}

		c.base.warnSize(index, chunk.TokenCount)
		chunks = append(chunks, chunk)
		index++

		start += chunkSize - chunkOverlap

		// Prevent infinite loop when overlap swallows the step.
		if chunkSize <= chunkOverlap {
			c.base.logger.Warn("chunk size <= overlap, stopping after first window",
				"chunk_size", chunkSize,
				"chunk_overlap", chunkOverlap)
			break
		}
	}

	c.base.logComplete(StrategySimple, chunks)
	return chunks, nil
}
