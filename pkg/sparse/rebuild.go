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

package sparse

import (
	"context"

	"github.com/kadirpekel/ragstack/pkg/logger"
	"github.com/kadirpekel/ragstack/pkg/vectordb"
)

// RebuildBatchSize is the scroll page size used when reloading the index.
const RebuildBatchSize = 1000

// Rebuild reloads the index from the chunk collection. The vector store is
// the source of truth; the BM25 index is a disposable in-memory replica that
// a worker rebuilds at startup and after ingestion changes.
func Rebuild(ctx context.Context, ix *Index, store vectordb.Store, collection string) error {
	points, err := store.Scroll(ctx, collection, map[string]any{
		"content_type": vectordb.ContentTypeChunk,
	}, RebuildBatchSize)
	if err != nil {
		return err
	}

	documents := make([]Document, 0, len(points))
	for _, point := range points {
		text := point.Text()
		if text == "" {
			continue
		}
		documents = append(documents, Document{
			ID:      point.ID,
			Text:    text,
			Payload: point.Payload,
		})
	}
	ix.Replace(documents)

	logger.GetLogger().Info("BM25 index rebuilt",
		"collection", collection,
		"documents", len(documents))
	return nil
}
