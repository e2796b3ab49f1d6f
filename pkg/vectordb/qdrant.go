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

package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kadirpekel/ragstack/pkg/ragerr"
)

// ============================================================================
// QDRANT STORE IMPLEMENTATION
// ============================================================================

// qdrantStore is a Qdrant-backed Store.
type qdrantStore struct {
	client *qdrant.Client
	config *Config
}

// NewQdrantStore creates a Qdrant-backed vector store.
func NewQdrantStore(config *Config) (Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vector store configuration: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantStore{client: client, config: config}, nil
}

// EnsureCollection creates the collection with cosine distance if missing.
func (db *qdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return ragerr.Database("collection check", err)
	}
	if exists {
		return nil
	}

	err = db.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Another process may have created it between the check and here.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return ragerr.Database("collection create", err)
	}
	return nil
}

// Upsert adds or replaces points in the collection.
func (db *qdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		payload, err := toQdrantPayload(point.Payload)
		if err != nil {
			return err
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: payload,
		}
	}

	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return ragerr.Database("upsert", err).WithDetail("collection", collection).WithDetail("points", len(points))
	}
	return nil
}

// Search performs vector similarity search.
func (db *qdrantStore) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]SearchResult, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         toQdrantFilter(filter),
	}

	searchResult, err := db.client.GetPointsClient().Search(ctx, searchRequest)
	if err != nil {
		return nil, ragerr.Retrieval("vector_search", fmt.Sprintf("failed to search %s", collection), err)
	}

	results := make([]SearchResult, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		results = append(results, SearchResult{
			ID:      pointID(point.Id),
			Score:   point.Score,
			Payload: fromQdrantPayload(point.Payload),
		})
	}
	return results, nil
}

// Scroll returns every point matching the filter, paging by batchSize.
func (db *qdrantStore) Scroll(ctx context.Context, collection string, filter map[string]any, batchSize int) ([]SearchResult, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var results []SearchResult
	var offset *qdrant.PointId
	pointsClient := db.client.GetPointsClient()

	for {
		resp, err := pointsClient.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         toQdrantFilter(filter),
			Limit:          qdrant.PtrOf(uint32(batchSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, ragerr.Retrieval("scroll", fmt.Sprintf("failed to scroll %s", collection), err)
		}

		for _, point := range resp.Result {
			results = append(results, SearchResult{
				ID:      pointID(point.Id),
				Payload: fromQdrantPayload(point.Payload),
			})
		}

		offset = resp.NextPageOffset
		if offset == nil {
			return results, nil
		}
	}
}

// DeleteByFilter removes every point matching the filter.
func (db *qdrantStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: toQdrantFilter(filter),
			},
		},
	})
	if err != nil {
		return ragerr.Database("delete", err).WithDetail("collection", collection)
	}
	return nil
}

// DeleteCollection removes a collection.
func (db *qdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	if err := db.client.DeleteCollection(ctx, collection); err != nil {
		return ragerr.Database("collection delete", err)
	}
	return nil
}

// Healthy reports whether Qdrant is reachable.
func (db *qdrantStore) Healthy(ctx context.Context) error {
	if _, err := db.client.HealthCheck(ctx); err != nil {
		return ragerr.Database("health check", err)
	}
	return nil
}

// Close closes the Qdrant client
func (db *qdrantStore) Close() error {
	return db.client.Close()
}

// ============================================================================
// CONVERSION HELPERS
// ============================================================================

func toQdrantFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		switch v := value.(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatch(key, v))
		case []string:
			conditions = append(conditions, qdrant.NewMatchKeywords(key, v...))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(key, v))
		case int:
			conditions = append(conditions, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qdrant.NewMatchInt(key, v))
		default:
			conditions = append(conditions, qdrant.NewMatch(key, fmt.Sprintf("%v", v)))
		}
	}
	return &qdrant.Filter{Must: conditions}
}

func toQdrantPayload(payload map[string]any) (map[string]*qdrant.Value, error) {
	converted := make(map[string]*qdrant.Value, len(payload))
	for key, value := range payload {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return nil, ragerr.Wrap(ragerr.KindInternal, "PAYLOAD_CONVERT",
				fmt.Sprintf("failed to convert payload value for key %s", key), err)
		}
		converted[key] = val
	}
	return converted, nil
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		metadata[key] = fromQdrantValue(value)
	}
	return metadata
}

func fromQdrantValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = fromQdrantValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		if v.StructValue == nil {
			return nil
		}
		return fromQdrantPayload(v.StructValue.Fields)
	default:
		return value
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch idType := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return idType.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", idType.Num)
	default:
		return ""
	}
}
