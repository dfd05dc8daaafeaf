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

package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant vector provider.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`

	// Port is the Qdrant gRPC port (default: 6334).
	Port int `yaml:"port"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// QdrantProvider implements Provider against a Qdrant server over gRPC.
//
// Collection existence is cached in-process: the Registry pattern this
// provider sits behind (see NewRegistry in factory.go) already assumes
// one process owns a provider's lifetime, so there's no need to round-trip
// CollectionExists before every single Upsert once a collection is known
// to exist.
type QdrantProvider struct {
	client *qdrant.Client
	config QdrantConfig

	mu    sync.RWMutex
	known map[string]struct{}
}

// NewQdrantProvider dials a Qdrant server and returns a ready Provider.
func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, qdrantErr("dial", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), err)
	}

	return &QdrantProvider{
		client: client,
		config: cfg,
		known:  make(map[string]struct{}),
	}, nil
}

// Name implements Provider.
func (p *QdrantProvider) Name() string { return "qdrant" }

// ensureCollection creates collection if it isn't already known to exist,
// sized for vectors of dimension vectorDimension. Safe to call concurrently.
func (p *QdrantProvider) ensureCollection(ctx context.Context, collection string, vectorDimension int) error {
	p.mu.RLock()
	_, ok := p.known[collection]
	p.mu.RUnlock()
	if ok {
		return nil
	}

	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return qdrantErr("check collection", collection, err)
	}

	if !exists {
		err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorDimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return qdrantErr("create collection", collection, err)
		}
	}

	p.mu.Lock()
	p.known[collection] = struct{}{}
	p.mu.Unlock()
	return nil
}

// Upsert implements Provider, lazily creating collection on first write.
func (p *QdrantProvider) Upsert(ctx context.Context, collection string, id string, vec []float32, metadata map[string]any) error {
	if err := p.ensureCollection(ctx, collection, len(vec)); err != nil {
		return err
	}

	payload, err := metadataToPayload(metadata)
	if err != nil {
		return qdrantErr("encode payload", collection, err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vec...),
		Payload: payload,
	}

	if _, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return qdrantErr("upsert point "+id, collection, err)
	}
	return nil
}

// Search implements Provider.
func (p *QdrantProvider) Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vec, topK, nil)
}

// SearchWithFilter implements Provider.
func (p *QdrantProvider) SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]Result, error) {
	req := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	if len(filter) > 0 {
		req.Filter = filterToQdrant(filter)
	}

	resp, err := p.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, qdrantErr("search", collection, err)
	}
	return pointsToResults(resp.Result), nil
}

// Delete implements Provider.
func (p *QdrantProvider) Delete(ctx context.Context, collection string, id string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}},
				},
			},
		},
	})
	if err != nil {
		return qdrantErr("delete point "+id, collection, err)
	}
	return nil
}

// DeleteByFilter implements Provider.
func (p *QdrantProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filterToQdrant(filter)},
		},
	})
	if err != nil {
		return qdrantErr("delete by filter", collection, err)
	}
	return nil
}

// CreateCollection implements Provider.
func (p *QdrantProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return p.ensureCollection(ctx, collection, vectorDimension)
}

// DeleteCollection implements Provider.
func (p *QdrantProvider) DeleteCollection(ctx context.Context, collection string) error {
	if err := p.client.DeleteCollection(ctx, collection); err != nil {
		return qdrantErr("delete collection", collection, err)
	}
	p.mu.Lock()
	delete(p.known, collection)
	p.mu.Unlock()
	return nil
}

// Close implements Provider.
func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

func qdrantErr(op, collection string, err error) error {
	return fmt.Errorf("qdrant provider: %s on collection %q: %w", op, collection, err)
}

// metadataToPayload converts a fragment's metadata map to Qdrant's wire
// payload type.
func metadataToPayload(metadata map[string]any) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(metadata))
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		payload[key] = val
	}
	return payload, nil
}

// filterToQdrant builds an AND-of-equality filter from a flat map, matching
// the exact-match-ANDed-across-keys contract Provider.SearchWithFilter
// documents.
func filterToQdrant(filter map[string]any) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: val.GetStringValue()},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// qdrantValueToAny unwraps a single Qdrant payload value into a plain Go
// value. Shared by pointsToResults for both top-level fields and list
// elements, so the two don't drift.
func qdrantValueToAny(v *qdrant.Value) any {
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		if kind.ListValue == nil {
			return nil
		}
		list := make([]any, len(kind.ListValue.Values))
		for i, item := range kind.ListValue.Values {
			list[i] = qdrantValueToAny(item)
		}
		return list
	default:
		return v
	}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func pointVector(point *qdrant.ScoredPoint) []float32 {
	if point.Vectors == nil {
		return nil
	}
	vectorData := point.Vectors.GetVector()
	if vectorData == nil {
		return nil
	}
	dense, ok := vectorData.Vector.(*qdrant.VectorOutput_Dense)
	if !ok || dense.Dense == nil {
		return nil
	}
	return dense.Dense.Data
}

func pointsToResults(points []*qdrant.ScoredPoint) []Result {
	results := make([]Result, 0, len(points))
	for _, point := range points {
		metadata := make(map[string]any, len(point.Payload))
		for key, value := range point.Payload {
			metadata[key] = qdrantValueToAny(value)
		}

		content, _ := metadata["content"].(string)

		results = append(results, Result{
			ID:       pointIDString(point.Id),
			Content:  content,
			Vector:   pointVector(point),
			Metadata: metadata,
			Score:    point.Score,
		})
	}
	return results
}

var _ Provider = (*QdrantProvider)(nil)
