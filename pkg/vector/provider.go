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

import "context"

// Provider is the narrow interface the semantic searcher depends on. It
// abstracts away which ANN engine backs a collection: chromem-go embedded
// in-process, Qdrant over gRPC, or any other implementation added later.
type Provider interface {
	// Upsert stores a pre-computed embedding under id, replacing any
	// existing vector and metadata for that id.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest neighbors to vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter is Search restricted to points whose metadata
	// matches filter (exact-match, ANDed across keys).
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a single point by id.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every point whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures a collection exists, sized for vectors of
	// vectorDimension. A no-op if the provider creates collections lazily.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and everything in it.
	DeleteCollection(ctx context.Context, collection string) error

	// Name identifies the provider implementation, e.g. "chromem" or "qdrant".
	Name() string

	// Close releases resources held by the provider (connections, file handles).
	Close() error
}

// Result is a single match returned by a similarity search.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// NilProvider is a no-op Provider returned when no vector configuration is
// supplied. Searches return no results rather than failing, so a deployment
// that only wants lexical search can omit the vector config entirely.
type NilProvider struct{}

func (NilProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	return nil
}

func (NilProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(ctx context.Context, collection string, id string) error { return nil }

func (NilProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return nil
}

func (NilProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return nil
}

func (NilProvider) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (NilProvider) Name() string { return "nil" }

func (NilProvider) Close() error { return nil }

var _ Provider = NilProvider{}
