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

// Package semantic implements the Semantic Searcher: it embeds query
// text and fragment content, and delegates nearest-neighbor search and
// persistence to a pkg/vector.Provider.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/kadirpekel/ragcore/pkg/embedder"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/tracing"
	"github.com/kadirpekel/ragcore/pkg/vector"
)

var tracer = otel.Tracer(tracing.InstrumentationName)

// VectorConfig names the embedding dimension and collection a Searcher
// writes to and reads from.
type VectorConfig struct {
	Dimensions int `yaml:"dimensions"`
	Collection string `yaml:"collection"`
}

func (c *VectorConfig) SetDefaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = 768
	}
	if c.Collection == "" {
		c.Collection = "fragments"
	}
}

// Searcher implements ragcore.SemanticSearcher and ragcore.VectorStore by
// embedding text and delegating storage/search to a vector.Provider.
type Searcher struct {
	provider   vector.Provider
	embedder   embedder.Embedder
	collection string
	retry      ragcore.RetryConfig
}

// NewSearcher builds a Searcher. retry governs how many times a backend
// call is retried before the caller treats it as a failure and degrades.
func NewSearcher(provider vector.Provider, emb embedder.Embedder, cfg VectorConfig, retry ragcore.RetryConfig) *Searcher {
	cfg.SetDefaults()
	return &Searcher{provider: provider, embedder: emb, collection: cfg.Collection, retry: retry}
}

// Search implements ragcore.SemanticSearcher.
func (s *Searcher) Search(ctx context.Context, queryText string, topK int, threshold float64) []ragcore.ScoredFragment {
	embedCtx, embedSpan := tracer.Start(ctx, "semantic.embed")
	vec, err := s.embedder.Embed(embedCtx, queryText)
	embedSpan.End()
	if err != nil {
		slog.Warn("semantic search: embed failed, returning empty", "error", err)
		return nil
	}

	annCtx, annSpan := tracer.Start(ctx, "semantic.ann_query")
	defer annSpan.End()

	var results []vector.Result
	err = ragcore.Retry(annCtx, s.retry, func(ctx context.Context) error {
		var searchErr error
		results, searchErr = s.provider.Search(ctx, s.collection, vec, topK)
		return searchErr
	})
	if err != nil {
		slog.Warn("semantic search: backend failed, returning empty", "error", err)
		return nil
	}

	out := make([]ragcore.ScoredFragment, 0, len(results))
	for _, r := range results {
		if float64(r.Score) < threshold {
			continue
		}
		out = append(out, ragcore.ScoredFragment{
			Fragment: ragcore.Fragment{Content: r.Content, Metadata: r.Metadata},
			Score:    float64(r.Score),
		})
	}

	// The ANN backend is expected to already return results ordered by
	// decreasing similarity; sort defensively so the contract holds
	// regardless of provider.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	return out
}

// Upsert implements ragcore.VectorStore: embed each fragment's content
// and persist it, keyed by a UUID derived from the fragment's source and
// content, so re-ingesting an unchanged fragment replaces its earlier
// entry instead of adding a second one.
func (s *Searcher) Upsert(ctx context.Context, fragments []ragcore.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Content
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}

	for i, f := range fragments {
		meta := make(map[string]any, len(f.Metadata)+1)
		for k, v := range f.Metadata {
			meta[k] = v
		}
		meta["content"] = f.Content

		source, _ := f.Metadata[ragcore.MetaSource].(string)
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"_"+f.Content)).String()
		if err := s.provider.Upsert(ctx, s.collection, id, vecs[i], meta); err != nil {
			return fmt.Errorf("upsert fragment %d: %w", i, err)
		}
	}
	return nil
}
