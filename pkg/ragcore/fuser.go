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

package ragcore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/ragcore/pkg/tracing"
)

var fuserTracer = otel.Tracer(tracing.InstrumentationName)

// HybridConfig holds the Hybrid Fuser's tunables.
type HybridConfig struct {
	Alpha              float64 `yaml:"alpha"`
	RetrievalMultiplier int    `yaml:"retrieval_multiplier"`
}

// SetDefaults applies the documented defaults. An Alpha of 0 is treated
// as unset here and becomes 0.7.
func (c *HybridConfig) SetDefaults() {
	if c.Alpha == 0 {
		c.Alpha = 0.7
	}
	if c.RetrievalMultiplier <= 0 {
		c.RetrievalMultiplier = 2
	}
}

// Validate checks the configuration.
func (c *HybridConfig) Validate() error {
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("hybrid.alpha must be in [0,1], got %v", c.Alpha)
	}
	if c.RetrievalMultiplier < 1 {
		return fmt.Errorf("hybrid.retrieval_multiplier must be >= 1")
	}
	return nil
}

// Fuser is the Hybrid Fuser: it normalizes and linearly combines
// semantic and lexical results, applies the requested filter, and returns
// a deterministically ordered, top_k-bounded result.
type Fuser struct {
	semantic SemanticSearcher
	lexical  LexicalSearcher
	cfg      HybridConfig
	metrics  *Metrics
}

// NewFuser builds a Fuser over the given backends. Only the retrieval
// multiplier is defaulted here: an Alpha of 0 is a valid weight (pure
// lexical) and is used as given.
func NewFuser(semantic SemanticSearcher, lexical LexicalSearcher, cfg HybridConfig, metrics *Metrics) *Fuser {
	if cfg.RetrievalMultiplier <= 0 {
		cfg.RetrievalMultiplier = 2
	}
	return &Fuser{semantic: semantic, lexical: lexical, cfg: cfg, metrics: metrics}
}

type fusedEntry struct {
	fragment  Fragment
	hasSem    bool
	hasKw     bool
	semNorm   float64
	kwNorm    float64
	kwRaw     float64
}

// Search runs both backends concurrently, normalizes and combines their
// scores, filters, and returns the top_k results in deterministic order.
func (f *Fuser) Search(ctx context.Context, q Query) RetrievalResult {
	start := time.Now()
	defer func() {
		if f.metrics != nil {
			f.metrics.FusionLatency.Observe(time.Since(start).Seconds())
		}
	}()

	if q.TopK <= 0 {
		return RetrievalResult{}
	}

	overretrieveK := q.TopK * f.cfg.RetrievalMultiplier

	fuseCtx, fuseSpan := fuserTracer.Start(ctx, "fuser.search")
	defer fuseSpan.End()

	var semResults, kwResults []ScoredFragment
	g, gctx := errgroup.WithContext(fuseCtx)
	g.Go(func() error {
		semResults = f.safeSemanticSearch(gctx, q, overretrieveK)
		return nil
	})
	g.Go(func() error {
		kwResults = f.safeLexicalSearch(gctx, q, overretrieveK)
		return nil
	})
	_ = g.Wait() // sub-searches never return an error; failures degrade to empty

	if len(semResults) == 0 && f.metrics != nil {
		f.metrics.FusionBackendEmpty.WithLabelValues("semantic").Inc()
	}
	if len(kwResults) == 0 && f.metrics != nil {
		f.metrics.FusionBackendEmpty.WithLabelValues("lexical").Inc()
	}

	// Step 2: filter independently.
	semResults = filterScored(semResults, q.Filter)
	kwResults = filterScored(kwResults, q.Filter)

	// Step 3: normalize.
	entries := make(map[string]*fusedEntry)

	semLen := len(semResults)
	if semLen < 1 {
		semLen = 1
	}
	for rank, r := range semResults {
		norm := 1 - float64(rank)/float64(semLen)
		key := r.Fragment.identityKey()
		e, ok := entries[key]
		if !ok {
			e = &fusedEntry{fragment: r.Fragment}
			entries[key] = e
		}
		e.hasSem = true
		e.semNorm = norm
	}

	maxKw := maxRawScore(kwResults)
	for _, r := range kwResults {
		norm := r.Score / maxKw
		key := r.Fragment.identityKey()
		e, ok := entries[key]
		if !ok {
			e = &fusedEntry{fragment: r.Fragment}
			entries[key] = e
		}
		e.hasKw = true
		e.kwNorm = norm
		e.kwRaw = r.Score
	}

	// Step 5: fuse.
	alpha := f.cfg.Alpha
	type scored struct {
		entry    *fusedEntry
		combined float64
	}
	all := make([]scored, 0, len(entries))
	for _, e := range entries {
		var combined float64
		switch {
		case e.hasSem && e.hasKw:
			combined = alpha*e.semNorm + (1-alpha)*e.kwNorm
		case e.hasSem:
			combined = alpha * e.semNorm
		case e.hasKw:
			combined = (1 - alpha) * e.kwNorm
		}
		all = append(all, scored{entry: e, combined: combined})
	}

	// Step 6: rank & limit. Stable sort, descending combined, ties broken
	// by lexical raw score then source ascending.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].combined != all[j].combined {
			return all[i].combined > all[j].combined
		}
		if all[i].entry.kwRaw != all[j].entry.kwRaw {
			return all[i].entry.kwRaw > all[j].entry.kwRaw
		}
		return all[i].entry.fragment.stringMeta(MetaSource) < all[j].entry.fragment.stringMeta(MetaSource)
	})

	if len(all) > q.TopK {
		all = all[:q.TopK]
	}

	out := make([]Fragment, 0, len(all))
	for _, s := range all {
		frag := s.entry.fragment
		meta := make(map[string]any, len(frag.Metadata)+3)
		maps.Copy(meta, frag.Metadata)
		meta[MetaHybridScore] = s.combined
		meta[MetaSemanticScore] = s.entry.semNorm
		meta[MetaKeywordScore] = s.entry.kwNorm
		frag.Metadata = meta
		out = append(out, frag)
	}

	return RetrievalResult{Fragments: out}
}

func maxRawScore(results []ScoredFragment) float64 {
	if len(results) == 0 {
		return 1
	}
	max := results[0].Score
	for _, r := range results[1:] {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		return 1
	}
	return max
}

func filterScored(results []ScoredFragment, filter *Filter) []ScoredFragment {
	if filter == nil {
		return results
	}
	out := make([]ScoredFragment, 0, len(results))
	for _, r := range results {
		if filter.Matches(r.Fragment) {
			out = append(out, r)
		}
	}
	return out
}

func (f *Fuser) safeSemanticSearch(ctx context.Context, q Query, topK int) (out []ScoredFragment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("semantic search panicked, treating as empty", "error", r)
			out = nil
		}
	}()
	return f.semantic.Search(ctx, q.Text, topK, q.SimilarityThreshold)
}

func (f *Fuser) safeLexicalSearch(ctx context.Context, q Query, topK int) (out []ScoredFragment) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("lexical search panicked, treating as empty", "error", r)
			out = nil
		}
	}()
	return f.lexical.Search(ctx, q.Text, topK)
}
