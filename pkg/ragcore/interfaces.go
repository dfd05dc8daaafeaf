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

import "context"

// LexicalSearcher runs a BM25-like query against a full-text index.
// Implementations (pkg/lexical) never return an error to the caller: a
// backend failure is logged and surfaced as an empty slice.
type LexicalSearcher interface {
	Search(ctx context.Context, queryText string, topK int) []ScoredFragment
}

// SemanticSearcher runs an approximate-nearest-neighbor query against the
// vector index, filtering to results at or above threshold. Like
// LexicalSearcher, backend failures degrade to an empty slice.
type SemanticSearcher interface {
	Search(ctx context.Context, queryText string, topK int, threshold float64) []ScoredFragment
}

// Generator is the downstream text-generation model, invoked through
// this narrow interface from the Orchestrator and Evaluator.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error)
	Label() string
}

// VectorStore is the commit-side counterpart to SemanticSearcher: it embeds
// and persists fragments produced by the Chunker during ingestion. Kept
// separate from SemanticSearcher because ingestion and retrieval are
// different call paths with different concurrency shapes.
type VectorStore interface {
	Upsert(ctx context.Context, fragments []Fragment) error
}

// LexicalIndexer is the commit-side counterpart to LexicalSearcher.
type LexicalIndexer interface {
	Index(ctx context.Context, fragments []Fragment) error
}
