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

// Package lexical implements the Lexical Searcher: BM25-like full-text
// search, with two interchangeable backends behind the same
// ragcore.LexicalSearcher/LexicalIndexer contract — an embedded bleve
// index (the CLI/dev default) and Postgres tsvector (the production path).
package lexical

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"go.opentelemetry.io/otel"

	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/tracing"
)

var tracer = otel.Tracer(tracing.InstrumentationName)

// bleveDoc is the flattened shape indexed for each fragment. bleve needs
// concrete fields to apply per-field analyzers; structural metadata is
// carried alongside content so a hit can be rehydrated into a Fragment
// without a second lookup.
type bleveDoc struct {
	Content     string
	Source      string
	Filename    string
	FileType    string
	ClassName   string
	MethodName  string
	ChunkType   string
	StartLine   int
	EndLine     int
	ChunkIndex  int
	TotalChunks int
}

// BleveSearcher implements ragcore.LexicalSearcher and
// ragcore.LexicalIndexer over an embedded bleve.Index, with a custom
// mapping for hybrid search: a standard English analyzer on content, and
// keyword fields for exact-match metadata.
type BleveSearcher struct {
	index bleve.Index
}

// NewBleveSearcher opens the index at path, creating it with the mapping
// above if it doesn't already exist.
func NewBleveSearcher(path string) (*BleveSearcher, error) {
	if index, err := bleve.Open(path); err == nil {
		return &BleveSearcher{index: index}, nil
	}

	index, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveSearcher{index: index}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true

	number := bleve.NewNumericFieldMapping()
	number.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("Content", content)
	doc.AddFieldMappingsAt("Source", keyword)
	doc.AddFieldMappingsAt("Filename", keyword)
	doc.AddFieldMappingsAt("FileType", keyword)
	doc.AddFieldMappingsAt("ClassName", keyword)
	doc.AddFieldMappingsAt("MethodName", keyword)
	doc.AddFieldMappingsAt("ChunkType", keyword)
	doc.AddFieldMappingsAt("StartLine", number)
	doc.AddFieldMappingsAt("EndLine", number)
	doc.AddFieldMappingsAt("ChunkIndex", number)
	doc.AddFieldMappingsAt("TotalChunks", number)

	idx := bleve.NewIndexMapping()
	idx.DefaultMapping = doc
	return idx
}

// Index implements ragcore.LexicalIndexer. Fragments are indexed under
// source + "#" + chunk_index (see fragmentID), so re-ingesting a file
// overwrites its fragments at the same positions rather than duplicating
// them.
func (b *BleveSearcher) Index(ctx context.Context, fragments []ragcore.Fragment) error {
	batch := b.index.NewBatch()
	for _, f := range fragments {
		doc := fragmentToBleveDoc(f)
		if err := batch.Index(fragmentID(f), doc); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Search implements ragcore.LexicalSearcher. Scores are the raw bleve
// BM25-like scores, not normalized; normalization is the Hybrid Fuser's
// job.
func (b *BleveSearcher) Search(ctx context.Context, queryText string, topK int) []ragcore.ScoredFragment {
	if topK <= 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "lexical.bleve_query")
	defer span.End()

	q := bleve.NewMatchQuery(queryText)
	q.FieldVal = "Content"
	req := bleve.NewSearchRequestOptions(q, topK, 0, false)
	req.Fields = []string{"*"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		slog.Warn("lexical search failed, returning empty", "error", err)
		return nil
	}

	out := make([]ragcore.ScoredFragment, 0, len(result.Hits))
	for _, hit := range result.Hits {
		frag := bleveHitToFragment(hit)
		out = append(out, ragcore.ScoredFragment{Fragment: frag, Score: hit.Score})
	}
	return out
}

// Close releases the underlying index.
func (b *BleveSearcher) Close() error {
	return b.index.Close()
}

func fragmentID(f ragcore.Fragment) string {
	source, _ := f.Metadata[ragcore.MetaSource].(string)
	return source + "#" + fmt.Sprint(f.Metadata[ragcore.MetaChunkIndex])
}

func fragmentToBleveDoc(f ragcore.Fragment) bleveDoc {
	m := ragcore.DecodeMetadata(f.Metadata)
	return bleveDoc{
		Content:     f.Content,
		Source:      m.Source,
		Filename:    m.Filename,
		FileType:    m.FileType,
		ClassName:   m.ClassName,
		MethodName:  m.MethodName,
		ChunkType:   m.ChunkType,
		StartLine:   m.StartLine,
		EndLine:     m.EndLine,
		ChunkIndex:  m.ChunkIndex,
		TotalChunks: m.TotalChunks,
	}
}

func bleveHitToFragment(hit *search.DocumentMatch) ragcore.Fragment {
	meta := map[string]any{}
	get := func(k string) string {
		if v, ok := hit.Fields[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(k string) int {
		if v, ok := hit.Fields[k]; ok {
			if n, ok := v.(float64); ok {
				return int(n)
			}
		}
		return 0
	}

	meta[ragcore.MetaSource] = get("Source")
	meta[ragcore.MetaFilename] = get("Filename")
	meta[ragcore.MetaFileType] = get("FileType")
	meta[ragcore.MetaClassName] = get("ClassName")
	meta[ragcore.MetaMethodName] = get("MethodName")
	meta[ragcore.MetaChunkType] = get("ChunkType")
	meta[ragcore.MetaStartLine] = getInt("StartLine")
	meta[ragcore.MetaEndLine] = getInt("EndLine")
	meta[ragcore.MetaChunkIndex] = getInt("ChunkIndex")
	meta[ragcore.MetaTotalChunks] = getInt("TotalChunks")

	return ragcore.Fragment{Content: get("Content"), Metadata: meta}
}

