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
	"fmt"
	"log/slog"
	"maps"
)

// ChunkConfig holds the per-chunker token budgets.
type ChunkConfig struct {
	JavaMaxTokens     int `yaml:"java_max_tokens"`
	MarkdownMaxTokens int `yaml:"markdown_max_tokens"`
}

// SetDefaults applies the documented defaults.
func (c *ChunkConfig) SetDefaults() {
	if c.JavaMaxTokens <= 0 {
		c.JavaMaxTokens = 1500
	}
	if c.MarkdownMaxTokens <= 0 {
		c.MarkdownMaxTokens = 1000
	}
}

// Validate checks the configuration.
func (c *ChunkConfig) Validate() error {
	if c.JavaMaxTokens <= 0 {
		return fmt.Errorf("chunk.java.max_tokens must be positive")
	}
	if c.MarkdownMaxTokens <= 0 {
		return fmt.Errorf("chunk.markdown.max_tokens must be positive")
	}
	return nil
}

// Chunker splits a loaded Document into an ordered sequence of Fragments.
type Chunker interface {
	Chunk(doc Document) ([]Fragment, error)
}

// chunkerFunc adapts a plain function to the Chunker interface.
type chunkerFunc func(doc Document) ([]Fragment, error)

func (f chunkerFunc) Chunk(doc Document) ([]Fragment, error) { return f(doc) }

// NewChunker dispatches on the document's file_type to a strategy-keyed
// chunking function.
func NewChunker(cfg ChunkConfig) Chunker {
	return chunkerFunc(func(doc Document) ([]Fragment, error) {
		fileType, _ := doc.Metadata[MetaFileType].(string)
		switch fileType {
		case "java":
			return chunkJava(doc, cfg.JavaMaxTokens)
		case "md":
			return chunkMarkdown(doc, cfg.MarkdownMaxTokens)
		case "pdf":
			return chunkPDFPages(doc)
		default:
			return chunkGeneric(doc, cfg.JavaMaxTokens)
		}
	})
}

// SafeChunk wraps a Chunker so that any per-file failure is logged and
// skipped rather than propagated, matching the Ingestor's
// partial-failure policy.
func SafeChunk(c Chunker, doc Document) []Fragment {
	frags, err := c.Chunk(doc)
	if err != nil {
		source, _ := doc.Metadata[MetaSource].(string)
		slog.Warn("chunking failed, skipping file", "source", source, "error", err)
		return nil
	}
	return frags
}

// baseMetadata returns a copy of the document's metadata seeded with
// chunk-level fields, so each chunker starts from the loader's identity
// metadata (source, filename, file_type) without mutating the shared map.
func baseMetadata(doc Document, chunkType string) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+4)
	maps.Copy(meta, doc.Metadata)
	meta[MetaChunkType] = chunkType
	return meta
}

// finalizeIndices stamps chunk_index/total_chunks across a completed
// fragment slice for one document, maintaining the invariant
// chunk_index ∈ [0, total_chunks).
func finalizeIndices(frags []Fragment) []Fragment {
	total := len(frags)
	for i := range frags {
		frags[i].Metadata[MetaChunkIndex] = i
		frags[i].Metadata[MetaTotalChunks] = total
	}
	return frags
}
