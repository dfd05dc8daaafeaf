// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
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
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
)

// persistDebounce bounds how often a dirty ChromemProvider writes its
// database to disk. The Ingestor commits fragments one at a time through
// the Semantic Searcher's Upsert loop (see pkg/semantic), so persisting
// synchronously on every call would mean one full gob export per fragment
// during a large ingest. Batching writes behind a short timer instead
// keeps ingest throughput from being dominated by disk I/O.
const persistDebounce = 2 * time.Second

// ChromemProvider implements Provider on top of chromem-go, an embedded,
// pure-Go vector store with no external services to run. It trades away
// distributed search and unbounded scale (everything lives in one
// process's memory) for a zero-dependency default any caller can start
// with before standing up Qdrant.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string
	compress    bool

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	dirty       bool
	persistTime *time.Timer

	// embeddingFunc is never actually invoked: every vector this provider
	// stores arrives pre-computed from pkg/embedder, but chromem-go's API
	// requires a collection to be constructed with one.
	embeddingFunc chromem.EmbeddingFunc
}

// ChromemConfig configures the chromem provider.
type ChromemConfig struct {
	// PersistPath, if set, is a directory chromem-go's database is
	// loaded from and periodically written back to. Empty means
	// in-memory only.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress gzip-compresses the persisted database file.
	Compress bool `yaml:"compress,omitempty"`
}

// NewChromemProvider opens (or creates) a chromem-go database per cfg.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	db, err := openChromemDB(cfg)
	if err != nil {
		return nil, err
	}

	noPrecomputedVector := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem provider: embedding function invoked; vectors must be pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: noPrecomputedVector,
	}, nil
}

func openChromemDB(cfg ChromemConfig) (*chromem.DB, error) {
	if cfg.PersistPath == "" {
		return chromem.NewDB(), nil
	}

	if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
		return nil, chromemErr("create persist directory", cfg.PersistPath, err)
	}

	dbPath := cfg.PersistPath + "/vectors.gob"
	if cfg.Compress {
		dbPath += ".gz"
	}

	if _, statErr := os.Stat(dbPath); statErr != nil {
		slog.Info("vector store: starting new chromem database", "path", dbPath)
		return chromem.NewDB(), nil
	}

	db, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
	if err != nil {
		slog.Warn("vector store: failed to load existing chromem database, starting fresh", "path", dbPath, "error", err)
		return chromem.NewDB(), nil
	}
	slog.Info("vector store: loaded chromem database", "path", dbPath)
	return db, nil
}

func chromemErr(op, collection string, err error) error {
	return fmt.Errorf("chromem provider: %s (collection %q): %w", op, collection, err)
}

// getCollection gets or lazily creates the named collection.
func (p *ChromemProvider) getCollection(collection string) (*chromem.Collection, error) {
	p.mu.RLock()
	col, ok := p.collections[collection]
	p.mu.RUnlock()
	if ok {
		return col, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if col, ok := p.collections[collection]; ok {
		return col, nil
	}

	col, err := p.db.GetOrCreateCollection(collection, nil, p.embeddingFunc)
	if err != nil {
		return nil, chromemErr("get or create collection", collection, err)
	}
	p.collections[collection] = col
	return col, nil
}

// markDirty schedules a debounced persist. Safe to call from any
// goroutine; concurrent callers coalesce onto a single pending timer.
func (p *ChromemProvider) markDirty() {
	if p.persistPath == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
	if p.persistTime != nil {
		return
	}
	p.persistTime = time.AfterFunc(persistDebounce, func() {
		if err := p.flush(); err != nil {
			slog.Warn("vector store: deferred persist failed", "error", err)
		}
	})
}

// flush writes the database to disk if dirty, and clears the pending timer.
func (p *ChromemProvider) flush() error {
	p.mu.Lock()
	dirty := p.dirty
	p.dirty = false
	p.persistTime = nil
	p.mu.Unlock()

	if !dirty || p.persistPath == "" {
		return nil
	}

	dbPath := p.persistPath + "/vectors.gob"
	if p.compress {
		dbPath += ".gz"
	}
	//nolint:staticcheck // chromem-go's non-deprecated export path requires API changes out of scope here
	if err := p.db.Export(dbPath, p.compress, ""); err != nil {
		return fmt.Errorf("persist chromem database: %w", err)
	}
	return nil
}

// Upsert implements Provider.
func (p *ChromemProvider) Upsert(ctx context.Context, collection string, id string, vec []float32, metadata map[string]any) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	content, _ := metadata["content"].(string)
	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  metadataToStrings(metadata),
		Embedding: vec,
	}

	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return chromemErr("upsert document "+id, collection, err)
	}
	p.markDirty()
	return nil
}

// Search implements Provider.
func (p *ChromemProvider) Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vec, topK, nil)
}

// SearchWithFilter implements Provider.
func (p *ChromemProvider) SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]Result, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	var where map[string]string
	if len(filter) > 0 {
		where = metadataToStrings(filter)
	}

	matches, err := col.QueryEmbedding(ctx, vec, topK, where, nil)
	if err != nil {
		return nil, chromemErr("query embedding", collection, err)
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		metadata := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		out = append(out, Result{
			ID:       m.ID,
			Score:    m.Similarity,
			Content:  m.Content,
			Metadata: metadata,
		})
	}
	return out, nil
}

// Delete implements Provider.
func (p *ChromemProvider) Delete(ctx context.Context, collection string, id string) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return chromemErr("delete document "+id, collection, err)
	}
	p.markDirty()
	return nil
}

// DeleteByFilter implements Provider.
func (p *ChromemProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, metadataToStrings(filter), nil); err != nil {
		return chromemErr("delete by filter", collection, err)
	}
	p.markDirty()
	return nil
}

// CreateCollection implements Provider. chromem-go creates collections on
// first reference, so this just warms the cache.
func (p *ChromemProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	_, err := p.getCollection(collection)
	return err
}

// DeleteCollection implements Provider.
func (p *ChromemProvider) DeleteCollection(ctx context.Context, collection string) error {
	if err := p.db.DeleteCollection(collection); err != nil {
		return chromemErr("delete collection", collection, err)
	}

	p.mu.Lock()
	delete(p.collections, collection)
	p.mu.Unlock()
	p.markDirty()
	return nil
}

// Name implements Provider.
func (p *ChromemProvider) Name() string { return "chromem" }

// Close flushes any pending writes and releases resources. Unlike the
// per-call debounced persist, Close always writes synchronously so no
// mutation is lost on shutdown.
func (p *ChromemProvider) Close() error {
	p.mu.Lock()
	if p.persistTime != nil {
		p.persistTime.Stop()
	}
	p.dirty = p.dirty || p.persistTime != nil
	p.mu.Unlock()
	return p.flush()
}

// metadataToStrings renders a metadata/filter map into chromem-go's
// string-valued wire format, shared by every call site that needs it
// (upsert metadata, query filters, delete filters).
func metadataToStrings(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

var _ Provider = (*ChromemProvider)(nil)
