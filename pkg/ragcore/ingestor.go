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
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// supportedExtensions is the Ingestor's walk filter.
var supportedExtensions = map[string]string{
	".java":       "java",
	".md":         "md",
	".txt":        "txt",
	".pdf":        "pdf",
	".yaml":       "yaml",
	".yml":        "yml",
	".gradle":     "gradle",
	".properties": "properties",
}

// IngestorConfig sets how many fragments Ingest accumulates before each
// commit. The Watch field is not read by the Ingestor; watch mode runs
// only through an explicit call to Ingestor.Watch.
type IngestorConfig struct {
	BatchSize int
	Watch     bool
}

func (c *IngestorConfig) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// Ingestor walks a path, dispatches per file type to a loader and the
// Chunker, batches resulting Fragments, and commits them to the vector
// store and lexical index.
type Ingestor struct {
	chunker IndexChunker
	vector  VectorStore
	lexical LexicalIndexer
	cfg     IngestorConfig
	metrics *Metrics

	mu         sync.Mutex
	watchStop  chan struct{}
	watchGroup sync.WaitGroup
}

// IndexChunker is the subset of Chunker the Ingestor needs; named
// separately so tests can supply a fake without pulling in the full
// dispatch table.
type IndexChunker interface {
	Chunk(doc Document) ([]Fragment, error)
}

// NewIngestor builds an Ingestor over the given stores.
func NewIngestor(chunker IndexChunker, vector VectorStore, lexical LexicalIndexer, cfg IngestorConfig, metrics *Metrics) *Ingestor {
	cfg.SetDefaults()
	return &Ingestor{chunker: chunker, vector: vector, lexical: lexical, cfg: cfg, metrics: metrics}
}

// Ingest walks root, chunks every supported file, and commits the
// resulting fragments in batches. It returns the total fragment count
// stored. A single file's failure is logged and skipped; failure to read
// the walk root itself is surfaced to the caller.
func (in *Ingestor) Ingest(ctx context.Context, root string) (int, error) {
	if _, err := os.Stat(root); err != nil {
		return 0, fmt.Errorf("ingest root unreadable: %w", err)
	}

	var batch []Fragment
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.vector.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}
		if err := in.lexical.Index(ctx, batch); err != nil {
			return fmt.Errorf("lexical index: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		fileType, ok := supportedExtensions[ext]
		if !ok {
			return nil
		}

		frags, ferr := in.ingestFile(ctx, path, fileType)
		if ferr != nil {
			ie := newIngestError(path, "load", ferr)
			slog.Warn("skipping file", "error", ie)
			if in.metrics != nil {
				in.metrics.IngestFilesFailed.Inc()
			}
			return nil
		}

		batch = append(batch, frags...)
		if in.metrics != nil {
			in.metrics.IngestFragments.Add(float64(len(frags)))
		}
		if len(batch) >= in.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walk %s: %w", root, err)
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// ingestFile loads one file and runs it through the Chunker. PDFs expand
// to one Document per page before chunking; every other supported type
// is read whole.
func (in *Ingestor) ingestFile(ctx context.Context, path, fileType string) ([]Fragment, error) {
	if fileType == "pdf" {
		pages, err := LoadPDFPages(ctx, path)
		if err != nil {
			return nil, err
		}
		var frags []Fragment
		for _, doc := range pages {
			f, err := in.chunker.Chunk(doc)
			if err != nil {
				return nil, err
			}
			frags = append(frags, f...)
		}
		return frags, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Content: string(content),
		Metadata: map[string]any{
			MetaSource:   path,
			MetaFilename: filepath.Base(path),
			MetaFileType: fileType,
		},
	}
	return in.chunker.Chunk(doc)
}

// Watch starts an fsnotify watch on root and re-ingests any file that
// changes. It runs until the returned stop function is called or ctx is
// cancelled. Re-ingestion is safe to repeat: dedup by source+content_hash
// at the store layer makes it idempotent.
func (in *Ingestor) Watch(ctx context.Context, root string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	in.mu.Lock()
	in.watchStop = make(chan struct{})
	stopCh := in.watchStop
	in.mu.Unlock()

	in.watchGroup.Add(1)
	go func() {
		defer in.watchGroup.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				ext := strings.ToLower(filepath.Ext(event.Name))
				fileType, ok := supportedExtensions[ext]
				if !ok {
					continue
				}
				frags, ferr := in.ingestFile(ctx, event.Name, fileType)
				if ferr != nil {
					slog.Warn("watch re-ingest failed", "path", event.Name, "error", ferr)
					continue
				}
				if len(frags) == 0 {
					continue
				}
				if err := in.vector.Upsert(ctx, frags); err != nil {
					slog.Warn("watch vector upsert failed", "path", event.Name, "error", err)
					continue
				}
				if err := in.lexical.Index(ctx, frags); err != nil {
					slog.Warn("watch lexical index failed", "path", event.Name, "error", err)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watcher error", "error", werr)
			}
		}
	}()

	return func() {
		close(stopCh)
		in.watchGroup.Wait()
	}, nil
}
