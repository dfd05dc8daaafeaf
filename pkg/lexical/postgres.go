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

package lexical

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/kadirpekel/ragcore/pkg/ragcore"
)

// tracer is shared with bleve.go within this package.

// PostgresSearcher implements ragcore.LexicalSearcher/LexicalIndexer
// against the `fragments` table's content_tsv column, matching the SQL
// layout:
//
//	content_tsv  TSVECTOR
//	CREATE INDEX ON fragments USING gin (content_tsv);
//	CREATE TRIGGER fragments_tsv_update BEFORE INSERT OR UPDATE ON fragments
//	  FOR EACH ROW EXECUTE FUNCTION tsvector_update_trigger(content_tsv, 'pg_catalog.english', content);
//
// The Go layer never tokenizes text itself; insert/update always goes
// through the trigger that populates content_tsv.
type PostgresSearcher struct {
	db *sql.DB
}

// NewPostgresSearcher opens a connection pool against dsn. The caller is
// responsible for having applied the fragments table DDL (see the
// PostgresSearcher doc comment above) before first use.
func NewPostgresSearcher(dsn string) (*PostgresSearcher, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSearcher{db: db}, nil
}

// Index implements ragcore.LexicalIndexer. content_tsv is left to the
// insert trigger; only id/source/content_hash/content/metadata are set
// here. ON CONFLICT matches the ingestion dedup key (source, content_hash).
func (p *PostgresSearcher) Index(ctx context.Context, fragments []ragcore.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fragments (id, source, content_hash, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, content_hash) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fragments {
		metaJSON, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		source := ragcore.DecodeMetadata(f.Metadata).Source
		hash := contentHashFor(f.Content)
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+":"+hash)).String()

		if _, err := stmt.ExecContext(ctx, id, source, hash, f.Content, metaJSON); err != nil {
			return fmt.Errorf("insert fragment: %w", err)
		}
	}

	return tx.Commit()
}

// Search implements ragcore.LexicalSearcher using plainto_tsquery against
// content_tsv, ranked by ts_rank. Postgres's ts_rank stands in for the
// BM25-like scorer LexicalSearcher expects; it's treated as a black box
// here rather than reimplemented.
func (p *PostgresSearcher) Search(ctx context.Context, queryText string, topK int) []ragcore.ScoredFragment {
	if topK <= 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "lexical.postgres_query")
	defer span.End()

	rows, err := p.db.QueryContext(ctx, `
		SELECT content, metadata, ts_rank(content_tsv, plainto_tsquery('english', $1)) AS score
		FROM fragments
		WHERE content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2`, queryText, topK)
	if err != nil {
		slog.Warn("postgres lexical search failed, returning empty", "error", err)
		return nil
	}
	defer rows.Close()

	var out []ragcore.ScoredFragment
	for rows.Next() {
		var content string
		var metaJSON []byte
		var score float64
		if err := rows.Scan(&content, &metaJSON, &score); err != nil {
			slog.Warn("postgres lexical search: scan failed", "error", err)
			continue
		}
		var meta map[string]any
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			meta = map[string]any{}
		}
		out = append(out, ragcore.ScoredFragment{
			Fragment: ragcore.Fragment{Content: content, Metadata: meta},
			Score:    score,
		})
	}
	return out
}

// Close closes the underlying connection pool.
func (p *PostgresSearcher) Close() error {
	return p.db.Close()
}

func contentHashFor(content string) string {
	return fmt.Sprintf("%x", simpleFNV(content))
}

// simpleFNV is a fast, non-cryptographic hash used only as half of the
// (source, content_hash) uniqueness key; collision-resistance is not
// required here because the full key also includes source.
func simpleFNV(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
