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
	"time"
)

// SearchError wraps a Lexical or Semantic Searcher backend failure.
// These never propagate past the Searcher boundary as errors; the
// Searcher logs them and returns an empty result. SearchError exists so
// that log line and any telemetry carry component/operation/query context.
type SearchError struct {
	Component string // "lexical" or "semantic"
	Operation string
	Query     string
	Err       error
	Timestamp time.Time
}

func (e *SearchError) Error() string {
	q := e.Query
	if len(q) > 50 {
		q = q[:50] + "..."
	}
	return fmt.Sprintf("%s search %s failed for query %q: %v", e.Component, e.Operation, q, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

func newSearchError(component, operation, query string, err error) *SearchError {
	return &SearchError{
		Component: component,
		Operation: operation,
		Query:     query,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// IngestError wraps a single file's ingestion failure. The Ingestor logs
// and skips the file; it never aborts the run because of one.
type IngestError struct {
	Path      string
	Operation string
	Err       error
	Timestamp time.Time
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s failed for %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

func newIngestError(path, operation string, err error) *IngestError {
	return &IngestError{Path: path, Operation: operation, Err: err, Timestamp: time.Now()}
}

// RedactError wraps a pattern-engine failure inside the PII Redactor.
// This is treated as "no PII found"; the original text passes through
// unmodified and the caller never sees this error directly.
type RedactError struct {
	Category string
	Err      error
}

func (e *RedactError) Error() string {
	return fmt.Sprintf("redact category %s failed: %v", e.Category, e.Err)
}

func (e *RedactError) Unwrap() error { return e.Err }
