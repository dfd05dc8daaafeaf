// Package ragcore provides the retrieval core for a repository
// question-answering system: code-aware chunking, hybrid (semantic +
// lexical) search, PII redaction, and LLM-as-judge evaluation.
//
// # Architecture
//
// A query flows: redact(query) → Hybrid Fuser → {Semantic Searcher,
// Lexical Searcher} → filter + fuse → context assembly → generator →
// citation-bound response. Ingestion flows: walk → load → Chunker →
// vector store + lexical index.
//
// The embedding model, the generator model, the ANN engine internals,
// the persistent full-text index, and the HTTP/UI surfaces are treated
// as external collaborators, invoked through the narrow interfaces in
// pkg/ragcore/interfaces.go.
//
// # Using as a Go Library
//
//	import "github.com/kadirpekel/ragcore/pkg/ragcore"
//
// # License
//
// Apache-2.0 / AGPL-3.0, file by file — see individual file headers.
package ragcore
