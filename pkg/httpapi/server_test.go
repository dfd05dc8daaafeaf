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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragcore/pkg/ragcore"
)

type stubSemanticSearcher struct {
	results []ragcore.ScoredFragment
}

func (s stubSemanticSearcher) Search(ctx context.Context, queryText string, topK int, threshold float64) []ragcore.ScoredFragment {
	return s.results
}

type stubLexicalSearcher struct{}

func (stubLexicalSearcher) Search(ctx context.Context, queryText string, topK int) []ragcore.ScoredFragment {
	return nil
}

type stubGenerator struct {
	answer string
}

func (g stubGenerator) Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	return g.answer, nil
}
func (g stubGenerator) Label() string { return "stub-model" }

type stubChunker struct {
	fragments []ragcore.Fragment
}

func (c stubChunker) Chunk(doc ragcore.Document) ([]ragcore.Fragment, error) {
	return c.fragments, nil
}

type stubVectorStore struct{ upserted int }

func (s *stubVectorStore) Upsert(ctx context.Context, fragments []ragcore.Fragment) error {
	s.upserted += len(fragments)
	return nil
}

type stubLexicalIndexer struct{ indexed int }

func (s *stubLexicalIndexer) Index(ctx context.Context, fragments []ragcore.Fragment) error {
	s.indexed += len(fragments)
	return nil
}

func newTestServer(t *testing.T, withEvaluator bool) *Server {
	t.Helper()

	sem := stubSemanticSearcher{results: []ragcore.ScoredFragment{
		{Fragment: ragcore.Fragment{Content: "hello", Metadata: map[string]any{ragcore.MetaSource: "a.java"}}, Score: 0.9},
	}}
	fuser := ragcore.NewFuser(sem, stubLexicalSearcher{}, ragcore.HybridConfig{Alpha: 1, RetrievalMultiplier: 2}, nil)
	gen := stubGenerator{answer: "the answer"}
	orch := ragcore.NewOrchestrator(fuser, gen, nil)

	ingestor := ragcore.NewIngestor(
		stubChunker{fragments: []ragcore.Fragment{{Content: "chunk", Metadata: map[string]any{ragcore.MetaSource: "x"}}}},
		&stubVectorStore{}, &stubLexicalIndexer{}, ragcore.IngestorConfig{}, nil,
	)

	var evaluator *ragcore.Evaluator
	if withEvaluator {
		evaluator = ragcore.NewEvaluator(orch, gen, nil)
	}

	return NewServer(orch, ingestor, evaluator)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_ReturnsAnswerWithSources(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{"query": "what does this do"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "the answer", resp.Answer)
	require.Len(t, resp.Sources, 1)
}

func TestHandleChat_BlankQueryIsBadRequest(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_InvalidJSONIsBadRequest(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_MissingPathIsBadRequest(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_WalksGivenPath(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest?path="+t.TempDir(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleEvaluate_ServiceUnavailableWithoutEvaluator(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doJSON(t, srv, http.MethodPost, "/api/evaluation/run", map[string]any{"query": "q"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleEvaluate_RunsWhenEvaluatorConfigured(t *testing.T) {
	srv := newTestServer(t, true)
	rec := doJSON(t, srv, http.MethodPost, "/api/evaluation/run", map[string]any{"query": "what does this do"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var result ragcore.EvaluationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "what does this do", result.Query)
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
