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

// Package httpapi exposes the retrieval core over HTTP: chat, ingest,
// and evaluation endpoints on top of a chi router, with middleware for
// request IDs, panic recovery, and structured access logging.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/ragcore/pkg/ragcore"
)

// Server wires the Orchestrator, Ingestor, and Evaluator onto a chi router.
type Server struct {
	orchestrator *ragcore.Orchestrator
	ingestor     *ragcore.Ingestor
	evaluator    *ragcore.Evaluator
	router       chi.Router
}

// NewServer builds the chat/ingest/evaluation router. evaluator may be
// nil, in which case the evaluation endpoint responds 503.
func NewServer(orchestrator *ragcore.Orchestrator, ingestor *ragcore.Ingestor, evaluator *ragcore.Evaluator) *Server {
	s := &Server{orchestrator: orchestrator, ingestor: ingestor, evaluator: evaluator}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/ingest", s.handleIngest)
	})
	r.Post("/api/evaluation/run", s.handleEvaluate)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type chatRequest struct {
	Query               string   `json:"query"`
	TopK                int      `json:"topK"`
	SimilarityThreshold float64  `json:"similarityThreshold"`
	Filters             *filters `json:"filters"`
}

type filters struct {
	FileType   string `json:"fileType"`
	SourcePath string `json:"sourcePath"`
	ClassName  string `json:"className"`
	MethodName string `json:"methodName"`
	Filename   string `json:"filename"`
}

type chatResponse struct {
	Answer   string                    `json:"answer"`
	Sources  []ragcore.SourceDocument  `json:"sources"`
	Metadata ragcore.ResponseMetadata  `json:"metadata"`
}

// handleChat implements POST /api/v1/chat: blank query is a 400, any
// uncaught failure in the pipeline is a 500 — the Orchestrator itself
// degrades gracefully for retrieval/generation failures and never returns
// an error here.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be blank")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = ragcore.DefaultTopK
	}
	threshold := req.SimilarityThreshold
	if threshold <= 0 {
		threshold = ragcore.DefaultSimilarityThreshold
	}

	var filter *ragcore.Filter
	if req.Filters != nil {
		filter = &ragcore.Filter{
			FileType:   req.Filters.FileType,
			SourcePath: req.Filters.SourcePath,
			ClassName:  req.Filters.ClassName,
			MethodName: req.Filters.MethodName,
			Filename:   req.Filters.Filename,
		}
	}

	resp := s.orchestrator.Answer(r.Context(), ragcore.Query{
		Text:                req.Query,
		TopK:                topK,
		SimilarityThreshold: threshold,
		Filter:              filter,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:   resp.Answer,
		Sources:  resp.Sources,
		Metadata: resp.ResponseMeta,
	})
}

// handleIngest implements POST /api/v1/ingest?path=<abs>: missing path
// is a 400.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	count, err := s.ingestor.Ingest(r.Context(), path)
	if err != nil {
		slog.Error("ingest failed", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"fragmentsIndexed": count})
}

type evaluateRequest struct {
	Query string `json:"query"`
}

// handleEvaluate implements POST /api/evaluation/run.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.evaluator == nil {
		writeError(w, http.StatusServiceUnavailable, "evaluation is not configured")
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be blank")
		return
	}

	result := s.evaluator.Evaluate(r.Context(), ragcore.Query{
		Text:                req.Query,
		TopK:                ragcore.DefaultTopK,
		SimilarityThreshold: ragcore.DefaultSimilarityThreshold,
	})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
