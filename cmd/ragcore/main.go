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

// Command ragcore is the retrieval core's CLI: serve, ingest, and
// evaluate, matching the kong-based subcommand layout the corpus uses
// for its own cmd/ entry points.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/ragcore/pkg/config"
	"github.com/kadirpekel/ragcore/pkg/embedder"
	"github.com/kadirpekel/ragcore/pkg/generator"
	"github.com/kadirpekel/ragcore/pkg/httpapi"
	"github.com/kadirpekel/ragcore/pkg/lexical"
	"github.com/kadirpekel/ragcore/pkg/logger"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/semantic"
	"github.com/kadirpekel/ragcore/pkg/tracing"
	"github.com/kadirpekel/ragcore/pkg/vector"
)

type serveCmd struct{}

type ingestCmd struct {
	Path string `arg:"" help:"Root directory to ingest."`
}

type evaluateCmd struct {
	Query string `arg:"" help:"Query to evaluate."`
}

var cli struct {
	Config string `help:"Path to config YAML." default:"config.yaml"`

	Serve    serveCmd    `cmd:"" help:"Run the HTTP server."`
	Ingest   ingestCmd   `cmd:"" help:"Ingest a directory into the vector and lexical stores."`
	Evaluate evaluateCmd `cmd:"" help:"Run one query through the evaluator and print the result."`
}

type runtime struct {
	cfg          *config.Config
	metrics      *ragcore.Metrics
	provider     vector.Provider
	lexicalStore interface {
		ragcore.LexicalSearcher
		ragcore.LexicalIndexer
		Close() error
	}
	orchestrator *ragcore.Orchestrator
	ingestor     *ragcore.Ingestor
	evaluator    *ragcore.Evaluator
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	metrics := ragcore.NewMetrics(prometheus.DefaultRegisterer)

	provider, err := vector.NewProvider(&cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("build vector provider: %w", err)
	}

	emb, err := embedder.NewOpenAIEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	var lex interface {
		ragcore.LexicalSearcher
		ragcore.LexicalIndexer
		Close() error
	}
	switch cfg.LexicalBackend {
	case "postgres":
		lex, err = lexical.NewPostgresSearcher(cfg.PostgresDSN)
	default:
		lex, err = lexical.NewBleveSearcher(cfg.BlevePath)
	}
	if err != nil {
		return nil, fmt.Errorf("build lexical backend: %w", err)
	}

	semSearcher := semantic.NewSearcher(provider, emb, cfg.Vector, cfg.Retry)
	fuser := ragcore.NewFuser(semSearcher, lex, cfg.Hybrid, metrics)

	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}
	orchestrator := ragcore.NewOrchestrator(fuser, gen, metrics)

	judge, err := generator.New(cfg.Judge)
	if err != nil {
		return nil, fmt.Errorf("build judge: %w", err)
	}
	evaluator := ragcore.NewEvaluator(orchestrator, judge, metrics)

	chunker := ragcore.NewChunker(cfg.Chunk)
	ingestor := ragcore.NewIngestor(chunkerAdapter{chunker}, semSearcher, lex, cfg.Ingestor, metrics)

	return &runtime{
		cfg:          cfg,
		metrics:      metrics,
		provider:     provider,
		lexicalStore: lex,
		orchestrator: orchestrator,
		ingestor:     ingestor,
		evaluator:    evaluator,
	}, nil
}

// chunkerAdapter narrows ragcore.Chunker to the ragcore.IndexChunker the
// Ingestor expects.
type chunkerAdapter struct {
	c ragcore.Chunker
}

func (a chunkerAdapter) Chunk(doc ragcore.Document) ([]ragcore.Fragment, error) {
	return ragcore.SafeChunk(a.c, doc), nil
}

func (c *serveCmd) Run(rt *runtime) error {
	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(rt.orchestrator, rt.ingestor, rt.evaluator))
	mux.Handle("/metrics", promhttp.Handler())

	slogAddr := rt.cfg.Server.Addr
	fmt.Fprintf(os.Stdout, "ragcore listening on %s\n", slogAddr)
	return http.ListenAndServe(slogAddr, mux)
}

func (c *ingestCmd) Run(rt *runtime) error {
	ctx := context.Background()
	count, err := rt.ingestor.Ingest(ctx, c.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "ingested %d fragments from %s\n", count, c.Path)
	return nil
}

func (c *evaluateCmd) Run(rt *runtime) error {
	ctx := context.Background()
	result := rt.evaluator.Evaluate(ctx, ragcore.Query{
		Text:                c.Query,
		TopK:                ragcore.DefaultTopK,
		SimilarityThreshold: ragcore.DefaultSimilarityThreshold,
	})
	fmt.Fprintf(os.Stdout, "relevance=%d faithfulness=%d latency_ms=%d\n\n%s\n",
		result.Relevance, result.Faithfulness, result.LatencyMs, result.Answer)
	return nil
}

func main() {
	ctx := kong.Parse(&cli, kong.Name("ragcore"), kong.Description("Retrieval core: chunk, index, search, and answer."))

	cfg, err := config.Load(cli.Config)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, os.Stderr, "simple")

	shutdownTracing, err := tracing.Init()
	if err != nil {
		ctx.FatalIfErrorf(err)
	}
	defer shutdownTracing(context.Background())

	rt, err := buildRuntime(cfg)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(rt)
	ctx.FatalIfErrorf(err)
}
