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
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/kadirpekel/ragcore/pkg/tracing"
)

var evaluatorTracer = otel.Tracer(tracing.InstrumentationName)

const (
	faithfulnessContextLimit = 2000

	relevancePromptTemplate = "Rate, on a scale of 1 to 5, how directly the answer addresses the question. " +
		"Respond with a single digit and nothing else.\n\nQuestion: %s\nAnswer: %s"

	faithfulnessPromptTemplate = "Rate, on a scale of 1 to 5, how well the answer is supported by the context. " +
		"Respond with a single digit and nothing else.\n\nContext: %s\nAnswer: %s"
)

// Evaluator runs a query through the Orchestrator and scores the result
// via two judge calls to the generator: one for relevance, one for
// faithfulness to the retrieved context.
type Evaluator struct {
	orchestrator *Orchestrator
	judge        Generator
	metrics      *Metrics
}

// NewEvaluator builds an Evaluator. judge may be the same Generator used
// by the Orchestrator, or a distinct, cheaper judge model.
func NewEvaluator(orchestrator *Orchestrator, judge Generator, metrics *Metrics) *Evaluator {
	return &Evaluator{orchestrator: orchestrator, judge: judge, metrics: metrics}
}

// Evaluate runs q through the Orchestrator, then scores relevance and
// faithfulness.
func (e *Evaluator) Evaluate(ctx context.Context, q Query) EvaluationResult {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.EvaluationRequests.Inc()
	}

	resp, contextStr := e.orchestrator.answerWithContext(ctx, q)

	relevance := e.score(ctx, fmt.Sprintf(relevancePromptTemplate, q.Text, resp.Answer))

	faithfulness := 0
	if contextStr != "" {
		truncated := contextStr
		if len(truncated) > faithfulnessContextLimit {
			truncated = truncated[:faithfulnessContextLimit]
		}
		faithfulness = e.score(ctx, fmt.Sprintf(faithfulnessPromptTemplate, truncated, resp.Answer))
	}

	result := EvaluationResult{
		Query:        q.Text,
		Answer:       resp.Answer,
		Relevance:    relevance,
		Faithfulness: faithfulness,
		Summary:      fmt.Sprintf("relevance=%d faithfulness=%d", relevance, faithfulness),
		LatencyMs:    time.Since(start).Milliseconds(),
	}

	if e.metrics != nil {
		e.metrics.EvaluationLatency.Observe(time.Since(start).Seconds())
	}
	return result
}

// score issues one judge call and parses its first digit. A judge
// failure or a response with no digit scores 0.
func (e *Evaluator) score(ctx context.Context, prompt string) int {
	ctx, span := evaluatorTracer.Start(ctx, "evaluator.judge_call")
	defer span.End()

	out, err := e.judge.Generate(ctx, "You are an evaluation judge. Follow the instructions exactly.", prompt)
	if err != nil {
		return 0
	}
	return firstDigit(out)
}

func firstDigit(s string) int {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return int(r - '0')
		}
	}
	return 0
}

// EvaluateBatch runs Evaluate over each query concurrently, bounded by
// concurrency, and returns results in input order.
func (e *Evaluator) EvaluateBatch(ctx context.Context, queries []Query, concurrency int) []EvaluationResult {
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]EvaluationResult, len(queries))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q Query) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.Evaluate(ctx, q)
		}(i, q)
	}
	wg.Wait()

	return results
}
