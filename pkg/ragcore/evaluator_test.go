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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequencedGenerator returns successive responses from a fixed list on each
// Generate call, regardless of caller, and fails closed once exhausted.
type sequencedGenerator struct {
	label     string
	responses []string
	calls     int32
	err       error
}

func (g *sequencedGenerator) Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	i := atomic.AddInt32(&g.calls, 1) - 1
	if int(i) >= len(g.responses) {
		return "", errors.New("sequencedGenerator: out of scripted responses")
	}
	return g.responses[i], nil
}

func (g *sequencedGenerator) Label() string { return g.label }

func newTestOrchestrator(t *testing.T, gen Generator, sem SemanticSearcher, kw LexicalSearcher) *Orchestrator {
	t.Helper()
	fuser := NewFuser(sem, kw, HybridConfig{Alpha: 0.7, RetrievalMultiplier: 2}, nil)
	return NewOrchestrator(fuser, gen, nil)
}

func TestEvaluator_ScoresRelevanceAndFaithfulnessFromJudgeDigits(t *testing.T) {
	answerGen := &sequencedGenerator{label: "answerer", responses: []string{"Calculator supports add and subtract."}}
	judge := &sequencedGenerator{label: "judge", responses: []string{"5", "4"}}

	sem := fakeSemanticSearcher{results: []ScoredFragment{{Fragment: fragWithSource("Calculator.java"), Score: 0.9}}}
	orch := newTestOrchestrator(t, answerGen, sem, fakeLexicalSearcher{})
	eval := NewEvaluator(orch, judge, nil)

	result := eval.Evaluate(context.Background(), Query{Text: "What does Calculator do?", TopK: 5, SimilarityThreshold: 0.5})

	assert.Equal(t, 5, result.Relevance)
	assert.Equal(t, 4, result.Faithfulness)
	assert.Equal(t, "Calculator supports add and subtract.", result.Answer)
}

func TestEvaluator_NoFaithfulnessScoreWhenContextIsEmpty(t *testing.T) {
	answerGen := &sequencedGenerator{label: "answerer"}
	judge := &sequencedGenerator{label: "judge", responses: []string{"2"}}

	// No retrieval backends produce anything: the orchestrator degrades
	// before calling the generator, so contextStr is "" and only the
	// relevance judge call is made.
	orch := newTestOrchestrator(t, answerGen, fakeSemanticSearcher{}, fakeLexicalSearcher{})
	eval := NewEvaluator(orch, judge, nil)

	result := eval.Evaluate(context.Background(), Query{Text: "anything", TopK: 5, SimilarityThreshold: 0.5})

	assert.Equal(t, 2, result.Relevance)
	assert.Equal(t, 0, result.Faithfulness)
}

func TestEvaluator_JudgeFailureScoresZero(t *testing.T) {
	answerGen := &sequencedGenerator{label: "answerer", responses: []string{"an answer"}}
	judge := &sequencedGenerator{label: "judge", err: errors.New("judge unavailable")}

	sem := fakeSemanticSearcher{results: []ScoredFragment{{Fragment: fragWithSource("a.java"), Score: 0.9}}}
	orch := newTestOrchestrator(t, answerGen, sem, fakeLexicalSearcher{})
	eval := NewEvaluator(orch, judge, nil)

	result := eval.Evaluate(context.Background(), Query{Text: "q", TopK: 5, SimilarityThreshold: 0.5})
	assert.Equal(t, 0, result.Relevance)
	assert.Equal(t, 0, result.Faithfulness)
}

func TestEvaluator_EvaluateBatchPreservesInputOrder(t *testing.T) {
	answerGen := &sequencedGenerator{label: "answerer", responses: []string{"a1", "a2", "a3"}}
	judge := &sequencedGenerator{label: "judge", responses: []string{"1", "1", "2", "2", "3", "3"}}

	sem := fakeSemanticSearcher{results: []ScoredFragment{{Fragment: fragWithSource("x.java"), Score: 0.9}}}
	orch := newTestOrchestrator(t, answerGen, sem, fakeLexicalSearcher{})
	eval := NewEvaluator(orch, judge, nil)

	queries := []Query{
		{Text: "q1", TopK: 5, SimilarityThreshold: 0.5},
		{Text: "q2", TopK: 5, SimilarityThreshold: 0.5},
		{Text: "q3", TopK: 5, SimilarityThreshold: 0.5},
	}
	results := eval.EvaluateBatch(context.Background(), queries, 2)

	require.Len(t, results, 3)
	assert.Equal(t, "q1", results[0].Query)
	assert.Equal(t, "q2", results[1].Query)
	assert.Equal(t, "q3", results[2].Query)
}

func TestFirstDigit(t *testing.T) {
	assert.Equal(t, 5, firstDigit("5"))
	assert.Equal(t, 4, firstDigit("Score: 4 out of 5"))
	assert.Equal(t, 0, firstDigit("no digits here"))
	assert.Equal(t, 0, firstDigit(""))
}
