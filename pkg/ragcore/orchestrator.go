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
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/kadirpekel/ragcore/pkg/tracing"
)

var orchestratorTracer = otel.Tracer(tracing.InstrumentationName)

const (
	systemInstruction = "You are a grounded assistant answering questions about this repository " +
		"using only the provided context. Cite sources as [1], [2], etc. " +
		"If the context is insufficient to answer confidently, say so explicitly."

	contextDelimiter = "\n---\n"

	canonicalNoResultsAnswer = "I could not find any relevant information in the repository to answer this question."
	canonicalErrorAnswer     = "I was unable to generate an answer due to an internal error. Please try again."

	sourcePreviewLen = 200
)

// Orchestrator composes redaction, hybrid retrieval, context assembly,
// the generator call, and citation binding into a single request/response
// cycle.
type Orchestrator struct {
	redactor Redactor
	fuser    *Fuser
	gen      Generator
	metrics  *Metrics
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(fuser *Fuser, gen Generator, metrics *Metrics) *Orchestrator {
	return &Orchestrator{fuser: fuser, gen: gen, metrics: metrics}
}

// Answer runs the full retrieval-and-generation pipeline for one request.
func (o *Orchestrator) Answer(ctx context.Context, q Query) Response {
	resp, _ := o.answerWithContext(ctx, q)
	return resp
}

// answerWithContext is Answer plus the assembled context string, used by
// the Evaluator to judge faithfulness without re-running retrieval.
func (o *Orchestrator) answerWithContext(ctx context.Context, q Query) (Response, string) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.OrchestratorRequests.Inc()
	}

	masked := o.redactor.Mask(q.Text)

	result := o.fuser.Search(ctx, Query{
		Text:                masked.MaskedText,
		TopK:                q.TopK,
		SimilarityThreshold: q.SimilarityThreshold,
		Filter:              q.Filter,
	})

	if len(result.Fragments) == 0 {
		if o.metrics != nil {
			o.metrics.OrchestratorDegraded.Inc()
		}
		return Response{
			Answer: canonicalNoResultsAnswer,
			ResponseMeta: ResponseMetadata{
				DocumentsRetrieved: 0,
				ProcessingTimeMs:   time.Since(start).Milliseconds(),
				ModelLabel:         o.generatorLabel(),
			},
		}, ""
	}

	contextStr := assembleContext(result.Fragments)

	genCtx, genSpan := orchestratorTracer.Start(ctx, "orchestrator.generate")
	answer, err := o.gen.Generate(genCtx, systemInstruction, contextStr+"\n\nQuestion: "+q.Text)
	genSpan.End()
	if err != nil {
		if o.metrics != nil {
			o.metrics.OrchestratorGeneratorFailure.Inc()
		}
		answer = canonicalErrorAnswer
	}

	return Response{
		Answer:  answer,
		Sources: buildSources(result.Fragments),
		ResponseMeta: ResponseMetadata{
			DocumentsRetrieved: len(result.Fragments),
			ProcessingTimeMs:   time.Since(start).Milliseconds(),
			ModelLabel:         o.generatorLabel(),
		},
	}, contextStr
}

func (o *Orchestrator) generatorLabel() string {
	if o.gen == nil {
		return ""
	}
	return o.gen.Label()
}

// assembleContext concatenates each fragment's source, filename, and
// content, separated by the fixed delimiter line.
func assembleContext(fragments []Fragment) string {
	var b strings.Builder
	for i, f := range fragments {
		if i > 0 {
			b.WriteString(contextDelimiter)
		}
		fmt.Fprintf(&b, "source: %s\nfilename: %s\n%s",
			f.stringMeta(MetaSource), f.stringMeta(MetaFilename), f.Content)
	}
	return b.String()
}

// buildSources produces the citation-bound SourceDocument list, numbering
// citations 1-based in the order fragments were retrieved.
func buildSources(fragments []Fragment) []SourceDocument {
	out := make([]SourceDocument, 0, len(fragments))
	for i, f := range fragments {
		hybrid, _ := f.Metadata[MetaHybridScore].(float64)
		sem, _ := f.Metadata[MetaSemanticScore].(float64)
		kw, _ := f.Metadata[MetaKeywordScore].(float64)

		out = append(out, SourceDocument{
			CitationNumber: i + 1,
			Source:         f.stringMeta(MetaSource),
			Filename:       f.stringMeta(MetaFilename),
			ContentPreview: truncateEllipsis(f.Content, sourcePreviewLen),
			HybridScore:    hybrid,
			SemanticScore:  sem,
			KeywordScore:   kw,
			Metadata:       flattenStructuralMetadata(f.Metadata),
			LineRange:      lineRange(f.Metadata),
			ClassName:      f.stringMeta(MetaClassName),
			MethodName:     f.stringMeta(MetaMethodName),
		})
	}
	return out
}

func truncateEllipsis(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func lineRange(meta map[string]any) string {
	m := DecodeMetadata(meta)
	if m.StartLine == 0 || m.EndLine == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", m.StartLine, m.EndLine)
}

// flattenStructuralMetadata renders the fragment's structural metadata
// keys as a sorted "key=value,key=value" string.
func flattenStructuralMetadata(meta map[string]any) string {
	m := DecodeMetadata(meta)
	var parts []string
	if m.ClassName != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", MetaClassName, m.ClassName))
	}
	if m.MethodName != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", MetaMethodName, m.MethodName))
	}
	if m.StartLine != 0 {
		parts = append(parts, fmt.Sprintf("%s=%d", MetaStartLine, m.StartLine))
	}
	if m.EndLine != 0 {
		parts = append(parts, fmt.Sprintf("%s=%d", MetaEndLine, m.EndLine))
	}
	if m.ChunkType != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", MetaChunkType, m.ChunkType))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
