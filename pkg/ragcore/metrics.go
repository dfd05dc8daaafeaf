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

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus instrumentation for the retrieval
// pipeline by subsystem (ingest, fusion, generation, evaluation). Each
// field is registered against the Registry passed to NewMetrics, so a
// caller that doesn't want metrics can simply not call this constructor
// and pass a nil *Metrics everywhere (every call site here is a
// nil-checked no-op).
type Metrics struct {
	IngestFilesFailed prometheus.Counter
	IngestFragments   prometheus.Counter

	FusionLatency      prometheus.Histogram
	FusionBackendEmpty *prometheus.CounterVec // labeled by backend: "semantic"|"lexical"

	OrchestratorRequests         prometheus.Counter
	OrchestratorGeneratorFailure prometheus.Counter
	OrchestratorDegraded         prometheus.Counter

	EvaluationRequests prometheus.Counter
	EvaluationLatency  prometheus.Histogram
}

// NewMetrics registers and returns a Metrics set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestFilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "ingest", Name: "files_failed_total",
			Help: "Files skipped during ingestion due to load or chunk failures.",
		}),
		IngestFragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "ingest", Name: "fragments_stored_total",
			Help: "Fragments committed to the vector store and lexical index.",
		}),
		FusionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore", Subsystem: "fuser", Name: "latency_seconds",
			Help:    "Wall-clock time to run and fuse semantic+lexical search.",
			Buckets: prometheus.DefBuckets,
		}),
		FusionBackendEmpty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "fuser", Name: "backend_empty_total",
			Help: "Times a backend returned no results (error or genuinely empty).",
		}, []string{"backend"}),
		OrchestratorRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "orchestrator", Name: "requests_total",
			Help: "Chat requests handled by the orchestrator.",
		}),
		OrchestratorGeneratorFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "orchestrator", Name: "generator_failures_total",
			Help: "Requests that degraded to the canonical error answer.",
		}),
		OrchestratorDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "orchestrator", Name: "no_results_total",
			Help: "Requests that degraded to the canonical no-results answer.",
		}),
		EvaluationRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "evaluation", Name: "requests_total",
			Help: "Evaluation runs executed.",
		}),
		EvaluationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore", Subsystem: "evaluation", Name: "latency_seconds",
			Help:    "Wall-clock time for one evaluation run (orchestrator + two judge calls).",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.IngestFilesFailed, m.IngestFragments,
			m.FusionLatency, m.FusionBackendEmpty,
			m.OrchestratorRequests, m.OrchestratorGeneratorFailure, m.OrchestratorDegraded,
			m.EvaluationRequests, m.EvaluationLatency,
		)
	}
	return m
}
