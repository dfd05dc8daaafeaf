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

// Package tracing installs the process-wide otel TracerProvider. The
// retrieval core's own packages pull spans from otel.Tracer(instrumentationName)
// directly rather than depending on this package, so Init only needs to
// run once at process startup (cmd/ragcore).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// instrumentationName identifies this module's spans in any exporter
// eventually attached to the provider.
const instrumentationName = "github.com/kadirpekel/ragcore"

// Init installs a TracerProvider sampling every span. No exporter is wired
// by default: without one, spans are created and propagated (so context
// deadlines and span parentage still work end-to-end across every
// blocking call the pipeline makes) but are dropped at Shutdown rather
// than sent anywhere. Attach an exporter via sdktrace.WithBatcher before
// calling Init if a backend is available.
func Init(opts ...sdktrace.TracerProviderOption) (shutdown func(context.Context) error, err error) {
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// InstrumentationName is passed to otel.Tracer by every blocking backend
// call the pipeline makes: embed calls, ANN queries, lexical queries,
// generator calls, and judge calls.
const InstrumentationName = instrumentationName
