// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package driverbase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/columnar-sdk/columnar-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	ScopeMessageOptionUnknown              = "Unknown scope option"
	ScopeMessageTraceParentIncorrectFormat = "Incorrect or unsupported trace parent format"
)

// ScopeImplBase is embedded by the driver types that run queries below a
// cluster (databases and scopes). Its trace parent, when set, overrides
// the cluster's.
type ScopeImplBase struct {
	ErrorHelper ErrorHelper
	Logger      *slog.Logger
	Tracer      trace.Tracer

	cluster     *ClusterImplBase
	traceParent string
}

func NewScopeImplBase(cluster *ClusterImplBase) ScopeImplBase {
	return ScopeImplBase{
		ErrorHelper: cluster.ErrorHelper,
		Logger:      cluster.Logger,
		Tracer:      cluster.Tracer,
		cluster:     cluster,
	}
}

func (sc *ScopeImplBase) Base() *ScopeImplBase {
	return sc
}

// SetOption accepts the telemetry trace parent; every other key is
// rejected.
func (sc *ScopeImplBase) SetOption(key, value string) error {
	switch strings.ToLower(key) {
	case columnar.OptionKeyTelemetryTraceParent:
		value = strings.TrimSpace(value)
		if value != "" && !validTraceParent(value) {
			return sc.ErrorHelper.Errorf(columnar.StatusInvalidArgument, "%s '%s'", ScopeMessageTraceParentIncorrectFormat, value)
		}
		sc.SetTraceParent(value)
		return nil
	}
	return sc.ErrorHelper.Errorf(columnar.StatusInvalidArgument, "%s '%s'", ScopeMessageOptionUnknown, key)
}

func (sc *ScopeImplBase) GetOption(key string) (string, error) {
	switch strings.ToLower(key) {
	case columnar.OptionKeyTelemetryTraceParent:
		return sc.GetTraceParent(), nil
	}
	return "", sc.ErrorHelper.Errorf(columnar.StatusInvalidArgument, "%s '%s'", ScopeMessageOptionUnknown, key)
}

func (sc *ScopeImplBase) GetTraceParent() string {
	return sc.traceParent
}

func (sc *ScopeImplBase) SetTraceParent(traceParent string) {
	sc.traceParent = traceParent
}

func (sc *ScopeImplBase) StartSpan(
	ctx context.Context,
	spanName string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	ctx, _ = maybeAddTraceParent(ctx, sc.cluster, sc)
	return sc.Tracer.Start(ctx, spanName, opts...)
}

func (sc *ScopeImplBase) GetInitialSpanAttributes() []attribute.KeyValue {
	return sc.cluster.GetInitialSpanAttributes()
}

var _ columnar.OTelTracing = (*ScopeImplBase)(nil)

func validTraceParent(value string) bool {
	ctx := propagation.TraceContext{}.Extract(context.Background(), propagation.MapCarrier{"traceparent": value})
	return trace.SpanContextFromContext(ctx).IsValid()
}
