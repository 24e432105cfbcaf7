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
	"fmt"
	"io"
	"log/slog"

	"github.com/columnar-sdk/columnar-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrorHelper helps format errors for the driver. Every message is
// prefixed with the driver name, e.g. "[Columnar] unknown option 'x'".
type ErrorHelper struct {
	DriverName string
}

func (helper *ErrorHelper) Errorf(code columnar.Status, message string, format ...interface{}) error {
	msg := fmt.Sprintf(message, format...)
	return columnar.Error{
		Msg:  fmt.Sprintf("[%s] %s", helper.DriverName, msg),
		Code: code,
	}
}

// Wrap is Errorf with an underlying cause.
func (helper *ErrorHelper) Wrap(err error, code columnar.Status, message string, format ...interface{}) error {
	msg := fmt.Sprintf(message, format...)
	return columnar.Error{
		Msg:        fmt.Sprintf("[%s] %s: %s", helper.DriverName, msg, err),
		Code:       code,
		InnerCause: err,
	}
}

func nilLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelError,
	})
	return slog.New(h)
}

// NilLogger returns a logger that discards every record.
func NilLogger() *slog.Logger { return nilLogger() }

func nilTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("")
}

// traceParentHolder is implemented by the bases that can carry a W3C
// traceparent value.
type traceParentHolder interface {
	GetTraceParent() string
}

// maybeAddTraceParent returns ctx carrying the remote span context of the
// most specific non-empty trace parent among holders, which are ordered
// from the least to the most specific. A ctx that already carries a span
// is returned unchanged.
func maybeAddTraceParent(ctx context.Context, holders ...traceParentHolder) (context.Context, bool) {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx, false
	}
	var traceParent string
	for _, h := range holders {
		if h == nil {
			continue
		}
		if tp := h.GetTraceParent(); tp != "" {
			traceParent = tp
		}
	}
	if traceParent == "" {
		return ctx, false
	}
	carrier := propagation.MapCarrier{"traceparent": traceParent}
	out := propagation.TraceContext{}.Extract(ctx, carrier)
	return out, trace.SpanContextFromContext(out).IsValid()
}

func getInitialSpanAttributes(info *DriverInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	for _, code := range info.InfoSupportedCodes() {
		attr, ok := otelAttrForInfoCode[code]
		if !ok {
			continue
		}
		switch v := info.info[code].(type) {
		case string:
			attrs = append(attrs, attr.String(v))
		case bool:
			attrs = append(attrs, attr.Bool(v))
		case int64:
			attrs = append(attrs, attr.Int64(v))
		}
	}
	return attrs
}
