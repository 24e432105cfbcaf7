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

// Package columnar defines the types and interfaces of a client driver
// for the Columnar analytics query service.
//
// A query is dispatched to an Engine, which owns the network connection
// and the wire protocol, and its results are streamed back one row at a
// time through a QueryHandle. The driver packages build on top of these
// interfaces: driver/columnar provides the Cluster, Database and Scope
// entry points, errmap normalizes engine failures into the Error
// taxonomy defined here, and engine/sqlite is a local Engine useful for
// development and tests.
//
// In general, it's expected for objects to allow serialized access
// safely from multiple goroutines, but not necessarily concurrent
// access. Specific implementations may allow concurrent access.
//
// EXPERIMENTAL. Interface subject to change.
package columnar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type Status -linecomment
//go:generate go run golang.org/x/tools/cmd/stringer -type StreamingState -linecomment

// ErrorDetail is additional engine-specific error metadata.
//
// This allows engines to return structured error information (for
// example, an HTTP response body or gRPC status details) that can be
// optionally inspected by clients without having to encode it in the
// error message.
type ErrorDetail interface {
	// Get an identifier for the detail (e.g. if the metadata comes from an HTTP
	// response, the key could be the name of the field it was read from).
	Key() string
	// Serialize the detail value to a byte array.
	Serialize() ([]byte, error)
}

// ProtobufErrorDetail is an ErrorDetail backed by a Protobuf message.
type ProtobufErrorDetail struct {
	Name    string
	Message proto.Message
}

func (d *ProtobufErrorDetail) Key() string {
	return d.Name
}

// Serialize serializes the Protobuf message (wrapped in Any).
func (d *ProtobufErrorDetail) Serialize() ([]byte, error) {
	any, err := anypb.New(d.Message)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(any)
}

// TextErrorDetail is an ErrorDetail backed by a human-readable string.
type TextErrorDetail struct {
	Name   string
	Detail string
}

func (d *TextErrorDetail) Key() string {
	return d.Name
}

func (d *TextErrorDetail) Serialize() ([]byte, error) {
	return []byte(d.Detail), nil
}

// Error is the detailed error for an operation. Every failure that
// originates from the service or from the engine reaches callers as an
// Error; use errors.As to inspect it.
type Error struct {
	// Msg is a string representing a human readable error message
	Msg string
	// Code is the Status representing this error
	Code Status
	// ErrorCode is the numeric code supplied by the engine, if any
	ErrorCode int
	// Context carries the structured context the engine attached to the
	// failure, if any.
	Context ErrorContext
	// InnerCause is the error this one was built from, if any.
	InnerCause error
	// Details is an array of additional engine-specific error details.
	Details []ErrorDetail
}

func (e Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e Error) Unwrap() error { return e.InnerCause }

// StatusOf reports the Status of the first Error in err's chain.
func StatusOf(err error) (Status, bool) {
	var cerr Error
	if errors.As(err, &cerr) {
		return cerr.Code, true
	}
	return StatusGeneric, false
}

// IsStatus reports whether err's chain contains an Error with the given code.
func IsStatus(err error, code Status) bool {
	status, ok := StatusOf(err)
	return ok && status == code
}

// Status represents an error code for operations that may fail
type Status uint8

const (
	// The base Columnar error. Unknown engine error codes map here.
	StatusGeneric Status = iota // Columnar
	// Authentication was rejected by the service.
	StatusInvalidCredential // Invalid Credential
	// The operation exceeded its deadline.
	StatusTimeout // Timeout
	// The service reported a failure while executing the query, for
	// instance a syntax error or a runtime evaluation error.
	StatusQuery // Query
	// A caller-supplied argument failed validation before dispatch.
	StatusInvalidArgument // Invalid Argument
	// The service or its version does not support the requested feature.
	StatusFeatureUnavailable // Feature Unavailable
	// An unexpected condition inside the driver. Callers should not see
	// this; it indicates a defect.
	StatusInternalSDK // Internal SDK
	// A dispatched operation completed but reported an operation-level
	// failure.
	StatusUnsuccessfulOperation // Unsuccessful Operation
	// The results of a query were already consumed.
	StatusAlreadyIterated // Already Iterated
	// The query was canceled.
	StatusQueryOperationCanceled // Query Operation Canceled
	// The service is not available on the cluster.
	StatusServiceUnavailable // Service Unavailable
	// The service reported an internal failure.
	StatusInternalServerFailure // Internal Server Failure
)

// ErrorContext is the structured context an engine attaches to an
// EngineError. It is either a *GenericErrorContext or an
// *HTTPErrorContext.
type ErrorContext interface {
	fmt.Stringer
	errorContext()
}

// GenericErrorContext is the context of a failure that did not come from
// an HTTP exchange.
type GenericErrorContext struct {
	ErrorMessage       string
	LastDispatchedTo   string
	LastDispatchedFrom string
	RetryAttempts      int
	RetryReasons       []string
}

func (*GenericErrorContext) errorContext() {}

func (c *GenericErrorContext) String() string {
	var b strings.Builder
	b.WriteString("GenericErrorContext(")
	c.write(&b)
	b.WriteString(")")
	return b.String()
}

func (c *GenericErrorContext) write(b *strings.Builder) {
	fields := make([]string, 0, 5)
	if c.ErrorMessage != "" {
		fields = append(fields, "error_message="+c.ErrorMessage)
	}
	if c.LastDispatchedTo != "" {
		fields = append(fields, "last_dispatched_to="+c.LastDispatchedTo)
	}
	if c.LastDispatchedFrom != "" {
		fields = append(fields, "last_dispatched_from="+c.LastDispatchedFrom)
	}
	if c.RetryAttempts > 0 {
		fields = append(fields, fmt.Sprintf("retry_attempts=%d", c.RetryAttempts))
	}
	if len(c.RetryReasons) > 0 {
		fields = append(fields, "retry_reasons="+strings.Join(c.RetryReasons, ","))
	}
	b.WriteString(strings.Join(fields, ", "))
}

// HTTPErrorContext is the context of a failure reported by an HTTP
// response from the service.
type HTTPErrorContext struct {
	GenericErrorContext
	ClientContextID string
	Method          string
	Path            string
	StatusCode      int
	ResponseBody    string
}

func (*HTTPErrorContext) errorContext() {}

func (c *HTTPErrorContext) String() string {
	var b strings.Builder
	b.WriteString("HTTPErrorContext(")
	fmt.Fprintf(&b, "method=%s, path=%s, http_status=%d", c.Method, c.Path, c.StatusCode)
	if c.ClientContextID != "" {
		b.WriteString(", client_context_id=" + c.ClientContextID)
	}
	if c.ResponseBody != "" {
		b.WriteString(", http_body=" + c.ResponseBody)
	}
	if c.GenericErrorContext.ErrorMessage != "" || c.LastDispatchedTo != "" {
		b.WriteString(", ")
		c.GenericErrorContext.write(&b)
	}
	b.WriteString(")")
	return b.String()
}

// EngineError is the raw failure an Engine reports. It never reaches
// callers directly: the driver passes it through an errmap.Mapper, which
// turns it into an Error.
type EngineError struct {
	// Code is the engine's numeric error code.
	Code int
	// Message is the engine's description of the code.
	Message string
	// ErrorMessage is the inline error message from the engine's error
	// info, when there is one. It is the first thing classified against
	// an error rule table.
	ErrorMessage string
	// Context is nil when the engine supplied no structured context.
	Context    ErrorContext
	InnerCause error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.ErrorMessage != "" {
		msg = e.ErrorMessage
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, msg)
}

func (e *EngineError) Unwrap() error { return e.InnerCause }

// BindingErrorType classifies failures raised by the client binding
// itself rather than by the service.
type BindingErrorType uint8

const (
	BindingErrorValue BindingErrorType = iota + 1
	BindingErrorRuntime
	BindingErrorInternalSDK
)

// BindingError is a failure raised by the engine's client binding, outside
// of any protocol exchange.
type BindingError struct {
	Type    BindingErrorType
	Message string
}

func (e *BindingError) Error() string { return e.Message }

var (
	// ErrValue is the error binding value failures are mapped to.
	ErrValue = errors.New("columnar: invalid value")
	// ErrRuntime is the error binding runtime failures are mapped to.
	ErrRuntime = errors.New("columnar: runtime failure")
	// ErrMetadataNotReady is returned when query metadata is read before
	// the last row was consumed. It signals caller misuse and is
	// deliberately not part of the Status taxonomy.
	ErrMetadataNotReady = errors.New("columnar: query metadata is only available after all rows have been iterated")
)

// ErrorRule maps a regular expression to a Status. Rules are matched
// against error payloads in order; patterns are anchored at the start of
// the text.
type ErrorRule struct {
	Pattern string
	Status  Status
}

// StreamingState is the lifecycle of a single query execution.
type StreamingState int32

const (
	StreamingNotStarted StreamingState = iota // NotStarted
	StreamingStarted                          // Started
	StreamingCompleted                        // Completed
	StreamingCancelled                        // Cancelled
)

// OkayToStream reports whether a query in this state may be submitted.
func (s StreamingState) OkayToStream() bool { return s == StreamingNotStarted }

// OkayToIterate reports whether rows may be pulled in this state.
func (s StreamingState) OkayToIterate() bool { return s == StreamingStarted }

// Terminal reports whether s is Completed or Cancelled.
func (s StreamingState) Terminal() bool {
	return s == StreamingCompleted || s == StreamingCancelled
}

// StreamingStateError is returned when a query is submitted from a state
// that does not allow it.
type StreamingStateError struct {
	State StreamingState
}

func (e *StreamingStateError) Error() string {
	switch e.State {
	case StreamingStarted:
		return "columnar: cannot submit query, it is already streaming (state Started)"
	case StreamingCompleted:
		return "columnar: cannot submit query, it has already been executed (state Completed)"
	case StreamingCancelled:
		return "columnar: cannot submit query, it has been canceled (state Cancelled)"
	default:
		return fmt.Sprintf("columnar: cannot submit query in state %s", e.State)
	}
}

// Engine dispatches queries on behalf of the driver. It owns the network
// connection, the wire protocol, and any retries.
type Engine interface {
	// SubmitQuery dispatches req and returns a handle over its results.
	// Failures should be reported as *EngineError or *BindingError.
	SubmitQuery(ctx context.Context, req *QueryRequest) (QueryHandle, error)
	Close() error
}

// QueryHandle is an engine's cursor over the results of one query. It is
// exclusively owned by one executor.
type QueryHandle interface {
	// Next returns the next raw row. A nil row with a nil error is the
	// completion sentinel: no more rows will follow.
	Next() ([]byte, error)
	// Metadata returns the terminal metadata of the query, or nil while
	// it is not available yet.
	Metadata() (*Metadata, error)
	// Cancel aborts the query on a best-effort basis. It must be safe to
	// call more than once and from any goroutine.
	Cancel()
	// WaitForResult blocks until the head of the result is ready for
	// iteration, or the query failed.
	WaitForResult(ctx context.Context) error
}

// AsyncEngine is an Engine that reports progress through callbacks.
// Callbacks may be invoked on any goroutine.
type AsyncEngine interface {
	// SubmitQueryAsync dispatches req. onReady is called once, when the
	// result is ready for iteration or the query failed. onRow is called
	// once for each call to AsyncQueryHandle.RequestNext.
	SubmitQueryAsync(req *QueryRequest, onReady func(error), onRow func([]byte, error)) (AsyncQueryHandle, error)
	Close() error
}

// AsyncQueryHandle is the callback flavor of QueryHandle.
type AsyncQueryHandle interface {
	// RequestNext asks for the next row; the engine answers through the
	// onRow callback given at submission, with the same conventions as
	// QueryHandle.Next.
	RequestNext()
	Metadata() (*Metadata, error)
	Cancel()
}

// Canonical option keys
const (
	OptionValueEnabled  = "true"
	OptionValueDisabled = "false"

	OptionKeyURI      = "uri"
	OptionKeyUsername = "username"
	OptionKeyPassword = "password"
	// Name of a registered ConfigProfile to apply to the cluster options.
	OptionKeyConfigProfile = "config_profile"
	// Keep unknown connection string parameters instead of rejecting them.
	OptionKeyAllowUnknownQueryStringOptions = "allow_unknown_qstr_options"

	OptionKeyConnectTimeout       = "connect_timeout"
	OptionKeyDispatchTimeout      = "dispatch_timeout"
	OptionKeyDNSSRVTimeout        = "dns_srv_timeout"
	OptionKeyManagementTimeout    = "management_timeout"
	OptionKeyQueryTimeout         = "query_timeout"
	OptionKeyResolveTimeout       = "resolve_timeout"
	OptionKeySocketConnectTimeout = "socket_connect_timeout"

	OptionKeyTrustOnlyCapella   = "security.trust_only_capella"
	OptionKeyTrustOnlyPemFile   = "security.trust_only_pem_file"
	OptionKeyDisableServerCheck = "security.disable_server_certificate_verification"

	OptionKeyQueryClientContextID    = "columnar.query.client_context_id"
	OptionKeyQueryPriority           = "columnar.query.priority"
	OptionKeyQueryReadOnly           = "columnar.query.readonly"
	OptionKeyQueryScanConsistency    = "columnar.query.scan_consistency"
	OptionKeyQueryContext            = "columnar.query.query_context"
	OptionKeyQueryTimeoutPerRequest  = "columnar.query.timeout"
	OptionKeyQueryLazyExecute        = "columnar.query.lazy_execute"
	OptionKeyQueryCancelPollInterval = "columnar.query.cancel_poll_interval"
	OptionKeyQueryDeserializer       = "columnar.query.deserializer"

	OptionValueDeserializerJSON        = "json"
	OptionValueDeserializerPassthrough = "passthrough"

	// EXPERIMENTAL. Sets/Gets the trace parent on OpenTelemetry traces
	OptionKeyTelemetryTraceParent = "columnar.telemetry.trace_parent"
)

// EXPERIMENTAL. Traces Telemetry exporter option type
type OptionTelemetryExporter string

// EXPERIMENTAL. Traces Telemetry exporter options
const (
	TelemetryExporterNone         OptionTelemetryExporter = "none"
	TelemetryExporterOtlp         OptionTelemetryExporter = "otlp"
	TelemetryExporterConsole      OptionTelemetryExporter = "console"
	TelemetryExporterColumnarFile OptionTelemetryExporter = "columnarfile"
)
