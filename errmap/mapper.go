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

// Package errmap translates the failures reported by an engine into the
// columnar.Error taxonomy.
//
// A Mapper is built from an explicit code Table and an optional list of
// error rules. Rules are regular expressions that classify HTTP-flavored
// failures by their message or response body; when no rule matches, the
// engine's numeric error code is looked up in the Table. Mapping never
// fails: missing or malformed information degrades to StatusGeneric.
package errmap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bluele/gcache"
	"github.com/columnar-sdk/columnar-go"
	"github.com/tidwall/gjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

const defaultPatternCacheSize = 64

// Mapper normalizes engine failures. It is safe for concurrent use.
type Mapper struct {
	table    *Table
	rules    []columnar.ErrorRule
	patterns gcache.Cache
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithRules sets the rules used by Map to classify HTTP-flavored errors.
func WithRules(rules ...columnar.ErrorRule) Option {
	return func(m *Mapper) {
		m.rules = append([]columnar.ErrorRule(nil), rules...)
	}
}

// WithPatternCacheSize bounds the number of compiled rule patterns kept.
func WithPatternCacheSize(size int) Option {
	return func(m *Mapper) {
		if size > 0 {
			m.patterns = newPatternCache(size)
		}
	}
}

// New returns a Mapper over table. A nil table means DefaultTable.
func New(table *Table, opts ...Option) *Mapper {
	if table == nil {
		table = DefaultTable()
	}
	m := &Mapper{table: table}
	for _, opt := range opts {
		opt(m)
	}
	if m.patterns == nil {
		m.patterns = newPatternCache(defaultPatternCacheSize)
	}
	return m
}

func newPatternCache(size int) gcache.Cache {
	return gcache.New(size).
		LRU().
		LoaderFunc(func(key any) (any, error) {
			// rules match at the start of the text, like a prefix match
			return regexp.Compile(`^(?:` + key.(string) + `)`)
		}).
		Build()
}

// Table returns the code table of m.
func (m *Mapper) Table() *Table { return m.table }

// Map converts any error into the taxonomy:
//
//   - nil stays nil and a columnar.Error is returned unchanged
//   - *columnar.EngineError is classified by Build with the mapper's rules
//   - *columnar.BindingError is classified by its type, see MapBinding
//   - gRPC status errors are classified by status code
//   - context cancellation and deadlines become QueryOperationCanceled
//     and Timeout
//   - anything else becomes InternalSDK
//
// Other error kinds (columnar.ErrValue, columnar.ErrRuntime,
// columnar.ErrMetadataNotReady, *columnar.StreamingStateError) are
// returned unchanged as well: they are produced by the driver itself and
// deliberately sit outside the taxonomy.
func (m *Mapper) Map(err error) (out error) {
	if err == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = columnar.Error{
				Msg:        fmt.Sprintf("failed to map error %q: %v", err.Error(), r),
				Code:       columnar.StatusInternalSDK,
				InnerCause: err,
			}
		}
	}()

	var (
		cerr    columnar.Error
		engErr  *columnar.EngineError
		bindErr *columnar.BindingError
		stErr   *columnar.StreamingStateError
	)
	switch {
	case errors.As(err, &cerr):
		return err
	case errors.As(err, &engErr):
		return m.Build(engErr, m.rules)
	case errors.As(err, &bindErr):
		return MapBinding(bindErr)
	case errors.As(err, &stErr),
		errors.Is(err, columnar.ErrValue),
		errors.Is(err, columnar.ErrRuntime),
		errors.Is(err, columnar.ErrMetadataNotReady):
		return err
	case errors.Is(err, context.Canceled):
		return columnar.Error{Msg: "Cancelled by request", Code: columnar.StatusQueryOperationCanceled, InnerCause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return columnar.Error{Msg: "Deadline exceeded", Code: columnar.StatusTimeout, InnerCause: err}
	}

	if st, ok := status.FromError(err); ok {
		return fromGRPCStatus(st, err)
	}

	return columnar.Error{Msg: err.Error(), Code: columnar.StatusInternalSDK, InnerCause: err}
}

// Build classifies an engine error. rules may be nil, in which case only
// the numeric code is consulted. A nil engErr yields a StatusGeneric error.
func (m *Mapper) Build(engErr *columnar.EngineError, rules []columnar.ErrorRule) columnar.Error {
	if engErr == nil {
		return columnar.Error{Msg: "unknown engine error", Code: columnar.StatusGeneric}
	}
	code := columnar.StatusGeneric
	matched := false

	switch ctx := engErr.Context.(type) {
	case *columnar.HTTPErrorContext:
		if len(rules) > 0 {
			code, matched = m.classifyHTTP(ctx, engErr.ErrorMessage, rules)
		}
	case *columnar.GenericErrorContext, nil:
		// classified by code only
	}
	if !matched {
		code = m.table.Lookup(engErr.Code)
	}

	out := columnar.Error{
		Msg:        engineMessage(engErr),
		Code:       code,
		ErrorCode:  engErr.Code,
		Context:    engErr.Context,
		InnerCause: engErr,
	}
	if engErr.ErrorMessage != "" {
		out.Details = append(out.Details, &columnar.TextErrorDetail{Name: "error_message", Detail: engErr.ErrorMessage})
	}
	if hctx, ok := engErr.Context.(*columnar.HTTPErrorContext); ok && hctx.ResponseBody != "" {
		out.Details = append(out.Details, &columnar.TextErrorDetail{Name: "http_body", Detail: hctx.ResponseBody})
	}
	return out
}

func engineMessage(engErr *columnar.EngineError) string {
	if engErr.Message != "" {
		return strings.ReplaceAll(engErr.Message, "_", " ")
	}
	return engErr.ErrorMessage
}

// classifyHTTP tries the inline error message, then the raw body, then
// the fields of the body parsed as JSON.
func (m *Mapper) classifyHTTP(ctx *columnar.HTTPErrorContext, errMsg string, rules []columnar.ErrorRule) (columnar.Status, bool) {
	if errMsg != "" {
		if code, ok := m.match(rules, errMsg); ok {
			return code, true
		}
	}
	if ctx.ResponseBody == "" {
		return columnar.StatusGeneric, false
	}
	if code, ok := m.match(rules, ctx.ResponseBody); ok {
		return code, true
	}
	return m.classifyBody(ctx.ResponseBody, rules)
}

func (m *Mapper) classifyBody(body string, rules []columnar.ErrorRule) (columnar.Status, bool) {
	if !gjson.Valid(body) {
		return columnar.StatusGeneric, false
	}

	parsed := gjson.Parse(body)
	switch {
	case parsed.Type == gjson.String:
		return m.match(rules, parsed.String())
	case parsed.IsObject():
		errs := parsed.Get("errors")
		switch {
		case errs.IsArray():
			var (
				code  columnar.Status
				found bool
			)
			errs.ForEach(func(_, entry gjson.Result) bool {
				text := fmt.Sprintf("%s %s", rawOrEmpty(entry.Get("code")), entry.Get("msg").String())
				code, found = m.match(rules, text)
				return !found
			})
			return code, found
		case errs.IsObject():
			if name := errs.Get("name"); name.Exists() {
				return m.match(rules, name.String())
			}
		case !errs.Exists():
			// eventing-style payloads carry the name at the top level
			if name := parsed.Get("name"); name.Exists() {
				return m.match(rules, name.String())
			}
		}
	}
	return columnar.StatusGeneric, false
}

func rawOrEmpty(r gjson.Result) string {
	if !r.Exists() {
		return ""
	}
	if r.Type == gjson.String {
		return r.String()
	}
	return r.Raw
}

func (m *Mapper) match(rules []columnar.ErrorRule, text string) (columnar.Status, bool) {
	for _, rule := range rules {
		v, err := m.patterns.Get(rule.Pattern)
		if err != nil {
			// invalid patterns never match
			continue
		}
		if v.(*regexp.Regexp).MatchString(text) {
			return rule.Status, true
		}
	}
	return columnar.StatusGeneric, false
}

// MapBinding classifies failures raised by the engine's client binding.
// These use their own error kinds rather than the taxonomy, except for
// internal failures and cancellations.
func MapBinding(err *columnar.BindingError) error {
	lower := strings.ToLower(err.Message)
	if strings.Contains(lower, "query operation") && strings.Contains(lower, "canceled") {
		return columnar.Error{Msg: err.Message, Code: columnar.StatusQueryOperationCanceled, InnerCause: err}
	}

	switch err.Type {
	case columnar.BindingErrorValue:
		return fmt.Errorf("%w: %s", columnar.ErrValue, err.Message)
	case columnar.BindingErrorRuntime:
		return fmt.Errorf("%w: %s", columnar.ErrRuntime, err.Message)
	default:
		return columnar.Error{Msg: err.Message, Code: columnar.StatusInternalSDK, InnerCause: err}
	}
}

func fromGRPCStatus(st *status.Status, err error) error {
	var code columnar.Status
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.Canceled:
		code = columnar.StatusQueryOperationCanceled
	case codes.DeadlineExceeded:
		code = columnar.StatusTimeout
	case codes.Unauthenticated, codes.PermissionDenied:
		code = columnar.StatusInvalidCredential
	case codes.InvalidArgument:
		code = columnar.StatusInvalidArgument
	case codes.Unimplemented:
		code = columnar.StatusFeatureUnavailable
	case codes.Unavailable:
		code = columnar.StatusServiceUnavailable
	case codes.Internal, codes.DataLoss:
		code = columnar.StatusInternalServerFailure
	case codes.FailedPrecondition, codes.Aborted:
		code = columnar.StatusUnsuccessfulOperation
	default:
		code = columnar.StatusGeneric
	}

	details := []columnar.ErrorDetail{}
	// slice of proto.Message or error
	for _, detail := range st.Details() {
		if derr, ok := detail.(error); ok {
			details = append(details, &columnar.TextErrorDetail{Name: "grpc-status-details-bin", Detail: derr.Error()})
		} else if msg, ok := detail.(proto.Message); ok {
			details = append(details, &columnar.ProtobufErrorDetail{Name: "grpc-status-details-bin", Message: msg})
		}
	}

	return columnar.Error{
		Msg:        fmt.Sprintf("%s (%s)", st.Message(), st.Code()),
		Code:       code,
		InnerCause: err,
		Details:    details,
	}
}
