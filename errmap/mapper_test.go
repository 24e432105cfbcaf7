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

package errmap_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/errmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func httpError(code int, errMsg, body string) *columnar.EngineError {
	return &columnar.EngineError{
		Code:         code,
		Message:      "http_error",
		ErrorMessage: errMsg,
		Context: &columnar.HTTPErrorContext{
			Method:       "POST",
			Path:         "/api/v1/request",
			StatusCode:   400,
			ResponseBody: body,
		},
	}
}

func TestTableLookup(t *testing.T) {
	table := errmap.DefaultTable()

	tests := []struct {
		code int
		want columnar.Status
	}{
		{errmap.CodeGeneric, columnar.StatusGeneric},
		{errmap.CodeInvalidCredential, columnar.StatusInvalidCredential},
		{errmap.CodeTimeout, columnar.StatusTimeout},
		{errmap.CodeQuery, columnar.StatusQuery},
		{errmap.CodeInternalSDK, columnar.StatusInternalSDK},
		{errmap.CodeUnsuccessfulOperation, columnar.StatusUnsuccessfulOperation},
		{42, columnar.StatusGeneric},
		{-1, columnar.StatusGeneric},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.code))
		})
	}

	var nilTable *errmap.Table
	assert.Equal(t, columnar.StatusGeneric, nilTable.Lookup(errmap.CodeQuery))
}

func TestTableWithDoesNotModifyOriginal(t *testing.T) {
	base := errmap.DefaultTable()
	ext := base.With(7, columnar.StatusServiceUnavailable)

	assert.Equal(t, columnar.StatusServiceUnavailable, ext.Lookup(7))
	assert.Equal(t, columnar.StatusGeneric, base.Lookup(7))
	assert.Equal(t, columnar.StatusQuery, ext.Lookup(errmap.CodeQuery))

	custom := errmap.NewTable(map[int]columnar.Status{9: columnar.StatusTimeout})
	assert.Equal(t, columnar.StatusTimeout, custom.Lookup(9))
	assert.Equal(t, columnar.StatusGeneric, custom.Lookup(errmap.CodeQuery))
}

func TestBuildWithoutContextUsesCode(t *testing.T) {
	m := errmap.New(nil)
	out := m.Build(&columnar.EngineError{Code: errmap.CodeTimeout, Message: "request_timed_out"}, nil)

	assert.Equal(t, columnar.StatusTimeout, out.Code)
	assert.Equal(t, "request timed out", out.Msg)
	assert.Equal(t, errmap.CodeTimeout, out.ErrorCode)
	assert.Nil(t, out.Context)
}

func TestBuildNilEngineError(t *testing.T) {
	var got columnar.Error
	require.NotPanics(t, func() { got = errmap.New(nil).Build(nil, nil) })
	assert.Equal(t, columnar.StatusGeneric, got.Code)
	assert.NotEmpty(t, got.Msg)
	assert.Nil(t, got.InnerCause)
}

func TestBuildGenericContextIgnoresRules(t *testing.T) {
	m := errmap.New(nil)
	engErr := &columnar.EngineError{
		Code:         errmap.CodeInvalidCredential,
		ErrorMessage: "Query failed",
		Context:      &columnar.GenericErrorContext{ErrorMessage: "Query failed"},
	}
	out := m.Build(engErr, []columnar.ErrorRule{{Pattern: ".*", Status: columnar.StatusQuery}})

	assert.Equal(t, columnar.StatusInvalidCredential, out.Code)
	assert.Equal(t, "Query failed", out.Msg)
	assert.Same(t, engErr.Context, out.Context)
}

func TestBuildHTTPErrorsList(t *testing.T) {
	m := errmap.New(nil)
	engErr := httpError(errmap.CodeGeneric, "", `{"errors":[{"code":4,"msg":"Query syntax error"}]}`)

	out := m.Build(engErr, []columnar.ErrorRule{{Pattern: ".*Query.*", Status: columnar.StatusQuery}})
	assert.Equal(t, columnar.StatusQuery, out.Code)
	assert.True(t, errors.Is(out, out.InnerCause))

	var body *columnar.TextErrorDetail
	for _, d := range out.Details {
		if d.Key() == "http_body" {
			body = d.(*columnar.TextErrorDetail)
		}
	}
	require.NotNil(t, body)
	assert.Contains(t, body.Detail, "Query syntax error")
}

func TestBuildHTTPClassification(t *testing.T) {
	m := errmap.New(nil)

	tests := []struct {
		name   string
		errMsg string
		body   string
		rules  []columnar.ErrorRule
		want   columnar.Status
	}{
		{
			name:   "error message first",
			errMsg: "Unauthorized user",
			body:   `{"errors":[{"code":20001,"msg":"Query syntax error"}]}`,
			rules: []columnar.ErrorRule{
				{Pattern: "Unauthorized", Status: columnar.StatusInvalidCredential},
				{Pattern: ".*Query", Status: columnar.StatusQuery},
			},
			want: columnar.StatusInvalidCredential,
		},
		{
			name:  "raw body",
			body:  "Service Unavailable",
			rules: []columnar.ErrorRule{{Pattern: "Service", Status: columnar.StatusServiceUnavailable}},
			want:  columnar.StatusServiceUnavailable,
		},
		{
			name:  "json string body",
			body:  `"timeout reached"`,
			rules: []columnar.ErrorRule{{Pattern: "timeout", Status: columnar.StatusTimeout}},
			want:  columnar.StatusTimeout,
		},
		{
			name:  "errors list code prefix",
			body:  `{"errors":[{"code":24045,"msg":"Cannot find dataset"},{"code":20000,"msg":"Auth failed"}]}`,
			rules: []columnar.ErrorRule{{Pattern: "20000 ", Status: columnar.StatusInvalidCredential}},
			want:  columnar.StatusInvalidCredential,
		},
		{
			name:  "errors object name",
			body:  `{"errors":{"name":"ERR_APP_NOT_FOUND","code":2}}`,
			rules: []columnar.ErrorRule{{Pattern: "ERR_APP", Status: columnar.StatusUnsuccessfulOperation}},
			want:  columnar.StatusUnsuccessfulOperation,
		},
		{
			name:  "top level name",
			body:  `{"name":"ERR_COLLECTION_MISSING"}`,
			rules: []columnar.ErrorRule{{Pattern: "ERR_COLLECTION", Status: columnar.StatusUnsuccessfulOperation}},
			want:  columnar.StatusUnsuccessfulOperation,
		},
		{
			name:  "patterns are anchored",
			body:  `{"name":"ERR_COLLECTION_MISSING"}`,
			rules: []columnar.ErrorRule{{Pattern: "COLLECTION", Status: columnar.StatusUnsuccessfulOperation}},
			want:  columnar.StatusQuery,
		},
		{
			name:  "invalid pattern never matches",
			body:  `{"errors":[{"code":4,"msg":"Query syntax error"}]}`,
			rules: []columnar.ErrorRule{{Pattern: "(unclosed", Status: columnar.StatusTimeout}},
			want:  columnar.StatusQuery,
		},
		{
			name:  "malformed json falls back to code",
			body:  `{"errors":[`,
			rules: []columnar.ErrorRule{{Pattern: "nomatch", Status: columnar.StatusTimeout}},
			want:  columnar.StatusQuery,
		},
		{
			name: "no rules",
			body: `{"errors":[{"code":4,"msg":"Query syntax error"}]}`,
			want: columnar.StatusQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.Build(httpError(errmap.CodeQuery, tt.errMsg, tt.body), tt.rules)
			assert.Equal(t, tt.want, out.Code)
		})
	}
}

func TestBuildMessageFallsBackToErrorMessage(t *testing.T) {
	m := errmap.New(nil)
	out := m.Build(&columnar.EngineError{Code: 12, ErrorMessage: "the_raw_message"}, nil)
	assert.Equal(t, "the_raw_message", out.Msg)
	assert.Equal(t, columnar.StatusGeneric, out.Code)
}

func TestMapUsesConfiguredRules(t *testing.T) {
	m := errmap.New(nil,
		errmap.WithRules(columnar.ErrorRule{Pattern: ".*Query.*", Status: columnar.StatusQuery}),
		errmap.WithPatternCacheSize(2))

	err := m.Map(httpError(errmap.CodeGeneric, "", `{"errors":[{"code":4,"msg":"Query syntax error"}]}`))
	assert.True(t, columnar.IsStatus(err, columnar.StatusQuery))
}

func TestMapBindingErrors(t *testing.T) {
	m := errmap.New(nil)

	err := m.Map(&columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "Query operation was canceled"})
	assert.True(t, columnar.IsStatus(err, columnar.StatusQueryOperationCanceled))

	err = m.Map(&columnar.BindingError{Type: columnar.BindingErrorValue, Message: "bad port"})
	assert.ErrorIs(t, err, columnar.ErrValue)
	assert.Contains(t, err.Error(), "bad port")
	_, ok := columnar.StatusOf(err)
	assert.False(t, ok)

	err = m.Map(&columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "event loop stopped"})
	assert.ErrorIs(t, err, columnar.ErrRuntime)

	err = m.Map(&columnar.BindingError{Type: columnar.BindingErrorInternalSDK, Message: "bad state"})
	assert.True(t, columnar.IsStatus(err, columnar.StatusInternalSDK))
}

func TestMapContextErrors(t *testing.T) {
	m := errmap.New(nil)

	assert.True(t, columnar.IsStatus(m.Map(context.Canceled), columnar.StatusQueryOperationCanceled))
	assert.True(t, columnar.IsStatus(m.Map(fmt.Errorf("waiting: %w", context.DeadlineExceeded)), columnar.StatusTimeout))
}

func TestMapGRPCStatus(t *testing.T) {
	m := errmap.New(nil)

	tests := []struct {
		code codes.Code
		want columnar.Status
	}{
		{codes.Canceled, columnar.StatusQueryOperationCanceled},
		{codes.DeadlineExceeded, columnar.StatusTimeout},
		{codes.Unauthenticated, columnar.StatusInvalidCredential},
		{codes.PermissionDenied, columnar.StatusInvalidCredential},
		{codes.InvalidArgument, columnar.StatusInvalidArgument},
		{codes.Unimplemented, columnar.StatusFeatureUnavailable},
		{codes.Unavailable, columnar.StatusServiceUnavailable},
		{codes.Internal, columnar.StatusInternalServerFailure},
		{codes.Unknown, columnar.StatusGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := m.Map(status.Error(tt.code, "boom"))
			assert.True(t, columnar.IsStatus(err, tt.want), "got %v", err)
		})
	}

	st, err := status.New(codes.Unavailable, "down").WithDetails(wrapperspb.String("retry later"))
	require.NoError(t, err)

	var cerr columnar.Error
	require.ErrorAs(t, m.Map(st.Err()), &cerr)
	require.Len(t, cerr.Details, 1)
	assert.Equal(t, "grpc-status-details-bin", cerr.Details[0].Key())
	_, ok := cerr.Details[0].(*columnar.ProtobufErrorDetail)
	assert.True(t, ok)
}

func TestMapPassThrough(t *testing.T) {
	m := errmap.New(nil)

	assert.NoError(t, m.Map(nil))

	orig := columnar.Error{Msg: "x", Code: columnar.StatusAlreadyIterated}
	assert.Equal(t, orig, m.Map(orig))

	assert.ErrorIs(t, m.Map(columnar.ErrMetadataNotReady), columnar.ErrMetadataNotReady)

	stateErr := &columnar.StreamingStateError{State: columnar.StreamingCompleted}
	assert.Same(t, stateErr, m.Map(stateErr))
}

func TestMapUnknownIsInternalSDK(t *testing.T) {
	m := errmap.New(nil)
	raw := errors.New("something odd")

	err := m.Map(raw)
	assert.True(t, columnar.IsStatus(err, columnar.StatusInternalSDK))
	assert.ErrorIs(t, err, raw)
}

func TestMapNeverPanics(t *testing.T) {
	m := errmap.New(nil)

	// a typed nil engine error dereferences inside Build
	var engErr *columnar.EngineError
	var err error
	require.NotPanics(t, func() { err = m.Map(fmt.Errorf("wrapped: %w", engErr)) })
	assert.True(t, columnar.IsStatus(err, columnar.StatusInternalSDK))
}
