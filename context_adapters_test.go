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

package columnar_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowResult struct {
	row []byte
	err error
}

type asyncAnswer struct {
	ready chan error
	rows  chan rowResult
}

func submitAsync(t *testing.T, engine columnar.Engine) (columnar.AsyncQueryHandle, *asyncAnswer) {
	t.Helper()
	ans := &asyncAnswer{ready: make(chan error, 1), rows: make(chan rowResult, 1)}
	h, err := columnar.AsAsyncEngine(engine).SubmitQueryAsync(
		&columnar.QueryRequest{Statement: "SELECT 1;"},
		func(err error) { ans.ready <- err },
		func(row []byte, err error) { ans.rows <- rowResult{row, err} })
	require.NoError(t, err)
	return h, ans
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	var zero T
	return zero
}

func TestAsAsyncEngineNil(t *testing.T) {
	assert.Nil(t, columnar.AsAsyncEngine(nil))
}

type nativeAsync struct {
	*enginetest.Engine
}

func (nativeAsync) SubmitQueryAsync(*columnar.QueryRequest, func(error), func([]byte, error)) (columnar.AsyncQueryHandle, error) {
	return nil, errors.New("not used")
}

func TestAsAsyncEngineKeepsAsyncEngines(t *testing.T) {
	native := nativeAsync{enginetest.New()}
	assert.Equal(t, columnar.AsyncEngine(native), columnar.AsAsyncEngine(native))
}

func TestAsyncAdapterRows(t *testing.T) {
	engine := enginetest.New(enginetest.Script{Rows: enginetest.Rows(`{"a":1}`, `{"a":2}`)})
	h, ans := submitAsync(t, engine)
	require.NoError(t, receive(t, ans.ready))

	var got []string
	for {
		h.RequestNext()
		r := receive(t, ans.rows)
		require.NoError(t, r.err)
		if r.row == nil {
			break
		}
		got = append(got, string(r.row))
	}
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, got)

	md, err := h.Metadata()
	require.NoError(t, err)
	assert.EqualValues(t, 2, md.Metrics.ResultCount)
	assert.Len(t, engine.Requests(), 1)
}

func TestAsyncAdapterSubmitError(t *testing.T) {
	engine := enginetest.New(enginetest.Script{SubmitErr: &columnar.EngineError{Code: 2}})
	_, err := columnar.AsAsyncEngine(engine).SubmitQueryAsync(&columnar.QueryRequest{Statement: "q"},
		func(error) { t.Error("onReady must not be called") },
		func([]byte, error) { t.Error("onRow must not be called") })

	var engErr *columnar.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, 2, engErr.Code)
}

func TestAsyncAdapterReadyError(t *testing.T) {
	engine := enginetest.New(enginetest.Script{ReadyErr: &columnar.EngineError{Code: 4}})
	_, ans := submitAsync(t, engine)

	var engErr *columnar.EngineError
	require.ErrorAs(t, receive(t, ans.ready), &engErr)
	assert.Equal(t, 4, engErr.Code)
}

func TestAsyncAdapterCancel(t *testing.T) {
	engine := enginetest.New(enginetest.Script{Hold: true})
	h, ans := submitAsync(t, engine)

	h.Cancel()
	// either the handle's cancellation or the released query context
	// may wake the wait first
	err := receive(t, ans.ready)
	var bindErr *columnar.BindingError
	assert.True(t, errors.As(err, &bindErr) || errors.Is(err, context.Canceled), "got %v", err)
	assert.True(t, engine.LastHandle().Canceled())

	// a second cancel is harmless
	h.Cancel()
	assert.Equal(t, 2, engine.LastHandle().CancelCount())
}

func TestAsyncAdapterClose(t *testing.T) {
	engine := enginetest.New()
	require.NoError(t, columnar.AsAsyncEngine(engine).Close())
	_, err := engine.SubmitQuery(context.Background(), &columnar.QueryRequest{Statement: "q"})
	assert.Error(t, err)
}
