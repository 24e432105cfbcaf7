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

package streaming_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/engine/enginetest"
	"github.com/columnar-sdk/columnar-go/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsync(t *testing.T, scripts ...enginetest.Script) (*enginetest.Engine, *streaming.AsyncExecutor) {
	t.Helper()
	loop := streaming.NewLoop()
	t.Cleanup(loop.Close)
	engine := enginetest.New(scripts...)
	exec := streaming.NewAsyncExecutor(columnar.AsAsyncEngine(engine), loop, newRequest("SELECT 1;"), streaming.Config{})
	return engine, exec
}

func TestAsyncSelectOne(t *testing.T) {
	engine, exec := newAsync(t, enginetest.Script{Rows: enginetest.Rows(`{"$1":1}`)})
	assert.Equal(t, streaming.Cooperative{}, exec.Policy())

	it, err := streaming.NewAsyncRowIterator(exec)
	require.NoError(t, err)
	// submission waits for the first row request
	assert.Empty(t, engine.Requests())
	assert.Equal(t, columnar.StreamingNotStarted, exec.State())

	ctx := context.Background()
	var rows []any
	for it.Next(ctx) {
		rows = append(rows, it.Row())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []any{map[string]any{"$1": float64(1)}}, rows)
	assert.Equal(t, columnar.StreamingCompleted, exec.State())

	md, err := exec.Metadata()
	require.NoError(t, err)
	assert.EqualValues(t, 1, md.Metrics.ResultCount)

	_, err = streaming.AsyncGetAllRows(ctx, exec)
	assert.True(t, columnar.IsStatus(err, columnar.StatusAlreadyIterated))
	_, err = streaming.NewAsyncRowIterator(exec)
	assert.True(t, columnar.IsStatus(err, columnar.StatusAlreadyIterated))
}

func TestAsyncSubmitTwice(t *testing.T) {
	_, exec := newAsync(t, enginetest.Script{Rows: enginetest.Rows(`1`)})
	require.NoError(t, exec.Submit(context.Background()))

	var stateErr *columnar.StreamingStateError
	require.ErrorAs(t, exec.Submit(context.Background()), &stateErr)
	assert.Equal(t, columnar.StreamingStarted, stateErr.State)

	rows, err := streaming.AsyncGetAllRows(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1)}, rows)
}

func TestAsyncFailures(t *testing.T) {
	tests := []struct {
		name   string
		script enginetest.Script
		want   columnar.Status
	}{
		{"dispatch", enginetest.Script{SubmitErr: &columnar.EngineError{Code: 2}}, columnar.StatusInvalidCredential},
		{"result", enginetest.Script{ReadyErr: &columnar.EngineError{Code: 4}}, columnar.StatusQuery},
		{"row", enginetest.Script{Rows: enginetest.Rows(`1`), RowErr: &columnar.EngineError{Code: 5002}}, columnar.StatusUnsuccessfulOperation},
		{"decode", enginetest.Script{Rows: enginetest.Rows(`nope`)}, columnar.StatusInternalSDK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, exec := newAsync(t, tt.script)
			_, err := streaming.AsyncGetAllRows(context.Background(), exec)
			assert.True(t, columnar.IsStatus(err, tt.want), "got %v", err)
		})
	}
}

func TestAsyncDispatchFailureSurvivesRedrain(t *testing.T) {
	engine, exec := newAsync(t, enginetest.Script{SubmitErr: &columnar.EngineError{Code: 4, Message: "syntax_error"}})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		rows, err := streaming.AsyncGetAllRows(ctx, exec)
		assert.Nil(t, rows, "drain %d", i)
		assert.True(t, columnar.IsStatus(err, columnar.StatusQuery), "drain %d: got %v", i, err)
	}
	_, err := exec.NextRow(ctx)
	assert.True(t, columnar.IsStatus(err, columnar.StatusQuery), "got %v", err)
	assert.NotEqual(t, io.EOF, err)
	assert.Len(t, engine.Requests(), 1)
	assert.Equal(t, columnar.StreamingStarted, exec.State())
}

func TestAsyncCancelWhileSubmitting(t *testing.T) {
	engine, exec := newAsync(t, enginetest.Script{Hold: true})

	submitted := make(chan error, 1)
	go func() { submitted <- exec.Submit(context.Background()) }()

	assert.Eventually(t, func() bool {
		exec.Cancel()
		return exec.State() == columnar.StreamingCancelled
	}, time.Second, time.Millisecond)

	select {
	case err := <-submitted:
		assert.True(t, columnar.IsStatus(err, columnar.StatusQueryOperationCanceled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("submit was not released by cancel")
	}
	assert.True(t, engine.LastHandle().Canceled())
}

func TestAsyncSubmitDeadline(t *testing.T) {
	_, exec := newAsync(t, enginetest.Script{Hold: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := exec.Submit(ctx)
	assert.True(t, columnar.IsStatus(err, columnar.StatusTimeout), "got %v", err)
	assert.Equal(t, columnar.StreamingCancelled, exec.State())
}

func TestAsyncCancelAfterSubmit(t *testing.T) {
	engine, exec := newAsync(t, enginetest.Script{Rows: enginetest.Rows(`1`, `2`)})
	ctx := context.Background()
	require.NoError(t, exec.Submit(ctx))

	row, err := exec.NextRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), row)

	exec.Cancel()
	exec.Cancel()
	assert.Equal(t, columnar.StreamingCancelled, exec.State())
	assert.GreaterOrEqual(t, engine.LastHandle().CancelCount(), 1)

	_, err = exec.NextRow(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = exec.Metadata()
	assert.ErrorIs(t, err, columnar.ErrMetadataNotReady)
}

func TestAsyncNextRowClosedLoop(t *testing.T) {
	loop := streaming.NewLoop()
	engine := enginetest.New(enginetest.Script{Rows: enginetest.Rows(`1`)})
	exec := streaming.NewAsyncExecutor(columnar.AsAsyncEngine(engine), loop, newRequest("q"), streaming.Config{})
	require.NoError(t, exec.Submit(context.Background()))

	loop.Close()
	_, err := exec.NextRow(context.Background())
	assert.ErrorIs(t, err, streaming.ErrLoopClosed)
	exec.Cancel()
}
