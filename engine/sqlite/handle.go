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

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/errmap"
	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// handle is the cursor of one query. Next and Metadata are called by a
// single owner; Cancel may be called from anywhere.
type handle struct {
	engine    *Engine
	req       *columnar.QueryRequest
	requestID string
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration
	readOnly  bool
	start     time.Time

	// written by execute before ready is closed
	ready    chan struct{}
	conn     *sql.Conn
	rows     *sql.Rows
	columns  []string
	err      error
	readyAt  time.Time
	canceled atomic.Bool

	mu       sync.Mutex
	count    uint64
	size     uint64
	finished bool
	released bool
	metadata *columnar.Metadata
}

func (h *handle) execute(args []any) {
	defer close(h.ready)
	defer func() {
		h.readyAt = time.Now()
		if h.canceled.Load() {
			h.mu.Lock()
			h.release()
			h.mu.Unlock()
		}
	}()

	conn, err := h.engine.db.Conn(h.ctx)
	if err != nil {
		h.err = h.mapError(err)
		return
	}
	h.conn = conn
	if h.readOnly {
		if _, err := conn.ExecContext(h.ctx, "PRAGMA query_only = ON"); err != nil {
			h.err = h.mapError(err)
			return
		}
	}
	rows, err := conn.QueryContext(h.ctx, h.req.Statement, args...)
	if err != nil {
		h.err = h.mapError(err)
		return
	}
	h.rows = rows
	if h.columns, err = rows.Columns(); err != nil {
		h.err = h.mapError(err)
	}
}

func (h *handle) WaitForResult(ctx context.Context) error {
	select {
	case <-h.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if h.err != nil {
		h.mu.Lock()
		h.release()
		h.mu.Unlock()
	}
	return h.err
}

func (h *handle) Next() ([]byte, error) {
	<-h.ready
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		h.release()
		return nil, h.err
	}
	if h.finished {
		return nil, nil
	}
	if h.canceled.Load() {
		h.release()
		return nil, errCanceled
	}

	if !h.rows.Next() {
		err := h.rows.Err()
		if err == nil && h.canceled.Load() {
			err = context.Canceled
		}
		if err != nil {
			h.err = h.mapError(err)
			h.release()
			return nil, h.err
		}
		h.finish()
		return nil, nil
	}

	values := make([]any, len(h.columns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := h.rows.Scan(ptrs...); err != nil {
		h.err = h.mapError(err)
		h.release()
		return nil, h.err
	}
	row, err := encodeRow(h.columns, values)
	if err != nil {
		h.err = &columnar.BindingError{Type: columnar.BindingErrorInternalSDK, Message: err.Error()}
		h.release()
		return nil, h.err
	}
	h.count++
	h.size += uint64(len(row))
	return row, nil
}

// finish records the metadata once the last row was read.
func (h *handle) finish() {
	h.finished = true
	now := time.Now()
	h.metadata = &columnar.Metadata{
		RequestID:       h.requestID,
		ClientContextID: h.req.ClientContextID,
		Status:          columnar.QueryStatusSuccess,
		Metrics: &columnar.Metrics{
			ElapsedTime:   now.Sub(h.start),
			ExecutionTime: h.readyAt.Sub(h.start),
			ResultCount:   h.count,
			ResultSize:    h.size,
		},
	}
	h.release()
}

func (h *handle) Metadata() (*columnar.Metadata, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metadata, nil
}

func (h *handle) Cancel() {
	h.canceled.Store(true)
	h.cancel()
	if h.mu.TryLock() {
		defer h.mu.Unlock()
		select {
		case <-h.ready:
			h.release()
		default:
		}
	}
}

// release returns the connection to the pool. It must be called with mu
// held, after ready is closed.
func (h *handle) release() {
	if h.released {
		return
	}
	h.released = true
	if h.rows != nil {
		_ = h.rows.Close()
	}
	if h.conn != nil {
		if h.readOnly {
			_, _ = h.conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
		}
		_ = h.conn.Close()
	}
	h.cancel()
	h.engine.forget(h)
}

var errCanceled = &columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "query operation canceled"}

func (h *handle) mapError(err error) error {
	switch {
	case errors.Is(h.ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		msg := fmt.Sprintf("query timed out after %s", h.timeout)
		return &columnar.EngineError{
			Code:         errmap.CodeTimeout,
			Message:      "timeout",
			ErrorMessage: msg,
			Context:      h.errorContext(msg),
			InnerCause:   err,
		}
	case h.canceled.Load() || errors.Is(err, context.Canceled):
		return errCanceled
	}

	var serr *msqlite.Error
	if errors.As(err, &serr) {
		code := errmap.CodeQuery
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
			code = errmap.CodeInvalidCredential
		case sqlite3.SQLITE_INTERRUPT:
			return errCanceled
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
			code = errmap.CodeGeneric
		}
		msg := strings.TrimSpace(serr.Error())
		return &columnar.EngineError{
			Code:         code,
			Message:      "query_error",
			ErrorMessage: msg,
			Context:      h.errorContext(msg),
			InnerCause:   err,
		}
	}
	return &columnar.EngineError{
		Code:         errmap.CodeGeneric,
		Message:      "generic",
		ErrorMessage: err.Error(),
		Context:      h.errorContext(err.Error()),
		InnerCause:   err,
	}
}

func (h *handle) errorContext(msg string) *columnar.GenericErrorContext {
	return &columnar.GenericErrorContext{
		ErrorMessage:     msg,
		LastDispatchedTo: Scheme,
	}
}

// encodeRow renders a row as a JSON object, keeping column order.
func encodeRow(columns []string, values []any) ([]byte, error) {
	buf := make([]byte, 0, 16*len(columns)+2)
	buf = append(buf, '{')
	for i, col := range columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')

		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func bindArgs(req *columnar.QueryRequest) ([]any, error) {
	args := make([]any, 0, len(req.PositionalParameters)+len(req.NamedParameters))
	for _, v := range req.PositionalParameters {
		bound, err := bindValue(v)
		if err != nil {
			return nil, err
		}
		args = append(args, bound)
	}
	for name, v := range req.NamedParameters {
		bound, err := bindValue(v)
		if err != nil {
			return nil, err
		}
		args = append(args, sql.Named(strings.TrimPrefix(name, "$"), bound))
	}
	return args, nil
}

// bindValue passes scalars through and binds composite values as their
// JSON text, which SQLite's json functions accept.
func bindValue(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &columnar.BindingError{
			Type:    columnar.BindingErrorValue,
			Message: fmt.Sprintf("cannot bind parameter of type %T: %s", v, err),
		}
	}
	return string(b), nil
}

func rawBool(raw map[string]any, key string) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

func rawDuration(raw map[string]any, key string) time.Duration {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	d, err := cast.ToDurationE(v)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
