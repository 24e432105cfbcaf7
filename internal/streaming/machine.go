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

// Package streaming implements the execution of a single query: the
// state machine that submits it to an engine, pulls its rows one at a
// time, and exposes its metadata and cancellation. Executor is the
// blocking flavor, AsyncExecutor the callback-driven one; both share the
// same lifecycle:
//
//	NotStarted -> Started -> Completed
//	                     \-> Cancelled
package streaming

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/errmap"
)

// Config holds the settings shared by both executor flavors.
type Config struct {
	// Mapper normalizes engine failures. Defaults to errmap.New(nil).
	Mapper *errmap.Mapper
	// Logger receives state transitions at debug level. Defaults to a
	// logger that discards everything.
	Logger *slog.Logger
	// Policy selects how a blocking submission can be canceled. It is
	// ignored by AsyncExecutor, which always uses Cooperative.
	Policy CancelPolicy
	// LazyExecute records that submission should wait for the first
	// request for rows. The executor only reports it; the caller decides
	// when to submit.
	LazyExecute bool
}

// cursor is the part of an engine handle the state machine itself needs.
type cursor interface {
	Metadata() (*columnar.Metadata, error)
	Cancel()
}

// machine is the state shared by Executor and AsyncExecutor.
type machine struct {
	state        atomic.Int32
	mapper       *errmap.Mapper
	logger       *slog.Logger
	deserializer columnar.Deserializer
	token        *columnar.CancelToken
	lazy         bool

	mu       sync.Mutex
	cur      cursor
	metadata *columnar.Metadata

	// set when the engine refused the query, which leaves the machine
	// Started with no cursor
	dispatchErr error
}

func (m *machine) init(req *columnar.QueryRequest, cfg Config) {
	m.mapper = cfg.Mapper
	if m.mapper == nil {
		m.mapper = errmap.New(nil)
	}
	m.logger = cfg.Logger
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m.deserializer = req.Deserializer
	if m.deserializer == nil {
		m.deserializer = columnar.DefaultDeserializer
	}
	m.lazy = cfg.LazyExecute
	m.logger = m.logger.With("client_context_id", req.ClientContextID)
}

// State returns the current streaming state.
func (m *machine) State() columnar.StreamingState {
	return columnar.StreamingState(m.state.Load())
}

// DoneStreaming reports whether the query is Completed or Cancelled.
func (m *machine) DoneStreaming() bool { return m.State().Terminal() }

// StartedStreaming reports whether the query was submitted.
func (m *machine) StartedStreaming() bool { return m.State() != columnar.StreamingNotStarted }

// LazyExecute reports whether submission was deferred to the first
// request for rows.
func (m *machine) LazyExecute() bool { return m.lazy }

// begin moves NotStarted to Started, or reports why the query cannot be
// submitted.
func (m *machine) begin() error {
	if !m.transition(columnar.StreamingNotStarted, columnar.StreamingStarted) {
		return &columnar.StreamingStateError{State: m.State()}
	}
	return nil
}

func (m *machine) transition(from, to columnar.StreamingState) bool {
	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.logger.Debug("query state changed", "from", from, "to", to)
	return true
}

func (m *machine) setCursor(c cursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = c
}

// failDispatch records that the engine refused the query and returns err.
func (m *machine) failDispatch(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatchErr = err
	m.logger.Debug("query dispatch failed", "error", err)
	return err
}

func (m *machine) dispatchFailure() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatchErr
}

// undispatched is what a request for rows gets when there is no cursor:
// the dispatch failure if there was one, io.EOF before submission.
func (m *machine) undispatched() error {
	switch err := m.dispatchFailure(); {
	case err != nil:
		return err
	case m.StartedStreaming():
		return columnar.Error{
			Msg:  "query was started but never dispatched to the engine",
			Code: columnar.StatusInternalSDK,
		}
	}
	return io.EOF
}

func (m *machine) currentCursor() cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Metadata returns the terminal metadata of the query. It is only
// available once the engine has reported it, which the bundled engines
// do after the last row; before that columnar.ErrMetadataNotReady is
// returned. The first successful result is memoized.
func (m *machine) Metadata() (*columnar.Metadata, error) {
	m.mu.Lock()
	md, cur := m.metadata, m.cur
	m.mu.Unlock()
	if md != nil {
		return md, nil
	}
	if cur == nil {
		return nil, columnar.ErrMetadataNotReady
	}

	md, err := cur.Metadata()
	if err != nil {
		return nil, m.mapper.Map(err)
	}
	if md == nil {
		return nil, columnar.ErrMetadataNotReady
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metadata == nil {
		m.metadata = md
	}
	return m.metadata, nil
}

// Cancel aborts the query. It does nothing before the query has been
// dispatched; afterwards the state is forced to Cancelled, whatever it
// was. Cancel may be called from any goroutine, any number of times.
func (m *machine) Cancel() {
	cur := m.currentCursor()
	if cur == nil {
		return
	}
	cur.Cancel()
	if m.token != nil && !m.token.IsSet() {
		m.token.Set()
	}
	if prev := columnar.StreamingState(m.state.Swap(int32(columnar.StreamingCancelled))); prev != columnar.StreamingCancelled {
		m.logger.Debug("query state changed", "from", prev, "to", columnar.StreamingCancelled)
	}
}

// HandleError converts an unexpected failure into an InternalSDK error.
// A columnar.Error is returned unchanged.
func (m *machine) HandleError(err error) error {
	return handleError(err)
}

func handleError(err error) error {
	if err == nil {
		return nil
	}
	var cerr columnar.Error
	if errors.As(err, &cerr) {
		return err
	}
	return columnar.Error{
		Msg:        err.Error(),
		Code:       columnar.StatusInternalSDK,
		InnerCause: err,
	}
}

// row finishes a pull from the engine: a failure is mapped, the
// completion sentinel ends the stream, and anything else is decoded.
func (m *machine) row(raw []byte, err error) (any, error) {
	if err != nil {
		return nil, m.mapper.Map(err)
	}
	if raw == nil {
		// a concurrent Cancel wins over completion
		m.transition(columnar.StreamingStarted, columnar.StreamingCompleted)
		return nil, io.EOF
	}
	return m.deserializer.Deserialize(raw)
}
