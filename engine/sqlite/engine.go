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

// Package sqlite is a columnar.Engine running statements against a local
// SQLite database through modernc.org/sqlite. It is registered under the
// "sqlite" connection string scheme:
//
//	sqlite://                 a private in-memory database
//	sqlite:///path/to/data.db a database file
//
// Each row is reported as a JSON object keyed by column name, in column
// order.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"github.com/google/uuid"
)

// Scheme is the connection string scheme of the engine.
const Scheme = "sqlite"

const driverName = "sqlite"

func init() {
	columnar.RegisterEngine(Scheme, Factory)
}

// Factory opens an engine for a cluster.
func Factory(ctx context.Context, cfg columnar.EngineConfig) (columnar.Engine, error) {
	e, err := Open(ctx, DSN(cfg.Host, cfg.Path))
	if err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		e.SetLogger(cfg.Logger)
	}
	e.defaultTimeout = cfg.Options.Timeout.QueryTimeout
	return e, nil
}

// DSN returns the data source name for the host and path of a connection
// string. An empty location is a new private in-memory database.
func DSN(host, path string) string {
	location := host + path
	switch location {
	case "", "memory", ":memory:", "/:memory:":
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	return "file:" + location
}

// Engine runs queries on a database/sql pool.
type Engine struct {
	db *sql.DB
	// keep holds a connection for the engine's lifetime so a shared
	// in-memory database outlives idle pool connections.
	keep           *sql.Conn
	logger         *slog.Logger
	defaultTimeout time.Duration

	mu      sync.Mutex
	handles map[*handle]struct{}
	closed  bool
}

var (
	_ columnar.Engine        = (*Engine)(nil)
	_ columnar.EngineLogging = (*Engine)(nil)
)

// Open opens dsn with the modernc sqlite driver.
func Open(ctx context.Context, dsn string) (*Engine, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	e, err := New(ctx, db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return e, nil
}

// New wraps db. The engine takes ownership of db and closes it on Close.
func New(ctx context.Context, db *sql.DB) (*Engine, error) {
	keep, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{
		db:      db,
		keep:    keep,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		handles: make(map[*handle]struct{}),
	}, nil
}

// DB returns the underlying pool, for example to load fixtures.
func (e *Engine) DB() *sql.DB { return e.db }

func (e *Engine) SetLogger(logger *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e.logger = logger
}

// SubmitQuery starts running req. The query is bound to ctx: canceling
// ctx cancels the query, as with database/sql.
func (e *Engine) SubmitQuery(ctx context.Context, req *columnar.QueryRequest) (columnar.QueryHandle, error) {
	if strings.TrimSpace(req.Statement) == "" {
		return nil, &columnar.BindingError{Type: columnar.BindingErrorValue, Message: "statement must not be empty"}
	}
	args, err := bindArgs(req)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, &columnar.BindingError{Type: columnar.BindingErrorRuntime, Message: "engine is closed"}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = rawDuration(req.Raw, "timeout")
	}
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	var (
		qctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		qctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		qctx, cancel = context.WithCancel(ctx)
	}

	h := &handle{
		engine:    e,
		req:       req,
		requestID: uuid.NewString(),
		ctx:       qctx,
		cancel:    cancel,
		timeout:   timeout,
		readOnly:  req.ReadOnly || rawBool(req.Raw, "readonly"),
		start:     time.Now(),
		ready:     make(chan struct{}),
	}
	e.handles[h] = struct{}{}
	e.logger.DebugContext(ctx, "sqlite query submitted",
		"request_id", h.requestID,
		"client_context_id", req.ClientContextID,
		"read_only", h.readOnly,
		"timeout", timeout)

	go h.execute(args)
	return h, nil
}

func (e *Engine) forget(h *handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handles, h)
}

// Close cancels the running queries and closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	handles := make([]*handle, 0, len(e.handles))
	for h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
		<-h.ready
		h.mu.Lock()
		h.release()
		h.mu.Unlock()
	}
	return errors.Join(e.keep.Close(), e.db.Close())
}
