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

package columnar

import (
	"context"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// QueryOption customizes one query. Options that set a single field take
// precedence over the fields of a struct passed with WithOptions,
// whatever the order they are given in.
type QueryOption func(*queryConfig)

type queryConfig struct {
	base      sdk.QueryOptions
	overrides []func(*sdk.QueryOptions) error
}

func override(fn func(*sdk.QueryOptions)) QueryOption {
	return func(c *queryConfig) {
		c.overrides = append(c.overrides, func(o *sdk.QueryOptions) error {
			fn(o)
			return nil
		})
	}
}

// WithOptions uses opts as the base settings of the query.
func WithOptions(opts sdk.QueryOptions) QueryOption {
	return func(c *queryConfig) { c.base = opts }
}

// WithOption sets one option from its string-keyed form, for example
// WithOption("columnar.query.readonly", "true").
func WithOption(key string, value any) QueryOption {
	return func(c *queryConfig) {
		c.overrides = append(c.overrides, func(o *sdk.QueryOptions) error {
			return o.SetOption(key, value)
		})
	}
}

func WithPositionalParameters(args ...any) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.PositionalParameters = args })
}

// WithNamedParameters replaces the named parameters of the query. Names
// may be given with or without the leading '$'.
func WithNamedParameters(params map[string]any) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.NamedParameters = params })
}

// WithNamedParameter adds one named parameter.
func WithNamedParameter(name string, value any) QueryOption {
	return override(func(o *sdk.QueryOptions) {
		params := make(map[string]any, len(o.NamedParameters)+1)
		for k, v := range o.NamedParameters {
			params[k] = v
		}
		params[name] = value
		o.NamedParameters = params
	})
}

func WithTimeout(d time.Duration) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.Timeout = d })
}

func WithReadOnly(readOnly bool) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.ReadOnly = readOnly })
}

func WithPriority(priority bool) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.Priority = priority })
}

func WithScanConsistency(sc sdk.ScanConsistency) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.ScanConsistency = sc })
}

func WithClientContextID(id string) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.ClientContextID = id })
}

func WithDeserializer(d sdk.Deserializer) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.Deserializer = d })
}

// WithRaw adds an entry forwarded untouched to the engine.
func WithRaw(key string, value any) QueryOption {
	return override(func(o *sdk.QueryOptions) {
		raw := make(map[string]any, len(o.Raw)+1)
		for k, v := range o.Raw {
			raw[k] = v
		}
		raw[key] = value
		o.Raw = raw
	})
}

// WithCancelToken makes a scope query cancelable while it is submitted.
func WithCancelToken(token *sdk.CancelToken) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.CancelToken = token })
}

func WithCancelPollInterval(d time.Duration) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.CancelPollInterval = d })
}

// WithLazyExecute defers the submission of a scope query until its rows
// are first requested.
func WithLazyExecute(lazy bool) QueryOption {
	return override(func(o *sdk.QueryOptions) { o.LazyExecute = lazy })
}

type requestBuilder struct {
	logger       *slog.Logger
	deserializer sdk.Deserializer
	queryContext string
}

func (b *requestBuilder) resolve(opts []QueryOption) (sdk.QueryOptions, error) {
	var cfg queryConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	resolved := cfg.base
	for _, fn := range cfg.overrides {
		if err := fn(&resolved); err != nil {
			return sdk.QueryOptions{}, err
		}
	}
	return resolved, nil
}

// build resolves opts into an immutable request.
func (b *requestBuilder) build(ctx context.Context, statement string, opts []QueryOption) (*sdk.QueryRequest, sdk.QueryOptions, error) {
	qopts, err := b.resolve(opts)
	if err != nil {
		return nil, qopts, err
	}
	if qopts.Timeout < 0 {
		return nil, qopts, sdk.Error{
			Msg:  "[Columnar] query timeout must be non-negative",
			Code: sdk.StatusInvalidArgument,
		}
	}

	req := &sdk.QueryRequest{
		Statement:       statement,
		Timeout:         qopts.Timeout,
		Deserializer:    qopts.Deserializer,
		Priority:        qopts.Priority,
		ReadOnly:        qopts.ReadOnly,
		ScanConsistency: qopts.ScanConsistency,
		QueryContext:    b.queryContext,
		ClientContextID: qopts.ClientContextID,
	}
	if qopts.QueryContext != "" {
		req.QueryContext = qopts.QueryContext
	}
	if req.Deserializer == nil {
		req.Deserializer = b.deserializer
	}
	if req.ClientContextID == "" {
		req.ClientContextID = uuid.NewString()
	}
	if len(qopts.PositionalParameters) > 0 {
		req.PositionalParameters = slices.Clone(qopts.PositionalParameters)
	}
	if len(qopts.NamedParameters) > 0 {
		req.NamedParameters = make(map[string]any, len(qopts.NamedParameters))
		for name, v := range qopts.NamedParameters {
			if !strings.HasPrefix(name, "$") {
				name = "$" + name
			}
			req.NamedParameters[name] = v
		}
	}
	if len(qopts.Raw) > 0 {
		req.Raw = maps.Clone(qopts.Raw)
	}

	b.log(ctx, req)
	return req, qopts, nil
}

func (b *requestBuilder) log(ctx context.Context, req *sdk.QueryRequest) {
	if b.logger == nil {
		return
	}
	if b.logger.Enabled(ctx, slog.LevelDebug) {
		b.logger.DebugContext(ctx, "query request built",
			"client_context_id", req.ClientContextID,
			"statement", req.Statement,
			"query_context", req.QueryContext,
			"positional", len(req.PositionalParameters),
			"named", req.NamedParameters,
			"raw", req.Raw,
			"timeout", req.Timeout)
	} else {
		named := maps.Keys(req.NamedParameters)
		slices.Sort(named)
		raw := maps.Keys(req.Raw)
		slices.Sort(raw)
		b.logger.InfoContext(ctx, "query request built",
			"client_context_id", req.ClientContextID,
			"query_context", req.QueryContext,
			"named", named,
			"raw", raw)
	}
}
