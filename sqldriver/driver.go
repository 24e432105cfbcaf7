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

package sqldriver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/columnar"
	"github.com/tidwall/gjson"
)

var errTransactions = sdk.Error{
	Msg:  "[Columnar] transactions are not supported",
	Code: sdk.StatusFeatureUnavailable,
}

func parseConnectStr(str string) (ret map[string]string, err error) {
	ret = make(map[string]string)
	for _, kv := range strings.Split(str, ";") {
		if strings.TrimSpace(kv) == "" {
			continue
		}
		parsed := strings.SplitN(kv, "=", 2)
		if len(parsed) != 2 {
			return nil, sdk.Error{
				Msg:  "[Columnar] invalid format for connection string",
				Code: sdk.StatusInvalidArgument,
			}
		}

		ret[strings.TrimSpace(parsed[0])] = strings.TrimSpace(parsed[1])
	}
	return
}

// clusterConnectStr turns the options of a DSN into a cluster connection
// string and credential. Options other than the uri and the credential
// are appended to the uri as query string parameters.
func clusterConnectStr(opts map[string]string) (string, sdk.Credential, error) {
	uri, ok := opts[sdk.OptionKeyURI]
	if !ok || uri == "" {
		return "", sdk.Credential{}, sdk.Error{
			Msg:  fmt.Sprintf("[Columnar] missing '%s' in connection string", sdk.OptionKeyURI),
			Code: sdk.StatusInvalidArgument,
		}
	}
	cred := sdk.Credential{
		Username: opts[sdk.OptionKeyUsername],
		Password: opts[sdk.OptionKeyPassword],
	}

	params := url.Values{}
	for k, v := range opts {
		switch k {
		case sdk.OptionKeyURI, sdk.OptionKeyUsername, sdk.OptionKeyPassword:
		default:
			params.Set(k, v)
		}
	}
	if len(params) == 0 {
		return uri, cred, nil
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + params.Encode(), cred, nil
}

type connector struct {
	cluster *columnar.Cluster
	drv     *columnar.Driver
}

// Connect returns a connection sharing the connector's cluster. The
// cluster multiplexes queries, so connections hold no state of their own.
func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &conn{cluster: c.cluster}, nil
}

// Driver returns the underlying Driver of the connector,
// mainly to maintain compatibility with the Driver method on sql.DB
func (c *connector) Driver() driver.Driver { return Driver{c.drv} }

// Close closes the cluster. sql.DB calls it from its own Close.
func (c *connector) Close() error {
	return c.cluster.Close()
}

type Driver struct {
	Driver *columnar.Driver
}

// Open returns a new connection to the cluster. The name should be
// semi-colon separated key-value pairs of the form:
// uri=scheme://host;username=...;password=...;key=value;...
//
// Every key other than uri, username and password is a cluster option,
// as if given in the query string of the uri.
func (d Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector expects the same format as driver.Open
func (d Driver) OpenConnector(name string) (driver.Connector, error) {
	opts, err := parseConnectStr(name)
	if err != nil {
		return nil, err
	}
	connstr, cred, err := clusterConnectStr(opts)
	if err != nil {
		return nil, err
	}

	cluster, err := d.Driver.Connect(context.Background(), connstr, cred)
	if err != nil {
		return nil, err
	}
	return &connector{cluster: cluster, drv: d.Driver}, nil
}

type ctxOptsKey struct{}

// SetQueryOptionsInCtx attaches options applied to every query run with
// the returned context.
func SetQueryOptionsInCtx(ctx context.Context, opts ...columnar.QueryOption) context.Context {
	return context.WithValue(ctx, ctxOptsKey{}, opts)
}

func GetQueryOptionsFromCtx(ctx context.Context) []columnar.QueryOption {
	v, ok := ctx.Value(ctxOptsKey{}).([]columnar.QueryOption)
	if !ok {
		return nil
	}
	return v
}

type conn struct {
	cluster *columnar.Cluster
}

var (
	_ driver.QueryerContext     = (*conn)(nil)
	_ driver.ExecerContext      = (*conn)(nil)
	_ driver.ConnBeginTx        = (*conn)(nil)
	_ driver.NamedValueChecker  = (*conn)(nil)
	_ driver.ConnPrepareContext = (*conn)(nil)
)

// Close is a no-op: the cluster belongs to the connector.
func (c *conn) Close() error { return nil }

// CheckNamedValue accepts every value as is. Parameters are sent to the
// engine as JSON, so maps and slices are valid too.
func (c *conn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	opts := GetQueryOptionsFromCtx(ctx)
	opts = append(slices.Clip(opts), columnar.WithDeserializer(sdk.PassthroughDeserializer{}))

	var positional []any
	for _, arg := range args {
		if arg.Name != "" {
			opts = append(opts, columnar.WithNamedParameter(arg.Name, arg.Value))
			continue
		}
		positional = append(positional, arg.Value)
	}
	if len(positional) > 0 {
		opts = append(opts, columnar.WithPositionalParameters(positional...))
	}

	res, err := c.cluster.ExecuteQuery(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	it, err := res.Rows(ctx)
	if err != nil {
		return nil, err
	}
	r := &rows{res: res, it: it}
	if err := r.prefetch(); err != nil {
		return nil, err
	}
	return r, nil
}

// ExecContext runs query and discards its rows. The number of affected
// rows is not reported by the service.
func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	r, err := c.QueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	rs := r.(*rows)
	for rs.it.Next() {
		// discard
	}
	if err := rs.it.Err(); err != nil {
		return nil, err
	}
	return driver.ResultNoRows, nil
}

// Begin exists to fulfill the Conn interface, but will return an error.
//
// Deprecated
func (c *conn) Begin() (driver.Tx, error) {
	return nil, errTransactions
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nil, errTransactions
}

// Prepare returns a prepared statement, bound to this connection.
func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext returns a statement that runs query when executed. The
// service has no prepared statements.
func (c *conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error { return nil }

func (s *stmt) NumInput() int { return -1 }

func (s *stmt) CheckNamedValue(*driver.NamedValue) error { return nil }

func namedValues(values []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(values))
	for i, value := range values {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: value}
	}
	return out
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

type rows struct {
	res *columnar.BlockingQueryResult
	it  *columnar.RowIterator

	columns []string
	// scalar rows are not JSON objects and fill a single column
	scalar  bool
	pending []byte
	done    bool
}

// prefetch reads the first row to learn the columns.
func (r *rows) prefetch() error {
	if !r.it.Next() {
		r.done = true
		return r.it.Err()
	}
	raw := r.it.Row().([]byte)
	parsed := gjson.ParseBytes(raw)
	if parsed.IsObject() {
		parsed.ForEach(func(key, _ gjson.Result) bool {
			r.columns = append(r.columns, key.String())
			return true
		})
	} else {
		r.scalar = true
		r.columns = []string{"$1"}
	}
	r.pending = raw
	return nil
}

func (r *rows) Columns() []string {
	return r.columns
}

func (r *rows) Close() error {
	if !r.done {
		r.res.Cancel()
		r.done = true
	}
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	raw := r.pending
	r.pending = nil
	if raw == nil {
		if r.done || !r.it.Next() {
			r.done = true
			if err := r.it.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		raw = r.it.Row().([]byte)
	}

	parsed := gjson.ParseBytes(raw)
	if r.scalar || !parsed.IsObject() {
		for i := range dest {
			dest[i] = nil
		}
		dest[0] = toValue(parsed)
		return nil
	}

	fields := make(map[string]gjson.Result, len(r.columns))
	parsed.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})
	for i, col := range r.columns {
		// a field missing from this row reads as NULL
		dest[i] = toValue(fields[col])
	}
	return nil
}

func toValue(v gjson.Result) driver.Value {
	switch v.Type {
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Float()
	case gjson.String:
		return v.Str
	case gjson.JSON:
		return []byte(v.Raw)
	default:
		return nil
	}
}
