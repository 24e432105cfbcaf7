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

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/columnar"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newQueryCmd(g *globals) *cobra.Command {
	var (
		timeout         time.Duration
		params          []string
		named           []string
		database        string
		scope           string
		readOnly        bool
		clientContextID string
		showMetadata    bool
	)

	cmd := &cobra.Command{
		Use:   "query <statement|->",
		Short: "Run a statement and print its rows",
		Long:  "Run a statement and print its rows. A statement of '-' is read from standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			statement := args[0]
			if statement == "-" {
				content, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				statement = string(content)
			}
			if (database == "") != (scope == "") {
				return fmt.Errorf("--database and --scope must be given together")
			}

			qopts, err := parameterOptions(params, named)
			if err != nil {
				return err
			}
			qopts = append(qopts,
				columnar.WithDeserializer(sdk.PassthroughDeserializer{}),
				columnar.WithReadOnly(readOnly))
			if timeout > 0 {
				qopts = append(qopts, columnar.WithTimeout(timeout))
			}
			if clientContextID != "" {
				qopts = append(qopts, columnar.WithClientContextID(clientContextID))
			}

			d, err := g.driver()
			if err != nil {
				return err
			}
			copts, err := g.clusterOptions()
			if err != nil {
				return err
			}
			cluster, err := d.Connect(ctx, g.uri, sdk.Credential{Username: g.username, Password: g.password}, copts...)
			if err != nil {
				return err
			}
			defer cluster.Close()

			var res *columnar.BlockingQueryResult
			if scope != "" {
				res, err = cluster.Database(database).Scope(scope).ExecuteQuery(ctx, statement, qopts...)
			} else {
				res, err = cluster.ExecuteQuery(ctx, statement, qopts...)
			}
			if err != nil {
				return err
			}
			rows, err := res.GetAllRows(ctx)
			if err != nil {
				return err
			}

			raw := make([][]byte, len(rows))
			for i, row := range rows {
				raw[i] = row.([]byte)
			}
			if err := writeRows(g, raw); err != nil {
				return err
			}
			if !showMetadata {
				return nil
			}
			md, err := res.Metadata()
			if err != nil {
				return err
			}
			return writeMetadata(g, md)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&timeout, "timeout", 0, "Query timeout, 0 for the cluster default")
	flags.StringArrayVar(&params, "param", nil, "Positional parameter, repeatable")
	flags.StringArrayVar(&named, "named", nil, "Named parameter as name=value, repeatable")
	flags.StringVar(&database, "database", "", "Database of the scope to run the query in")
	flags.StringVar(&scope, "scope", "", "Scope to run the query in")
	flags.BoolVar(&readOnly, "readonly", false, "Reject statements that modify data")
	flags.StringVar(&clientContextID, "client-context-id", "", "Client context ID of the query")
	flags.BoolVar(&showMetadata, "metadata", false, "Print the query metadata after the rows")
	return cmd
}

func parameterOptions(params, named []string) ([]columnar.QueryOption, error) {
	var opts []columnar.QueryOption
	if len(params) > 0 {
		values := make([]any, len(params))
		for i, p := range params {
			values[i] = parseParameter(p)
		}
		opts = append(opts, columnar.WithPositionalParameters(values...))
	}
	for _, kv := range named {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid named parameter %q: expected name=value", kv)
		}
		opts = append(opts, columnar.WithNamedParameter(name, parseParameter(value)))
	}
	return opts, nil
}

// parseParameter reads integers as int64 and other JSON values as JSON.
// Anything else is a string.
func parseParameter(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
