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
	"slices"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/utils"
	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cast"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputArrow = "arrow"
)

func validateOutputFormat(output string) error {
	switch output {
	case outputTable, outputJSON, outputArrow:
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use 'table', 'json' or 'arrow'", output)
}

// writeRows prints raw JSON rows in the output format: one row per line
// for json, an Arrow IPC stream for arrow.
func writeRows(g *globals, rows [][]byte) error {
	switch g.output {
	case outputJSON:
		for _, row := range rows {
			if _, err := fmt.Fprintf(g.out, "%s\n", row); err != nil {
				return err
			}
		}
		return nil
	}

	rec, err := utils.RecordFromRows(memory.DefaultAllocator, nil, rows)
	if err != nil {
		return err
	}
	defer rec.Release()

	if g.output == outputArrow {
		w := ipc.NewWriter(g.out, ipc.WithSchema(rec.Schema()))
		if err := w.Write(rec); err != nil {
			return err
		}
		return w.Close()
	}

	header := make([]string, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		header[i] = f.Name
	}
	table := tablewriter.NewWriter(g.out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	for row := 0; row < int(rec.NumRows()); row++ {
		line := make([]string, rec.NumCols())
		for i, col := range rec.Columns() {
			if col.IsNull(row) {
				line[i] = "NULL"
			} else {
				line[i] = col.ValueStr(row)
			}
		}
		table.Append(line)
	}
	table.Render()
	return nil
}

// writeMetadata prints query metadata. With the arrow output, the rows
// already form the IPC stream, so the metadata is printed as a table to
// the error output instead.
func writeMetadata(g *globals, md *sdk.Metadata) error {
	if g.output == outputJSON {
		raw, err := sdk.EncodeMetadata(md)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(g.out, "%s\n", raw)
		return err
	}

	out := g.out
	if g.output == outputArrow {
		out = g.errOut
	}
	rec := utils.MetricsRecord(memory.DefaultAllocator, md)
	defer rec.Release()

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"metric", "value"})
	table.SetAutoFormatHeaders(false)
	for i, f := range rec.Schema().Fields() {
		value := "NULL"
		if !rec.Column(i).IsNull(0) {
			value = rec.Column(i).ValueStr(0)
		}
		table.Append([]string{f.Name, value})
	}
	table.Render()

	problems := utils.ProblemsRecord(memory.DefaultAllocator, md)
	defer problems.Release()
	if problems.NumRows() == 0 {
		return nil
	}
	table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"kind", "code", "message"})
	table.SetAutoFormatHeaders(false)
	for row := 0; row < int(problems.NumRows()); row++ {
		line := make([]string, problems.NumCols())
		for i, col := range problems.Columns() {
			line[i] = col.ValueStr(row)
		}
		table.Append(line)
	}
	table.Render()
	return nil
}

func printInfo(g *globals, info map[string]any) error {
	if g.output == outputJSON {
		return json.NewEncoder(g.out).Encode(info)
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	table := tablewriter.NewWriter(g.out)
	table.SetHeader([]string{"info", "value"})
	table.SetAutoFormatHeaders(false)
	for _, k := range keys {
		table.Append([]string{k, cast.ToString(info[k])})
	}
	table.Render()
	return nil
}
