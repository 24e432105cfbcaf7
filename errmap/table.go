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

package errmap

import (
	"maps"

	"github.com/columnar-sdk/columnar-go"
)

// Engine error codes with a dedicated Status.
const (
	CodeGeneric               = 1
	CodeInvalidCredential     = 2
	CodeTimeout               = 3
	CodeQuery                 = 4
	CodeInternalSDK           = 5000
	CodeUnsuccessfulOperation = 5002
)

// Table maps numeric engine error codes to a Status. A Table is never
// modified once built; With returns a modified copy.
type Table struct {
	codes map[int]columnar.Status
}

// DefaultTable returns the code table used when none is supplied.
func DefaultTable() *Table {
	return &Table{codes: map[int]columnar.Status{
		CodeGeneric:               columnar.StatusGeneric,
		CodeInvalidCredential:     columnar.StatusInvalidCredential,
		CodeTimeout:               columnar.StatusTimeout,
		CodeQuery:                 columnar.StatusQuery,
		CodeInternalSDK:           columnar.StatusInternalSDK,
		CodeUnsuccessfulOperation: columnar.StatusUnsuccessfulOperation,
	}}
}

// NewTable builds a table from codes.
func NewTable(codes map[int]columnar.Status) *Table {
	return &Table{codes: maps.Clone(codes)}
}

// With returns a copy of t with code mapped to status.
func (t *Table) With(code int, status columnar.Status) *Table {
	codes := maps.Clone(t.codes)
	if codes == nil {
		codes = make(map[int]columnar.Status, 1)
	}
	codes[code] = status
	return &Table{codes: codes}
}

// Lookup returns the status of code, or StatusGeneric for unknown codes.
func (t *Table) Lookup(code int) columnar.Status {
	if t == nil {
		return columnar.StatusGeneric
	}
	if status, ok := t.codes[code]; ok {
		return status
	}
	return columnar.StatusGeneric
}
