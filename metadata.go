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
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// QueryStatus is the status of a query at the time its metadata was
// generated.
type QueryStatus string

const (
	QueryStatusRunning   QueryStatus = "running"
	QueryStatusSuccess   QueryStatus = "success"
	QueryStatusErrors    QueryStatus = "errors"
	QueryStatusCompleted QueryStatus = "completed"
	QueryStatusStopped   QueryStatus = "stopped"
	QueryStatusTimeout   QueryStatus = "timeout"
	QueryStatusClosed    QueryStatus = "closed"
	QueryStatusFatal     QueryStatus = "fatal"
	QueryStatusAborted   QueryStatus = "aborted"
	QueryStatusUnknown   QueryStatus = "unknown"
)

// ParseQueryStatus maps a wire status onto a QueryStatus. Unrecognized
// values become QueryStatusUnknown.
func ParseQueryStatus(s string) QueryStatus {
	switch st := QueryStatus(s); st {
	case QueryStatusRunning, QueryStatusSuccess, QueryStatusErrors,
		QueryStatusCompleted, QueryStatusStopped, QueryStatusTimeout,
		QueryStatusClosed, QueryStatusFatal, QueryStatusAborted:
		return st
	default:
		return QueryStatusUnknown
	}
}

// Problem is a warning or an error reported in query metadata.
type Problem struct {
	Code    int
	Message string
}

func (p Problem) String() string { return fmt.Sprintf("%d %s", p.Code, p.Message) }

// Metrics are the execution metrics of a query.
type Metrics struct {
	// ElapsedTime is the total time spent running the query.
	ElapsedTime time.Duration
	// ExecutionTime is the time spent executing the query.
	ExecutionTime    time.Duration
	ResultCount      uint64
	ResultSize       uint64
	ProcessedObjects uint64
	ErrorCount       uint64
	WarningCount     uint64
}

// Metadata is the trailing metadata of a query. It is only available once
// all rows have been consumed.
type Metadata struct {
	RequestID       string
	ClientContextID string
	Status          QueryStatus
	Signature       json.RawMessage
	Warnings        []Problem
	Errors          []Problem
	// Metrics is nil if the engine did not report any.
	Metrics *Metrics
	Profile json.RawMessage
}

type jsonProblem struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Msg     string `json:"msg,omitempty"`
}

type jsonMetrics struct {
	ElapsedTime      int64  `json:"elapsed_time"`
	ExecutionTime    int64  `json:"execution_time"`
	ResultCount      uint64 `json:"result_count"`
	ResultSize       uint64 `json:"result_size"`
	ProcessedObjects uint64 `json:"processed_objects"`
	ErrorCount       uint64 `json:"error_count"`
	WarningCount     uint64 `json:"warning_count"`
}

type jsonMetadata struct {
	RequestID       string          `json:"request_id"`
	ClientContextID string          `json:"client_context_id"`
	Status          string          `json:"status"`
	Signature       json.RawMessage `json:"signature,omitempty"`
	Warnings        []jsonProblem   `json:"warnings,omitempty"`
	Errors          []jsonProblem   `json:"errors,omitempty"`
	Metrics         *jsonMetrics    `json:"metrics,omitempty"`
	Profile         json.RawMessage `json:"profile,omitempty"`
}

func problemsFromJSON(in []jsonProblem) []Problem {
	if in == nil {
		return nil
	}
	out := make([]Problem, len(in))
	for i, p := range in {
		msg := p.Message
		if msg == "" {
			msg = p.Msg
		}
		out[i] = Problem{Code: p.Code, Message: msg}
	}
	return out
}

func problemsToJSON(in []Problem) []jsonProblem {
	if in == nil {
		return nil
	}
	out := make([]jsonProblem, len(in))
	for i, p := range in {
		out[i] = jsonProblem{Code: p.Code, Message: p.Message}
	}
	return out
}

// DecodeMetadata parses the wire form of query metadata. Durations are
// encoded as integer nanoseconds.
func DecodeMetadata(raw []byte) (*Metadata, error) {
	var m jsonMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding query metadata: %w", err)
	}

	md := &Metadata{
		RequestID:       m.RequestID,
		ClientContextID: m.ClientContextID,
		Status:          ParseQueryStatus(m.Status),
		Signature:       m.Signature,
		Warnings:        problemsFromJSON(m.Warnings),
		Errors:          problemsFromJSON(m.Errors),
		Profile:         m.Profile,
	}
	if m.Metrics != nil {
		md.Metrics = &Metrics{
			ElapsedTime:      time.Duration(m.Metrics.ElapsedTime),
			ExecutionTime:    time.Duration(m.Metrics.ExecutionTime),
			ResultCount:      m.Metrics.ResultCount,
			ResultSize:       m.Metrics.ResultSize,
			ProcessedObjects: m.Metrics.ProcessedObjects,
			ErrorCount:       m.Metrics.ErrorCount,
			WarningCount:     m.Metrics.WarningCount,
		}
	}
	return md, nil
}

// EncodeMetadata is the inverse of DecodeMetadata.
func EncodeMetadata(md *Metadata) ([]byte, error) {
	m := jsonMetadata{
		RequestID:       md.RequestID,
		ClientContextID: md.ClientContextID,
		Status:          string(md.Status),
		Signature:       md.Signature,
		Warnings:        problemsToJSON(md.Warnings),
		Errors:          problemsToJSON(md.Errors),
		Profile:         md.Profile,
	}
	if md.Metrics != nil {
		m.Metrics = &jsonMetrics{
			ElapsedTime:      int64(md.Metrics.ElapsedTime),
			ExecutionTime:    int64(md.Metrics.ExecutionTime),
			ResultCount:      md.Metrics.ResultCount,
			ResultSize:       md.Metrics.ResultSize,
			ProcessedObjects: md.Metrics.ProcessedObjects,
			ErrorCount:       md.Metrics.ErrorCount,
			WarningCount:     md.Metrics.WarningCount,
		}
	}
	return json.Marshal(m)
}
