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

package streaming

import (
	"time"

	"github.com/columnar-sdk/columnar-go"
)

// CancelPolicy selects how a submission waits for the engine and how it
// can be interrupted. It is one of NoCancel, PolledCancel or Cooperative.
type CancelPolicy interface {
	cancelPolicy()
}

// NoCancel blocks on the engine until the result is ready. Only the
// submission context can interrupt it.
type NoCancel struct{}

// PolledCancel waits for the engine on a background worker while the
// caller checks Token every Interval. Setting the token cancels the query.
type PolledCancel struct {
	Token *columnar.CancelToken
	// Interval defaults to columnar.DefaultCancelPollInterval.
	Interval time.Duration
}

// Cooperative leaves cancellation to explicit Cancel calls, which are
// forwarded to the engine handle.
type Cooperative struct{}

func (NoCancel) cancelPolicy()     {}
func (PolledCancel) cancelPolicy() {}
func (Cooperative) cancelPolicy()  {}

func (p PolledCancel) interval() time.Duration {
	if p.Interval <= 0 {
		return columnar.DefaultCancelPollInterval
	}
	return p.Interval
}

// PolicyFor returns PolledCancel when token is set and NoCancel otherwise.
func PolicyFor(token *columnar.CancelToken, interval time.Duration) CancelPolicy {
	if token == nil {
		return NoCancel{}
	}
	return PolledCancel{Token: token, Interval: interval}
}
