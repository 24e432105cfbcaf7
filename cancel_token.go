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
	"sync"
	"time"
)

// CancelToken is a one-way signal used to cancel a query from another
// goroutine. The zero value is ready to use.
type CancelToken struct {
	initOnce sync.Once
	setOnce  sync.Once
	ch       chan struct{}
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken { return &CancelToken{} }

func (t *CancelToken) init() {
	t.initOnce.Do(func() { t.ch = make(chan struct{}) })
}

// Set fires the token. Setting an already set token is a no-op.
func (t *CancelToken) Set() {
	t.init()
	t.setOnce.Do(func() { close(t.ch) })
}

// IsSet reports whether Set has been called.
func (t *CancelToken) IsSet() bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the token is set.
func (t *CancelToken) Done() <-chan struct{} {
	t.init()
	return t.ch
}

// Wait blocks until the token is set or timeout elapses, and reports
// whether the token is set.
func (t *CancelToken) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return t.IsSet()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.Done():
		return true
	case <-timer.C:
		return false
	}
}
