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

package columnar_test

import (
	"fmt"
	"strings"
	"time"

	"github.com/columnar-sdk/columnar-go"
)

func ExampleConfigProfiles_LoadYAML() {
	profiles := columnar.NewConfigProfiles()
	err := profiles.LoadYAML(strings.NewReader(`
profiles:
  slow_network:
    connect_timeout: 30s
    query_timeout: 20m
`))
	if err != nil {
		fmt.Println(err)
		return
	}

	opts := columnar.DefaultClusterOptions()
	if err := profiles.Apply("slow_network", &opts); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(profiles.Names())
	fmt.Println(opts.Timeout.ConnectTimeout, opts.Timeout.QueryTimeout)
	// Output:
	// [slow_network wan_development]
	// 30s 20m0s
}

func ExampleCancelToken() {
	token := columnar.NewCancelToken()
	go func() {
		time.Sleep(10 * time.Millisecond)
		token.Set()
	}()

	<-token.Done()
	fmt.Println(token.IsSet())
	// Output: true
}

func ExampleDecodeMetadata() {
	md, err := columnar.DecodeMetadata([]byte(`{
		"request_id": "94c7f89f",
		"status": "success",
		"metrics": {"elapsed_time": 1500000, "result_count": 3}
	}`))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(md.Status, md.Metrics.ElapsedTime, md.Metrics.ResultCount)
	// Output: success 1.5ms 3
}
