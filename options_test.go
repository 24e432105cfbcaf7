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
	"strings"
	"testing"
	"time"

	"github.com/columnar-sdk/columnar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryOptionTimeouts(t *testing.T) {
	tests := []struct {
		val  any
		want time.Duration
	}{
		{"2.5", 2500 * time.Millisecond},
		{"1m30s", 90 * time.Second},
		{3, 3 * time.Second},
		{0.25, 250 * time.Millisecond},
		{5 * time.Minute, 5 * time.Minute},
	}
	for _, tt := range tests {
		var opts columnar.QueryOptions
		require.NoError(t, opts.SetOption(columnar.OptionKeyQueryTimeoutPerRequest, tt.val))
		assert.Equal(t, tt.want, opts.Timeout, "value %v", tt.val)
	}

	for _, bad := range []any{"-1", -2, "NaN", "soon", -time.Second, []string{"1"}} {
		var opts columnar.QueryOptions
		err := opts.SetOption(columnar.OptionKeyQueryTimeoutPerRequest, bad)
		assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "value %v: %v", bad, err)
		assert.Zero(t, opts.Timeout)
	}
}

func TestQueryOptionValues(t *testing.T) {
	var opts columnar.QueryOptions
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryReadOnly, "true"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryPriority, true))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryClientContextID, "ctx-1"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryScanConsistency, "request_plus"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryContext, "default:`travel`.`inventory`"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryLazyExecute, "1"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryDeserializer, columnar.OptionValueDeserializerPassthrough))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryCancelPollInterval, "50ms"))

	assert.True(t, opts.ReadOnly)
	assert.True(t, opts.Priority)
	assert.Equal(t, "ctx-1", opts.ClientContextID)
	assert.Equal(t, columnar.ScanConsistencyRequestPlus, opts.ScanConsistency)
	assert.Equal(t, "default:`travel`.`inventory`", opts.QueryContext)
	assert.True(t, opts.LazyExecute)
	assert.Equal(t, columnar.PassthroughDeserializer{}, opts.Deserializer)
	assert.Equal(t, 50*time.Millisecond, opts.CancelPollInterval)
}

func TestQueryOptionErrors(t *testing.T) {
	tests := []struct {
		key string
		val any
	}{
		{columnar.OptionKeyQueryReadOnly, "maybe"},
		{columnar.OptionKeyQueryScanConsistency, "eventually"},
		{columnar.OptionKeyQueryDeserializer, "xml"},
		{"columnar.query.unknown", "x"},
	}
	for _, tt := range tests {
		var opts columnar.QueryOptions
		err := opts.SetOption(tt.key, tt.val)
		assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "%s = %v: %v", tt.key, tt.val, err)
	}
}

func TestClusterOptions(t *testing.T) {
	opts := columnar.DefaultClusterOptions()
	assert.Equal(t, columnar.DefaultTimeoutOptions(), opts.Timeout)
	assert.Equal(t, columnar.DefaultDeserializer, opts.Deserializer)

	require.NoError(t, opts.SetOption(columnar.OptionKeyConnectTimeout, "20s"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyQueryTimeout, 90))
	require.NoError(t, opts.SetOption(columnar.OptionKeyDisableServerCheck, "true"))
	require.NoError(t, opts.SetOption(columnar.OptionKeyTelemetryTraceParent, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"))
	assert.Equal(t, 20*time.Second, opts.Timeout.ConnectTimeout)
	assert.Equal(t, 90*time.Second, opts.Timeout.QueryTimeout)
	assert.True(t, opts.Security.DisableServerCertificateVerification)
	assert.NotEmpty(t, opts.Tracing.TraceParent)
	require.NoError(t, opts.Validate())

	err := opts.SetOption("compression", "zstd")
	assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument))
	assert.Nil(t, opts.Extra)

	require.NoError(t, opts.SetOption(columnar.OptionKeyAllowUnknownQueryStringOptions, "true"))
	require.NoError(t, opts.SetOption("compression", "zstd"))
	assert.Equal(t, map[string]any{"compression": "zstd"}, opts.Extra)
}

func TestClusterOptionsValidate(t *testing.T) {
	opts := columnar.DefaultClusterOptions()
	opts.Security.TrustOnlyCapella = true
	opts.Security.TrustOnlyPemFile = "/etc/ssl/cluster.pem"
	assert.True(t, columnar.IsStatus(opts.Validate(), columnar.StatusInvalidArgument))

	opts = columnar.DefaultClusterOptions()
	opts.Timeout.DispatchTimeout = -time.Second
	assert.ErrorContains(t, opts.Validate(), columnar.OptionKeyDispatchTimeout)
}

func TestNewCredential(t *testing.T) {
	cred, err := columnar.NewCredential("Administrator", "password")
	require.NoError(t, err)
	assert.Equal(t, columnar.Credential{Username: "Administrator", Password: "password"}, cred)

	for _, pair := range [][2]string{{"", "password"}, {"Administrator", ""}} {
		_, err := columnar.NewCredential(pair[0], pair[1])
		assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument))
	}
}

func TestConfigProfiles(t *testing.T) {
	profiles := columnar.NewConfigProfiles()
	assert.Equal(t, []string{columnar.ConfigProfileWanDevelopment}, profiles.Names())

	opts := columnar.DefaultClusterOptions()
	require.NoError(t, profiles.Apply(columnar.ConfigProfileWanDevelopment, &opts))
	assert.Equal(t, 60*time.Second, opts.Timeout.ConnectTimeout)
	assert.Equal(t, 15*time.Minute, opts.Timeout.QueryTimeout)

	custom := columnar.ConfigProfileFunc(func(o *columnar.ClusterOptions) error {
		o.Timeout.QueryTimeout = time.Hour
		return nil
	})
	require.NoError(t, profiles.Register("batch", custom))
	require.NoError(t, profiles.Apply("batch", &opts))
	assert.Equal(t, time.Hour, opts.Timeout.QueryTimeout)

	assert.NotNil(t, profiles.Unregister("batch"))
	assert.Nil(t, profiles.Unregister("batch"))
	assert.True(t, columnar.IsStatus(profiles.Apply("batch", &opts), columnar.StatusInvalidArgument))
	assert.True(t, columnar.IsStatus(profiles.Register("nil", nil), columnar.StatusInvalidArgument))
}

func TestConfigProfilesYAML(t *testing.T) {
	profiles := columnar.NewConfigProfiles()
	require.NoError(t, profiles.LoadYAML(strings.NewReader("")))

	err := profiles.LoadYAML(strings.NewReader("profiles: [not, a, map]"))
	assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "got %v", err)

	// one invalid profile rejects the whole document
	err = profiles.LoadYAML(strings.NewReader(`
profiles:
  good:
    query_timeout: 30s
  bad:
    query_timeout: never
`))
	assert.True(t, columnar.IsStatus(err, columnar.StatusInvalidArgument), "got %v", err)
	assert.ErrorContains(t, err, "bad")
	assert.Equal(t, []string{columnar.ConfigProfileWanDevelopment}, profiles.Names())
}
