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
	"math"
	"time"

	"github.com/spf13/cast"
)

// ScanConsistency is the consistency requirement of a query.
type ScanConsistency string

const (
	ScanConsistencyNotBounded  ScanConsistency = "not_bounded"
	ScanConsistencyRequestPlus ScanConsistency = "request_plus"
)

// QueryRequest is a fully built query, ready to be dispatched to an
// Engine. It is not modified after it has been built.
type QueryRequest struct {
	Statement            string
	PositionalParameters []any
	NamedParameters      map[string]any
	// Raw entries are forwarded to the engine as-is. A raw entry only
	// takes effect for a setting none of the other fields sets.
	Raw             map[string]any
	Timeout         time.Duration
	Deserializer    Deserializer
	Priority        bool
	ReadOnly        bool
	ScanConsistency ScanConsistency
	// QueryContext qualifies unqualified names in the statement, for
	// example "default:`travel`.`inventory`".
	QueryContext    string
	ClientContextID string
}

// QueryOptions are the per-query settings accepted by ExecuteQuery.
// Zero values mean "not set".
type QueryOptions struct {
	ClientContextID      string
	Deserializer         Deserializer
	NamedParameters      map[string]any
	PositionalParameters []any
	Priority             bool
	QueryContext         string
	Raw                  map[string]any
	ReadOnly             bool
	ScanConsistency      ScanConsistency
	Timeout              time.Duration

	// CancelToken makes a scope query cancelable while it is being
	// submitted; see CancelPollInterval.
	CancelToken *CancelToken
	// CancelPollInterval is how often CancelToken is checked while
	// waiting for the query to be ready. Defaults to 250ms.
	CancelPollInterval time.Duration
	// LazyExecute defers submission of a scope query until its rows are
	// first requested.
	LazyExecute bool
}

// DefaultCancelPollInterval is used when QueryOptions.CancelPollInterval
// is not set.
const DefaultCancelPollInterval = 250 * time.Millisecond

// SetOption sets one query option from its string-keyed form.
func (o *QueryOptions) SetOption(key string, val any) (err error) {
	switch key {
	case OptionKeyQueryClientContextID:
		o.ClientContextID, err = cast.ToStringE(val)
	case OptionKeyQueryPriority:
		o.Priority, err = cast.ToBoolE(val)
	case OptionKeyQueryReadOnly:
		o.ReadOnly, err = cast.ToBoolE(val)
	case OptionKeyQueryContext:
		o.QueryContext, err = cast.ToStringE(val)
	case OptionKeyQueryLazyExecute:
		o.LazyExecute, err = cast.ToBoolE(val)
	case OptionKeyQueryScanConsistency:
		var s string
		if s, err = cast.ToStringE(val); err == nil {
			switch sc := ScanConsistency(s); sc {
			case ScanConsistencyNotBounded, ScanConsistencyRequestPlus:
				o.ScanConsistency = sc
			default:
				return Error{
					Msg:  fmt.Sprintf("[Columnar] invalid scan consistency '%s'", s),
					Code: StatusInvalidArgument,
				}
			}
		}
	case OptionKeyQueryTimeoutPerRequest:
		return setDuration(key, val, &o.Timeout)
	case OptionKeyQueryCancelPollInterval:
		return setDuration(key, val, &o.CancelPollInterval)
	case OptionKeyQueryDeserializer:
		name, _ := val.(string)
		d, ok := DeserializerByName(name)
		if !ok {
			return Error{
				Msg:  fmt.Sprintf("[Columnar] unknown deserializer '%v'", val),
				Code: StatusInvalidArgument,
			}
		}
		o.Deserializer = d
	default:
		return Error{
			Msg:  fmt.Sprintf("[Columnar] Unknown query option '%s'", key),
			Code: StatusInvalidArgument,
		}
	}
	if err != nil {
		return Error{
			Msg:        fmt.Sprintf("[Columnar] invalid query option value %s = %v: %s", key, val, err),
			Code:       StatusInvalidArgument,
			InnerCause: err,
		}
	}
	return nil
}

// SecurityOptions configure how the engine trusts the cluster.
type SecurityOptions struct {
	TrustOnlyCapella                     bool
	TrustOnlyPemFile                     string
	TrustOnlyPemString                   string
	TrustOnlyCertificates                []string
	DisableServerCertificateVerification bool
}

// TimeoutOptions are the engine timeouts of a cluster.
type TimeoutOptions struct {
	ConnectTimeout       time.Duration
	DispatchTimeout      time.Duration
	DNSSRVTimeout        time.Duration
	ManagementTimeout    time.Duration
	QueryTimeout         time.Duration
	ResolveTimeout       time.Duration
	SocketConnectTimeout time.Duration
}

// DefaultTimeoutOptions returns the timeouts used when none are configured.
func DefaultTimeoutOptions() TimeoutOptions {
	return TimeoutOptions{
		ConnectTimeout:       10 * time.Second,
		DispatchTimeout:      30 * time.Second,
		DNSSRVTimeout:        500 * time.Millisecond,
		ManagementTimeout:    75 * time.Second,
		QueryTimeout:         10 * time.Minute,
		ResolveTimeout:       2 * time.Second,
		SocketConnectTimeout: 2 * time.Second,
	}
}

// TracingOptions configure OpenTelemetry tracing of a cluster.
type TracingOptions struct {
	// TraceParent is a W3C traceparent value all query spans are
	// parented to.
	TraceParent string
}

// ClusterOptions configure a cluster connection.
type ClusterOptions struct {
	Security SecurityOptions
	Timeout  TimeoutOptions
	Tracing  TracingOptions
	// Deserializer is the default deserializer of every query that does
	// not set its own.
	Deserializer Deserializer
	// ErrorRules classify HTTP-flavored engine errors before the numeric
	// error code is consulted.
	ErrorRules []ErrorRule
	// AllowUnknownQueryStringOptions keeps connection string parameters
	// the driver does not know about and passes them on to the engine.
	AllowUnknownQueryStringOptions bool
	// Extra holds the unknown connection string parameters kept because
	// of AllowUnknownQueryStringOptions.
	Extra map[string]any
}

// DefaultClusterOptions returns options with the default timeouts.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		Timeout:      DefaultTimeoutOptions(),
		Deserializer: DefaultDeserializer,
	}
}

// Validate checks the options for conflicting settings.
func (o *ClusterOptions) Validate() error {
	sec := o.Security
	if sec.TrustOnlyCapella && (sec.TrustOnlyPemFile != "" || sec.TrustOnlyPemString != "" || len(sec.TrustOnlyCertificates) > 0) {
		return Error{
			Msg:  "[Columnar] can only trust from Capella if trust_only_capella is set",
			Code: StatusInvalidArgument,
		}
	}
	for name, d := range map[string]time.Duration{
		OptionKeyConnectTimeout:       o.Timeout.ConnectTimeout,
		OptionKeyDispatchTimeout:      o.Timeout.DispatchTimeout,
		OptionKeyDNSSRVTimeout:        o.Timeout.DNSSRVTimeout,
		OptionKeyManagementTimeout:    o.Timeout.ManagementTimeout,
		OptionKeyQueryTimeout:         o.Timeout.QueryTimeout,
		OptionKeyResolveTimeout:       o.Timeout.ResolveTimeout,
		OptionKeySocketConnectTimeout: o.Timeout.SocketConnectTimeout,
	} {
		if d < 0 {
			return Error{
				Msg:  fmt.Sprintf("[Columnar] invalid timeout option value %s = %s: timeouts must be non-negative", name, d),
				Code: StatusInvalidArgument,
			}
		}
	}
	return nil
}

// SetOption sets one cluster option from its string-keyed form, as found
// in connection strings and DSNs. Unknown keys are an error unless
// AllowUnknownQueryStringOptions is set, in which case they are kept in
// Extra.
func (o *ClusterOptions) SetOption(key string, val any) (err error) {
	switch key {
	case OptionKeyConnectTimeout:
		return setDuration(key, val, &o.Timeout.ConnectTimeout)
	case OptionKeyDispatchTimeout:
		return setDuration(key, val, &o.Timeout.DispatchTimeout)
	case OptionKeyDNSSRVTimeout:
		return setDuration(key, val, &o.Timeout.DNSSRVTimeout)
	case OptionKeyManagementTimeout:
		return setDuration(key, val, &o.Timeout.ManagementTimeout)
	case OptionKeyQueryTimeout:
		return setDuration(key, val, &o.Timeout.QueryTimeout)
	case OptionKeyResolveTimeout:
		return setDuration(key, val, &o.Timeout.ResolveTimeout)
	case OptionKeySocketConnectTimeout:
		return setDuration(key, val, &o.Timeout.SocketConnectTimeout)
	case OptionKeyTrustOnlyCapella:
		o.Security.TrustOnlyCapella, err = cast.ToBoolE(val)
	case OptionKeyTrustOnlyPemFile:
		o.Security.TrustOnlyPemFile, err = cast.ToStringE(val)
	case OptionKeyDisableServerCheck:
		o.Security.DisableServerCertificateVerification, err = cast.ToBoolE(val)
	case OptionKeyAllowUnknownQueryStringOptions:
		o.AllowUnknownQueryStringOptions, err = cast.ToBoolE(val)
	case OptionKeyTelemetryTraceParent:
		o.Tracing.TraceParent, err = cast.ToStringE(val)
	case OptionKeyQueryDeserializer:
		name, _ := val.(string)
		d, ok := DeserializerByName(name)
		if !ok {
			return Error{
				Msg:  fmt.Sprintf("[Columnar] unknown deserializer '%v'", val),
				Code: StatusInvalidArgument,
			}
		}
		o.Deserializer = d
	default:
		if !o.AllowUnknownQueryStringOptions {
			return Error{
				Msg:  fmt.Sprintf("[Columnar] Unknown cluster option '%s'", key),
				Code: StatusInvalidArgument,
			}
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = val
	}
	if err != nil {
		return Error{
			Msg:        fmt.Sprintf("[Columnar] invalid cluster option value %s = %v: %s", key, val, err),
			Code:       StatusInvalidArgument,
			InnerCause: err,
		}
	}
	return nil
}

// setDuration parses a timeout. Numbers are seconds; strings may also
// use time.ParseDuration syntax ("1m30s").
func setDuration(key string, val any, dst *time.Duration) error {
	var d time.Duration
	switch v := val.(type) {
	case time.Duration:
		d = v
	case string:
		if secs, err := cast.ToFloat64E(v); err == nil {
			return setSeconds(key, secs, dst)
		}
		parsed, err := cast.ToDurationE(v)
		if err != nil {
			return Error{
				Msg:        fmt.Sprintf("[Columnar] invalid timeout option value %s = %s: %s", key, v, err),
				Code:       StatusInvalidArgument,
				InnerCause: err,
			}
		}
		d = parsed
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return Error{
				Msg:        fmt.Sprintf("[Columnar] invalid timeout option value %s = %v: %s", key, v, err),
				Code:       StatusInvalidArgument,
				InnerCause: err,
			}
		}
		return setSeconds(key, secs, dst)
	}
	if d < 0 {
		return Error{
			Msg:  fmt.Sprintf("[Columnar] invalid timeout option value %s = %s: timeouts must be non-negative and finite", key, d),
			Code: StatusInvalidArgument,
		}
	}
	*dst = d
	return nil
}

func setSeconds(key string, value float64, dst *time.Duration) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return Error{
			Msg:  fmt.Sprintf("[Columnar] invalid timeout option value %s = %f: timeouts must be non-negative and finite", key, value),
			Code: StatusInvalidArgument,
		}
	}
	*dst = time.Duration(value * float64(time.Second))
	return nil
}

// Credential is the username and password used to authenticate with the
// cluster.
type Credential struct {
	Username string
	Password string
}

// NewCredential validates and returns a Credential.
func NewCredential(username, password string) (Credential, error) {
	if username == "" || password == "" {
		return Credential{}, Error{
			Msg:  "[Columnar] the credential username and password must be non-empty",
			Code: StatusInvalidArgument,
		}
	}
	return Credential{Username: username, Password: password}, nil
}
