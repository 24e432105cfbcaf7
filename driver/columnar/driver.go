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

// Package columnar is the client driver for the Columnar analytics query
// service. Connect opens a Cluster over the engine registered for the
// connection string scheme:
//
//	cluster, err := columnar.Connect(ctx, "sqlite://", cred)
//	if err != nil { ... }
//	defer cluster.Close()
//
//	res, err := cluster.ExecuteQuery(ctx, "SELECT 1;")
//	rows, err := res.GetAllRows(ctx)
//
// Queries run against a Cluster directly, or against a Scope which
// qualifies unqualified names with its database and scope.
package columnar

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/internal/driverbase"
	"github.com/columnar-sdk/columnar-go/errmap"
	"github.com/spf13/cast"
)

// DriverName prefixes every error message raised by the driver.
const DriverName = "Columnar"

// Driver creates clusters. It holds the configuration profiles and the
// arrow allocator shared by its clusters.
type Driver struct {
	driverbase.DriverImplBase
	profiles *sdk.ConfigProfiles
}

// NewDriver creates a driver. A nil alloc uses memory.DefaultAllocator.
func NewDriver(alloc memory.Allocator) *Driver {
	info := driverbase.DefaultDriverInfo(DriverName)
	return &Driver{
		DriverImplBase: driverbase.NewDriverImplBase(info, alloc),
		profiles:       sdk.NewConfigProfiles(),
	}
}

// Profiles returns the configuration profiles usable with WithProfile
// and the config_profile connection string parameter.
func (d *Driver) Profiles() *sdk.ConfigProfiles { return d.profiles }

// Info returns the vendor and build information of the driver, keyed by
// info code name.
func (d *Driver) Info() map[string]any {
	return infoMap(d.DriverInfo)
}

func infoMap(di *driverbase.DriverInfo) map[string]any {
	out := make(map[string]any)
	for _, code := range di.InfoSupportedCodes() {
		if v, ok := di.GetInfoForInfoCode(code); ok {
			out[code.String()] = v
		}
	}
	return out
}

var defaultDriver = sync.OnceValue(func() *Driver { return NewDriver(nil) })

// Connect opens a cluster with the default driver.
func Connect(ctx context.Context, connstr string, cred sdk.Credential, opts ...ClusterOption) (*Cluster, error) {
	return defaultDriver().Connect(ctx, connstr, cred, opts...)
}

// ConnectAsync opens an async cluster with the default driver.
func ConnectAsync(ctx context.Context, connstr string, cred sdk.Credential, opts ...ClusterOption) (*AsyncCluster, error) {
	return defaultDriver().ConnectAsync(ctx, connstr, cred, opts...)
}

// ClusterOption customizes Connect.
type ClusterOption func(*clusterConfig)

type clusterConfig struct {
	options *sdk.ClusterOptions
	profile string
	logger  *slog.Logger
	engine  sdk.Engine
	rules   []sdk.ErrorRule
}

// WithClusterOptions uses opts instead of sdk.DefaultClusterOptions.
// Profiles and connection string parameters are applied on top of it.
func WithClusterOptions(opts sdk.ClusterOptions) ClusterOption {
	return func(c *clusterConfig) { c.options = &opts }
}

// WithProfile applies a registered configuration profile.
func WithProfile(name string) ClusterOption {
	return func(c *clusterConfig) { c.profile = name }
}

func WithLogger(logger *slog.Logger) ClusterOption {
	return func(c *clusterConfig) { c.logger = logger }
}

// WithEngine uses engine instead of opening one through the registry.
// The scheme of the connection string is then only informative. The
// cluster takes ownership of engine.
func WithEngine(engine sdk.Engine) ClusterOption {
	return func(c *clusterConfig) { c.engine = engine }
}

// WithErrorRules adds rules classifying engine errors by their message
// or HTTP body.
func WithErrorRules(rules ...sdk.ErrorRule) ClusterOption {
	return func(c *clusterConfig) { c.rules = append(c.rules, rules...) }
}

// Connect parses connstr, resolves the cluster options and opens the
// engine registered for the connection string scheme.
func (d *Driver) Connect(ctx context.Context, connstr string, cred sdk.Credential, opts ...ClusterOption) (*Cluster, error) {
	var cfg clusterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := ParseConnectionString(connstr)
	if err != nil {
		return nil, err
	}
	options, err := d.clusterOptions(&cfg, spec)
	if err != nil {
		return nil, err
	}

	base, err := driverbase.NewClusterImplBase(ctx, &d.DriverImplBase)
	if err != nil {
		return nil, err
	}
	base.DriverInfo = d.DriverInfo.Clone()
	if err := base.DriverInfo.RegisterInfoCode(driverbase.InfoEngineName, spec.Scheme); err != nil {
		return nil, err
	}
	base.SetLogger(cfg.logger)
	base.SetTraceParent(options.Tracing.TraceParent)

	engine := cfg.engine
	if engine == nil {
		factory, err := sdk.LookupEngine(spec.Scheme)
		if err != nil {
			_ = base.Close()
			return nil, err
		}
		engine, err = factory(ctx, sdk.EngineConfig{
			Scheme:     spec.Scheme,
			Host:       spec.Host,
			Path:       spec.Path,
			Params:     options.Extra,
			Credential: cred,
			Options:    options,
			Logger:     base.Logger,
		})
		if err != nil {
			_ = base.Close()
			return nil, base.ErrorHelper.Wrap(err, sdk.StatusGeneric, "could not open %s engine", spec.Scheme)
		}
	}
	if el, ok := engine.(sdk.EngineLogging); ok {
		el.SetLogger(base.Logger)
	}

	cluster := &Cluster{
		ClusterImplBase: base,
		alloc:           d.Alloc,
		engine:          engine,
		options:         options,
		spec:            spec,
		mapper:          errmap.New(nil, errmap.WithRules(options.ErrorRules...)),
	}
	base.Logger.InfoContext(ctx, "cluster connected", "scheme", spec.Scheme, "host", spec.Host)
	return cluster, nil
}

// ConnectAsync is Connect for the async flavor.
func (d *Driver) ConnectAsync(ctx context.Context, connstr string, cred sdk.Credential, opts ...ClusterOption) (*AsyncCluster, error) {
	cluster, err := d.Connect(ctx, connstr, cred, opts...)
	if err != nil {
		return nil, err
	}
	return newAsyncCluster(cluster), nil
}

// clusterOptions resolves, in order: the base options, the profile, and
// the connection string parameters.
func (d *Driver) clusterOptions(cfg *clusterConfig, spec ConnSpec) (sdk.ClusterOptions, error) {
	options := sdk.DefaultClusterOptions()
	if cfg.options != nil {
		options = *cfg.options
		if options.Deserializer == nil {
			options.Deserializer = sdk.DefaultDeserializer
		}
	}
	options.ErrorRules = append(slices.Clone(options.ErrorRules), cfg.rules...)

	params := make(map[string]any, len(spec.Params))
	for k, v := range spec.Params {
		params[k] = v
	}

	profile := cfg.profile
	if p, ok := params[sdk.OptionKeyConfigProfile]; ok {
		delete(params, sdk.OptionKeyConfigProfile)
		name, err := cast.ToStringE(p)
		if err != nil {
			return options, d.ErrorHelper.Errorf(sdk.StatusInvalidArgument, "invalid %s '%v'", sdk.OptionKeyConfigProfile, p)
		}
		profile = name
	}
	if profile != "" {
		if err := d.profiles.Apply(profile, &options); err != nil {
			return options, err
		}
	}

	// allow_unknown_qstr_options decides how every other key is handled
	if v, ok := params[sdk.OptionKeyAllowUnknownQueryStringOptions]; ok {
		delete(params, sdk.OptionKeyAllowUnknownQueryStringOptions)
		if err := options.SetOption(sdk.OptionKeyAllowUnknownQueryStringOptions, v); err != nil {
			return options, err
		}
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := options.SetOption(k, params[k]); err != nil {
			return options, err
		}
	}

	if err := options.Validate(); err != nil {
		return options, err
	}
	return options, nil
}
