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
	"io"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigProfileWanDevelopment raises timeouts to values suited to
// developing against a cluster over a WAN.
const ConfigProfileWanDevelopment = "wan_development"

// ConfigProfile is a named set of cluster option overrides.
//
// EXPERIMENTAL. Subject to change.
type ConfigProfile interface {
	// Apply overrides the matching fields of opts.
	Apply(opts *ClusterOptions) error
}

// ConfigProfileFunc adapts a function to the ConfigProfile interface.
type ConfigProfileFunc func(opts *ClusterOptions) error

func (f ConfigProfileFunc) Apply(opts *ClusterOptions) error { return f(opts) }

// WanDevelopmentProfile returns the wan_development profile.
func WanDevelopmentProfile() ConfigProfile {
	return ConfigProfileFunc(func(opts *ClusterOptions) error {
		opts.Timeout.ConnectTimeout = 60 * time.Second
		opts.Timeout.DispatchTimeout = 120 * time.Second
		opts.Timeout.DNSSRVTimeout = 20 * time.Second
		opts.Timeout.QueryTimeout = 15 * time.Minute
		opts.Timeout.ResolveTimeout = 20 * time.Second
		opts.Timeout.SocketConnectTimeout = 20 * time.Second
		return nil
	})
}

// optionsProfile is a profile read from YAML: a set of string-keyed
// cluster options.
type optionsProfile map[string]string

func (p optionsProfile) Apply(opts *ClusterOptions) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := opts.SetOption(k, p[k]); err != nil {
			return err
		}
	}
	return nil
}

// ConfigProfiles keeps track of the registered configuration profiles.
// It is safe for concurrent use.
//
// EXPERIMENTAL. Subject to change.
type ConfigProfiles struct {
	mu       sync.RWMutex
	profiles map[string]ConfigProfile
}

// NewConfigProfiles returns a registry holding the known profiles.
func NewConfigProfiles() *ConfigProfiles {
	p := &ConfigProfiles{profiles: make(map[string]ConfigProfile)}
	p.profiles[ConfigProfileWanDevelopment] = WanDevelopmentProfile()
	return p
}

// Register adds or replaces a profile.
func (p *ConfigProfiles) Register(name string, profile ConfigProfile) error {
	if profile == nil {
		return Error{
			Msg:  fmt.Sprintf("[Columnar] profile '%s' must not be nil", name),
			Code: StatusInvalidArgument,
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[name] = profile
	return nil
}

// Unregister removes a profile and returns it, or nil if it was not
// registered.
func (p *ConfigProfiles) Unregister(name string) ConfigProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[name]
	if !ok {
		return nil
	}
	delete(p.profiles, name)
	return profile
}

// Apply applies the named profile to opts. The profile overrides any
// matching option previously set.
func (p *ConfigProfiles) Apply(name string, opts *ClusterOptions) error {
	p.mu.RLock()
	profile, ok := p.profiles[name]
	p.mu.RUnlock()
	if !ok {
		return Error{
			Msg:  fmt.Sprintf("[Columnar] %s is not a registered profile", name),
			Code: StatusInvalidArgument,
		}
	}
	return profile.Apply(opts)
}

// Names returns the registered profile names in sorted order.
func (p *ConfigProfiles) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.profiles))
	for name := range p.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type profilesFile struct {
	Profiles map[string]map[string]string `yaml:"profiles"`
}

// LoadYAML registers every profile found in r. The document has the form
//
//	profiles:
//	  slow_network:
//	    connect_timeout: 30s
//	    query_timeout: 20m
//
// where each key is a cluster option key. Profiles are validated before
// any of them is registered.
func (p *ConfigProfiles) LoadYAML(r io.Reader) error {
	var f profilesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil
		}
		return Error{
			Msg:        fmt.Sprintf("[Columnar] invalid profiles document: %s", err),
			Code:       StatusInvalidArgument,
			InnerCause: err,
		}
	}

	loaded := make(map[string]ConfigProfile, len(f.Profiles))
	for name, values := range f.Profiles {
		profile := optionsProfile(values)
		scratch := DefaultClusterOptions()
		if err := profile.Apply(&scratch); err != nil {
			return fmt.Errorf("profile '%s': %w", name, err)
		}
		loaded[name] = profile
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name, profile := range loaded {
		p.profiles[name] = profile
	}
	return nil
}
