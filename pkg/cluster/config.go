// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cluster

import (
	"strconv"

	"github.com/lain-cli/lain/pkg/values"
)

const defaultIngressPort = 80

// HostAlias is an /etc/hosts entry the cluster expects.
type HostAlias struct {
	IP        string   `json:"ip" yaml:"ip"`
	Hostnames []string `json:"hostnames" yaml:"hostnames"`
}

// PQLTemplate holds the Prometheus query templates used by lain top and lint.
type PQLTemplate struct {
	CPU    string `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// Config is the validated configuration of one cluster. Raw holds the full
// tree, including keys without a typed field.
type Config struct {
	Name      string `json:"name" yaml:"name"`
	IsCurrent bool   `json:"isCurrent" yaml:"isCurrent"`

	Namespace           string      `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Domain              string      `json:"domain,omitempty" yaml:"domain,omitempty"`
	DomainSuffix        string      `json:"domainSuffix,omitempty" yaml:"domainSuffix,omitempty"`
	Registry            string      `json:"registry,omitempty" yaml:"registry,omitempty"`
	InternalRegistry    string      `json:"internalRegistry,omitempty" yaml:"internalRegistry,omitempty"`
	RegistryType        string      `json:"registryType,omitempty" yaml:"registryType,omitempty"`
	Prometheus          string      `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
	ExtraDocs           string      `json:"extraDocs,omitempty" yaml:"extraDocs,omitempty"`
	SphinxDocsURL       string      `json:"sphinxDocsURL,omitempty" yaml:"sphinxDocsURL,omitempty"`
	IngressInternalPort int         `json:"ingressInternalPort" yaml:"ingressInternalPort"`
	IngressExternalPort int         `json:"ingressExternalPort" yaml:"ingressExternalPort"`
	HostAliases         []HostAlias `json:"hostAliases,omitempty" yaml:"hostAliases,omitempty"`
	PQLTemplate         PQLTemplate `json:"pqlTemplate" yaml:"pqlTemplate"`

	Raw values.Tree `json:"-" yaml:"-"`
}

// Empty reports whether no internal defaults were found for the cluster.
func (c *Config) Empty() bool {
	return c == nil || len(c.Raw) == 0
}

// TellDomainSuffix returns domain_suffix, falling back to "." + domain.
func (c *Config) TellDomainSuffix() string {
	if c == nil {
		return ""
	}
	if c.DomainSuffix != "" {
		return c.DomainSuffix
	}
	if c.Domain != "" {
		return "." + c.Domain
	}
	return ""
}

// Get reads an arbitrary dotted key from the raw tree.
func (c *Config) Get(path string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return values.Get(c.Raw, path)
}

func newConfig(name string, isCurrent bool, raw values.Tree) *Config {
	if raw == nil {
		raw = values.Tree{}
	}
	c := &Config{
		Name:                name,
		IsCurrent:           isCurrent,
		Namespace:           values.GetString(raw, "namespace", "default"),
		Domain:              values.GetString(raw, "domain", ""),
		DomainSuffix:        values.GetString(raw, "domain_suffix", ""),
		Registry:            values.GetString(raw, "registry", ""),
		InternalRegistry:    values.GetString(raw, "internalRegistry", ""),
		RegistryType:        values.GetString(raw, "registry_type", "registry"),
		Prometheus:          values.GetString(raw, "prometheus", ""),
		ExtraDocs:           values.GetString(raw, "extra_docs", ""),
		SphinxDocsURL:       values.GetString(raw, "sphinx_docs_url", ""),
		IngressInternalPort: intValue(raw["ingress_internal_port"], defaultIngressPort),
		IngressExternalPort: intValue(raw["ingress_external_port"], defaultIngressPort),
		PQLTemplate: PQLTemplate{
			CPU:    values.GetString(raw, "pql_template.cpu", ""),
			Memory: values.GetString(raw, "pql_template.memory_quantile", ""),
		},
		Raw: raw,
	}
	if list, ok := raw["hostAliases"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			ha := HostAlias{}
			ha.IP, _ = m["ip"].(string)
			names, _ := m["hostnames"].([]any)
			for _, n := range names {
				if s, ok := n.(string); ok {
					ha.Hostnames = append(ha.Hostnames, s)
				}
			}
			c.HostAliases = append(c.HostAliases, ha)
		}
	}
	return c
}

func intValue(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}
