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

package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/schema"
	"github.com/lain-cli/lain/pkg/values"
)

// ValuesFileName is the app values file inside the chart directory.
const ValuesFileName = "values.yaml"

// ErrNotAppRepo is returned when the working directory has no chart values.
var ErrNotAppRepo = apperrors.New(apperrors.ErrCodeNotFound, "not in a lain app repo")

// Resource is one side of a container's resources, parsed.
type Resource struct {
	CPUMillis   int64
	MemoryBytes int64
}

// Proc is a deployment, cronjob, statefulSet or job of the app.
type Proc struct {
	Name string
	// Kind is the values key the proc was declared under.
	Kind string

	ReplicaCount int
	Requests     *Resource
	Limits       *Resource

	Raw map[string]any
}

// Ingress is an entry of ingresses or externalIngresses.
type Ingress struct {
	Host       string
	DeployName string
	Paths      []string
}

// Values is the validated app values.
type Values struct {
	Appname     string
	ReleaseName string

	// Procs holds deployments, cronjobs and statefulSets by name.
	Procs        map[string]*Proc
	Deployments  map[string]*Proc
	Jobs         map[string]*Proc
	Cronjobs     map[string]*Proc
	StatefulSets map[string]*Proc

	Ingresses         []Ingress
	ExternalIngresses []Ingress

	Raw values.Tree
}

// LoadValues reads chartDir/values.yaml, merges the cluster layers on top
// and validates the result. cluster may be empty, in which case only
// values.yaml and the extra values file of the resolver are used.
func LoadValues(chartDir string, r *cluster.Resolver, clusterName string) (*Values, error) {
	p := filepath.Join(chartDir, ValuesFileName)
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("%s: %w", p, ErrNotAppRepo)
	}
	base, err := values.LoadFile(p)
	if err != nil {
		return nil, err
	}

	var layers []values.Layer
	if clusterName != "" {
		layers, err = r.Layers(clusterName, false)
		if err != nil {
			return nil, err
		}
	} else if extra := r.Options().ExtraValuesFile; extra != "" {
		t, err := values.LoadFile(extra)
		if err != nil {
			return nil, err
		}
		layers = append(layers, values.Layer{Name: "extra", Path: extra, Tree: t})
	}

	merged, err := values.MergeLayers(base, layers...)
	if err != nil {
		return nil, cluster.DuplicationError(err)
	}
	appname := values.GetString(merged, "appname", "")
	for _, l := range layers {
		if l.Name != "internal" && !CheckCorrectOverride(appname, l.Tree) {
			slog.Warn("build is overridden without overriding appname, images of both builds share one repository",
				"file", l.Path)
		}
	}

	loaded, err := schema.Load(schema.HelmValues, merged, schema.LoadContext{})
	if err != nil {
		if errors.Is(err, schema.ErrValidation) {
			return nil, apperrors.WrapWithContext(apperrors.ErrCodeValidation,
				"your values.yaml did not pass schema check", err,
				map[string]any{"file": p})
		}
		return nil, err
	}
	return NewValues(loaded), nil
}

// OverriddenBuilds lists the values files of chartDir that override build
// without overriding appname. appname is the one declared in values.yaml.
func OverriddenBuilds(chartDir, appname string) ([]string, error) {
	entries, err := os.ReadDir(chartDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to read chart dir", err)
	}
	var bad []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == ValuesFileName || filepath.Ext(name) == ".j2" || !IsValuesFile(name) {
			continue
		}
		p := filepath.Join(chartDir, name)
		t, err := values.LoadFile(p)
		if err != nil {
			return nil, err
		}
		if !CheckCorrectOverride(values.GetString(t, "appname", appname), t) {
			bad = append(bad, p)
		}
	}
	return bad, nil
}

// NewValues builds typed Values from a tree that passed schema.HelmValues.
func NewValues(t values.Tree) *Values {
	v := &Values{
		Appname:     values.GetString(t, "appname", ""),
		ReleaseName: values.GetString(t, "releaseName", ""),
		Procs:       map[string]*Proc{},
		Jobs:        procs(t, "jobs"),
		Raw:         t,
	}
	v.Deployments = procs(t, "deployments")
	v.Cronjobs = procs(t, "cronjobs")
	v.StatefulSets = procs(t, "statefulSets")
	for _, m := range []map[string]*Proc{v.Deployments, v.Cronjobs, v.StatefulSets} {
		for name, p := range m {
			v.Procs[name] = p
		}
	}
	v.Ingresses = ingresses(t["ingresses"])
	v.ExternalIngresses = ingresses(t["externalIngresses"])
	return v
}

func procs(t values.Tree, kind string) map[string]*Proc {
	out := map[string]*Proc{}
	m, _ := t[kind].(map[string]any)
	for name, raw := range m {
		pm, _ := raw.(map[string]any)
		p := &Proc{Name: name, Kind: kind, ReplicaCount: 1, Raw: pm}
		if n, ok := pm["replicaCount"].(int); ok {
			p.ReplicaCount = n
		}
		if res, ok := pm["resources"].(map[string]any); ok {
			p.Requests = resource(res["requests"])
			p.Limits = resource(res["limits"])
		}
		out[name] = p
	}
	return out
}

func resource(v any) *Resource {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	r := &Resource{}
	r.CPUMillis, _ = schema.ParseCPU(m["cpu"])
	r.MemoryBytes, _ = schema.ParseSize(m["memory"])
	return r
}

func ingresses(v any) []Ingress {
	list, _ := v.([]any)
	out := make([]Ingress, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ing := Ingress{}
		ing.Host, _ = m["host"].(string)
		ing.DeployName, _ = m["deployName"].(string)
		paths, _ := m["paths"].([]any)
		for _, p := range paths {
			if s, ok := p.(string); ok {
				ing.Paths = append(ing.Paths, s)
			}
		}
		out = append(out, ing)
	}
	return out
}

// Release returns releaseName, falling back to appname.
func (v *Values) Release() string {
	if v.ReleaseName != "" {
		return v.ReleaseName
	}
	return v.Appname
}

// SecretName is the Kubernetes secret holding the app's secret files.
func (v *Values) SecretName() string {
	return v.Appname + "-secret"
}

// EnvName is the Kubernetes secret holding the app's env vars.
func (v *Values) EnvName() string {
	return v.Appname + "-env"
}

// ProcNames returns the names of every proc, sorted.
func (v *Values) ProcNames() []string {
	names := make([]string, 0, len(v.Procs))
	for n := range v.Procs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Proc looks up a proc by name.
func (v *Values) Proc(name string) (*Proc, error) {
	p, ok := v.Procs[name]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s not found in procs, choose from %v", name, v.ProcNames()))
	}
	return p, nil
}

// PodsCount is the number of pods the deployments ask for.
func (v *Values) PodsCount() int {
	n := 0
	for _, p := range v.Deployments {
		n += p.ReplicaCount
	}
	return n
}
