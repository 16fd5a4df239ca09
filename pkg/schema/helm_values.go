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

package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lain-cli/lain/pkg/values"
)

// DefaultWorkdir is where the app lives inside its image.
const DefaultWorkdir = "/lain/app"

// CanaryAnnotations are the ingress annotations a canary group may set.
var CanaryAnnotations = []string{
	"nginx.ingress.kubernetes.io/canary-by-cookie",
	"nginx.ingress.kubernetes.io/canary-by-header",
	"nginx.ingress.kubernetes.io/canary-by-header-pattern",
	"nginx.ingress.kubernetes.io/canary-by-header-value",
	"nginx.ingress.kubernetes.io/canary-weight",
}

// ProcKinds are the maps whose entries become procs, in merge order.
var ProcKinds = []string{"deployments", "cronjobs", "statefulSets"}

// env keys and values must be strings, or helm renders numbers in
// scientific notation.
func envField() Field {
	return Field{Name: "env", Type: TypeMap, Nullable: true, Elem: &Field{Type: TypeString}}
}

var resourceSchema = &Schema{
	Name:   "Resource",
	Strict: true,
	Fields: []Field{
		{Name: "cpu", Required: true, Validate: validateCPU},
		{Name: "memory", Required: true, Validate: validateSize},
	},
}

var resourcesSchema = &Schema{
	Name:   "Resources",
	Strict: true,
	Fields: []Field{
		{Name: "requests", Type: TypeObject, Required: true, Schema: resourceSchema},
		{Name: "limits", Type: TypeObject, Required: true, Schema: resourceSchema},
	},
}

var hpaSchema = &Schema{
	Name: "HPA",
	PostLoad: []PostLoadFunc{func(data values.Tree, _ LoadContext) error {
		if _, ok := data["targetCPUUtilizationPercentage"]; ok {
			return errors.New("you should remove targetCPUUtilizationPercentage from hpa, and use hpa.metrics")
		}
		return nil
	}},
}

var initContainerSchema = &Schema{
	Name:   "InitContainer",
	Fields: []Field{envField()},
}

var deploymentSchema = &Schema{
	Name: "Deployment",
	Fields: []Field{
		envField(),
		{Name: "hpa", Type: TypeObject, Schema: hpaSchema},
		{Name: "containerPort", Type: TypeInt},
		{Name: "readinessProbe", Default: emptyMap},
		{Name: "replicaCount", Type: TypeInt, Required: true},
		{Name: "resources", Type: TypeObject, Required: true, Schema: resourcesSchema},
	},
}

var jobSchema = &Schema{
	Name: "Job",
	Fields: []Field{
		envField(),
		{Name: "initContainers", Type: TypeList, Elem: &Field{Type: TypeObject, Schema: initContainerSchema}},
	},
}

var cronjobSchema = &Schema{
	Name: "Cronjob",
	Fields: []Field{
		{Name: "resources", Type: TypeObject, Schema: resourcesSchema},
		envField(),
	},
}

var ingressSchema = &Schema{
	Name: "Ingress",
	Fields: []Field{
		{Name: "host", Type: TypeString, Required: true},
		{Name: "deployName", Type: TypeString, Required: true},
		{Name: "paths", Type: TypeList, Required: true, Elem: &Field{Type: TypeString}},
	},
}

var volumeMountSchema = &Schema{
	Name: "VolumeMount",
	Fields: []Field{
		{Name: "mountPath", Type: TypeString, Required: true},
		{Name: "subPath", Type: TypeString, Validate: validateSubPath},
	},
}

var prepareSchema = &Schema{
	Name: "Prepare",
	Fields: []Field{
		{Name: "script", Type: TypeList, Required: true, Elem: &Field{Type: TypeString}},
		{Name: "keep", Type: TypeList, Default: emptyList, Elem: &Field{Type: TypeString}},
	},
	PostLoad: []PostLoadFunc{normalizeKeep},
}

var buildSchema = &Schema{
	Name: "Build",
	Fields: []Field{
		{Name: "base", Type: TypeString, Required: true},
		{Name: "prepare", Type: TypeObject, Nullable: true, Schema: prepareSchema},
		{Name: "script", Type: TypeList, Default: emptyList, Elem: &Field{Type: TypeString}},
		{Name: "workdir", Type: TypeString, Default: str(DefaultWorkdir)},
	},
}

var releaseSchema = &Schema{
	Name: "Release",
	Fields: []Field{
		{Name: "script", Type: TypeList, Default: emptyList, Elem: &Field{Type: TypeString}},
		{Name: "workdir", Type: TypeString, Default: str(DefaultWorkdir)},
		{Name: "dest_base", Type: TypeString},
		{Name: "copy", Type: TypeList, Default: emptyList, Elem: &Field{Validate: parseCopy}},
	},
}

// HelmValues describes chart/values.yaml after every layer is merged in.
var HelmValues = &Schema{
	Name: "values",
	Fields: []Field{
		{Name: "appname", Type: TypeString, Required: true, ReservedValue: true},
		{Name: "releaseName", Type: TypeString, ReservedValue: true},
		envField(),
		{Name: "volumeMounts", Type: TypeList, Nullable: true, Elem: &Field{Type: TypeObject, Schema: volumeMountSchema}},
		{Name: "deployments", Type: TypeMap, Nullable: true, ReservedKeys: true, Elem: &Field{Type: TypeObject, Schema: deploymentSchema}},
		{Name: "jobs", Type: TypeMap, Nullable: true, ReservedKeys: true, Elem: &Field{Type: TypeObject, Schema: jobSchema}},
		{Name: "cronjobs", Type: TypeMap, Nullable: true, ReservedKeys: true, Elem: &Field{Type: TypeObject, Schema: cronjobSchema}},
		{Name: "statefulSets", Type: TypeMap, Nullable: true, ReservedKeys: true},
		{Name: "tests", Type: TypeMap, Nullable: true, ReservedKeys: true},
		{Name: "ingresses", Type: TypeList, Nullable: true, Elem: &Field{Type: TypeObject, Schema: ingressSchema}},
		{Name: "externalIngresses", Type: TypeList, Elem: &Field{Type: TypeObject, Schema: ingressSchema}},
		{
			Name:     "canaryGroups",
			Type:     TypeMap,
			Nullable: true,
			Elem:     &Field{Type: TypeMap, KeysOneOf: CanaryAnnotations, Elem: &Field{Type: TypeString}},
		},
		{Name: "build", Type: TypeObject, Schema: buildSchema},
		{Name: "release", Type: TypeObject, Schema: releaseSchema},
	},
	Aliases: []Alias{
		{Canonical: "deployments", Names: []string{"deploy", "deployment"}},
		{Canonical: "jobs", Names: []string{"job"}},
		{Canonical: "cronjobs", Names: []string{"cronjob"}},
		{Canonical: "statefulSets", Names: []string{"sts", "statefulSet", "statefulset"}},
		{Canonical: "ingresses", Names: []string{"ingress", "ing"}},
		{Canonical: "externalIngresses", Names: []string{"externalIngress", "externalIng"}},
	},
	PostLoad: []PostLoadFunc{buildProcs, checkRelease},
}

func validateSubPath(v any) (any, error) {
	s, _ := v.(string)
	bn := s[strings.LastIndex(s, "/")+1:]
	if bn != s {
		return v, fmt.Errorf("subPath should be %s, not %s", bn, s)
	}
	return v, nil
}

func normalizeKeep(data values.Tree, _ LoadContext) error {
	keep, _ := data["keep"].([]any)
	for i, item := range keep {
		k, _ := item.(string)
		if strings.Contains(k, "*") {
			return fmt.Errorf(`keep item should not contain "*", got: %s`, k)
		}
		if strings.HasPrefix(k, "/") {
			return fmt.Errorf("keep item should not be abs path, got: %s", k)
		}
		if !strings.HasPrefix(k, "./") {
			keep[i] = "./" + k
		}
	}
	return nil
}

// parseCopy accepts "path" or {src, dest} and always returns {src, dest}.
func parseCopy(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return map[string]any{"src": t, "dest": t}, nil
	case map[string]any:
		src, ok := t["src"]
		if !ok {
			return v, errors.New("if copy clause is a dict, it must contain src")
		}
		if _, ok := t["dest"]; !ok {
			t["dest"] = src
		}
		return t, nil
	default:
		return v, fmt.Errorf("copy clause must be str or dict, got %v", v)
	}
}

// buildProcs fills empty proc maps and assembles procs, which must not
// share names across kinds.
func buildProcs(data values.Tree, _ LoadContext) error {
	for _, k := range append(append([]string{}, ProcKinds...), "tests") {
		if m, ok := data[k].(map[string]any); !ok || len(m) == 0 {
			data[k] = map[string]any{}
		}
	}

	procs := make(map[string]any)
	for _, k := range ProcKinds {
		for name, proc := range data[k].(map[string]any) {
			procs[name] = proc
		}
	}
	data["procs"] = procs

	var collisions []string
	for i := 0; i < len(ProcKinds); i++ {
		for j := i + 1; j < len(ProcKinds); j++ {
			a := data[ProcKinds[i]].(map[string]any)
			b := data[ProcKinds[j]].(map[string]any)
			var shared []string
			for name := range a {
				if _, ok := b[name]; ok {
					shared = append(shared, name)
				}
			}
			if len(shared) > 0 {
				sort.Strings(shared)
				collisions = append(collisions, fmt.Sprintf("%s and %s share %v", ProcKinds[i], ProcKinds[j], shared))
			}
		}
	}
	if len(collisions) > 0 {
		return fmt.Errorf("proc names should not duplicate: %s", strings.Join(collisions, ", "))
	}
	return nil
}

func checkRelease(data values.Tree, _ LoadContext) error {
	release, ok := data["release"].(map[string]any)
	if !ok || len(release) == 0 {
		return nil
	}
	build, ok := data["build"].(map[string]any)
	if !ok || len(build) == 0 {
		return errors.New("release defined, but not build")
	}
	if _, ok := release["dest_base"]; !ok {
		release["dest_base"] = build["base"]
	}
	return nil
}
