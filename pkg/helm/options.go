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

package helm

import (
	"sort"
	"strings"

	"github.com/lain-cli/lain/pkg/app"
)

// KV is one --set pair.
type KV struct {
	Key   string
	Value string
}

// Options are the --set pairs and -f files passed to helm, in the order
// helm applies them.
type Options struct {
	Set   []KV
	Files []string
}

// Args renders the options as helm arguments.
func (o Options) Args() []string {
	var args []string
	if len(o.Set) > 0 {
		pairs := make([]string, 0, len(o.Set))
		for _, kv := range o.Set {
			pairs = append(pairs, kv.Key+"="+kv.Value)
		}
		args = append(args, "--set", strings.Join(pairs, ","))
	}
	for _, f := range o.Files {
		args = append(args, "-f", f)
	}
	return args
}

// HelmOptions builds the options for the current app and cluster: user
// pairs, then cluster and user, then the cluster values files and the extra
// values file in layer order.
func HelmOptions(s *app.Session, pairs map[string]string) Options {
	var o Options
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		if k == "cluster" || k == "user" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o.Set = append(o.Set, KV{Key: k, Value: pairs[k]})
	}
	o.Set = append(o.Set,
		KV{Key: "cluster", Value: s.Cluster},
		KV{Key: "user", Value: s.Executor()},
	)

	if s.Cluster != "" {
		if f := s.Resolver.ValuesFile(s.Cluster, true); f != "" {
			o.Files = append(o.Files, f)
		}
		if f := s.Resolver.ValuesFile(s.Cluster, false); f != "" {
			o.Files = append(o.Files, f)
		}
	}
	if f := s.Options.ExtraValuesFile; f != "" {
		o.Files = append(o.Files, f)
	}
	return o
}
