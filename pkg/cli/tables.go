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

package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/k8s/workload"
	"github.com/lain-cli/lain/pkg/metrics"
	"github.com/lain-cli/lain/pkg/probe"
	"github.com/lain-cli/lain/pkg/schema"
)

func (d *deps) tops(ctx context.Context, cc *cluster.Config, v *app.Values) ([]metrics.ProcTop, error) {
	p, err := d.prometheus(cc, metrics.QueryRangeOf(v))
	if err != nil {
		return nil, err
	}
	return p.TopProcs(ctx, v)
}

type topTable []metrics.ProcTop

func (t topTable) TableHeader() []string {
	return []string{"PROC", "CPU", "MEMORY", "CPU REQUESTS", "MEMORY REQUESTS"}
}

func (t topTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		cpuReq, memReq := "-", "-"
		if p.Requests != nil {
			cpuReq = strconv.FormatInt(p.Requests.CPUMillis, 10) + "m"
			memReq = schema.FormatMemory(p.Requests.MemoryBytes)
		}
		rows = append(rows, []string{p.Name, strconv.FormatInt(p.CPUTop, 10) + "m", p.MemoryTopStr, cpuReq, memReq})
	}
	return rows
}

type podTable []workload.PodRow

func (t podTable) TableHeader() []string {
	return []string{"NAME", "READY", "STATUS", "RESTARTS", "AGE"}
}

func (t podTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{
			p.Name, p.ReadyString(), p.Status,
			strconv.Itoa(int(p.Restarts)), workload.FormatAge(p.Age),
		})
	}
	return rows
}

type probeTable []probe.Result

func (t probeTable) TableHeader() []string {
	return []string{"URL", "STATUS", "TEXT"}
}

func (t probeTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{r.URL, r.Status, r.Text})
	}
	return rows
}

// status is what lain status prints.
type status struct {
	Cluster string           `json:"cluster" yaml:"cluster"`
	Release string           `json:"release" yaml:"release"`
	State   string           `json:"state,omitempty" yaml:"state,omitempty"`
	Canary  string           `json:"canary,omitempty" yaml:"canary,omitempty"`
	Pods    podTable         `json:"pods" yaml:"pods"`
	Hidden  int              `json:"hiddenReadyPods,omitempty" yaml:"hiddenReadyPods,omitempty"`
	URLs    probeTable       `json:"urls,omitempty" yaml:"urls,omitempty"`
	TLS     []app.IngressTLS `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// digestedPodsCount is the pod count above which status only lists pods
// that are not ready.
const digestedPodsCount = 13

// digest drops ready pods from large apps so the broken ones stand out.
func (s *status) digest(v *app.Values) {
	if v.PodsCount() <= digestedPodsCount {
		return
	}
	kept := s.Pods[:0]
	for _, p := range s.Pods {
		if workload.IsReady(p) {
			s.Hidden++
			continue
		}
		kept = append(kept, p)
	}
	s.Pods = kept
}

func (s status) TableHeader() []string {
	return []string{"KIND", "NAME", "STATE", "DETAIL"}
}

func (s status) TableRows() [][]string {
	rows := [][]string{{"release", s.Release, s.State, s.Cluster}}
	if s.Canary != "" {
		rows = append(rows, []string{"release", app.CanaryName(s.Release), s.Canary, "canary"})
	}
	for _, p := range s.Pods {
		rows = append(rows, []string{"pod", p.Name, p.Status,
			app.PodDeployName(p.Name) + ", " + p.ReadyString() + " ready, age " + workload.FormatAge(p.Age)})
	}
	if s.Hidden > 0 {
		rows = append(rows, []string{"pod", "", "Running", strconv.Itoa(s.Hidden) + " ready pods hidden"})
	}
	for _, u := range s.URLs {
		rows = append(rows, []string{"url", u.URL, u.Status, u.Text})
	}
	for _, t := range s.TLS {
		rows = append(rows, []string{"tls", t.SecretName, t.Host, strings.Join(t.Hosts, ",")})
	}
	return rows
}
