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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/defaults"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/schema"
	"github.com/lain-cli/lain/pkg/values"
)

const (
	// MinCPUTop is the floor of every CPU estimate, in millicores.
	MinCPUTop = 5
	// inaccurateZeroRatio marks a CPU series unreliable when more of its
	// points than this are zero.
	inaccurateZeroRatio = 0.7
)

// Prometheus queries app usage.
type Prometheus struct {
	API        v1.API
	Templates  cluster.PQLTemplate
	QueryRange model.Duration
	// RangeText is QueryRange as the user wrote it, used for {range}.
	RangeText string
	Step      time.Duration
	Timeout   time.Duration

	now func() time.Time
}

// NewPrometheus builds a client for the Prometheus of cc. queryRange is a
// Prometheus duration such as 7d; empty means defaults.PrometheusQueryRange.
func NewPrometheus(cc *cluster.Config, queryRange string) (*Prometheus, error) {
	if cc == nil || cc.Prometheus == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingValue, "prometheus not provided in cluster config")
	}
	client, err := api.NewClient(api.Config{Address: cc.Prometheus})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid prometheus address", err)
	}
	p := &Prometheus{
		API:       v1.NewAPI(client),
		Templates: cc.PQLTemplate,
		Timeout:   defaults.PrometheusTimeout,
		now:       time.Now,
	}
	if err := p.SetQueryRange(queryRange); err != nil {
		return nil, err
	}
	return p, nil
}

// SetQueryRange parses r and derives the step so a range holds
// defaults.PrometheusPoints points.
func (p *Prometheus) SetQueryRange(r string) error {
	d := model.Duration(defaults.PrometheusQueryRange)
	if r == "" {
		r = "7d"
	} else {
		var err error
		if d, err = model.ParseDuration(r); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid prometheus_query_range", err)
		}
	}
	p.QueryRange = d
	p.RangeText = r
	p.Step = (time.Duration(d) / defaults.PrometheusPoints).Truncate(time.Second)
	if p.Step < time.Second {
		p.Step = time.Second
	}
	return nil
}

// RenderQuery fills the placeholders of tmpl.
func RenderQuery(tmpl, appname, proc, queryRange string) string {
	return strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		"{appname}", appname,
		"{proc_name}", proc,
		"{range}", queryRange,
	).Replace(tmpl)
}

// MemoryQuantile returns the memory usage estimate of proc in bytes.
// ok is false when Prometheus has no data.
func (p *Prometheus) MemoryQuantile(ctx context.Context, appname, proc string) (bytes int64, ok bool, err error) {
	if p.Templates.Memory == "" {
		return 0, false, apperrors.New(apperrors.ErrCodeMissingValue,
			"pql_template.memory_quantile not configured in cluster config")
	}
	q := RenderQuery(p.Templates.Memory, appname, proc, p.RangeText)
	val, warnings, err := p.API.Query(ctx, q, p.clock(), v1.WithTimeout(p.Timeout))
	logWarnings(warnings)
	if err != nil {
		return 0, false, p.queryError(err)
	}
	vec, isVec := val.(model.Vector)
	if !isVec || len(vec) == 0 {
		return 0, false, nil
	}
	return int64(float64(vec[0].Value)), true, nil
}

// CPUP95 returns the CPU usage estimate of proc in millicores, never below
// MinCPUTop. accurate is false when most samples are zero, which usually
// means the proc is idle or the data is missing.
func (p *Prometheus) CPUP95(ctx context.Context, appname, proc string) (top int64, accurate bool, err error) {
	if p.Templates.CPU == "" {
		return 0, false, apperrors.New(apperrors.ErrCodeMissingValue,
			"pql_template.cpu not configured in cluster config")
	}
	q := RenderQuery(p.Templates.CPU, appname, proc, p.RangeText)
	end := p.clock()
	val, warnings, err := p.API.QueryRange(ctx, q, v1.Range{
		Start: end.Add(-24 * time.Hour),
		End:   end,
		Step:  p.Step,
	}, v1.WithTimeout(p.Timeout))
	logWarnings(warnings)
	if err != nil {
		return 0, false, p.queryError(err)
	}

	accurate = true
	top = MinCPUTop
	matrix, isMatrix := val.(model.Matrix)
	if !isMatrix || len(matrix) == 0 || len(matrix[0].Values) == 0 {
		return top, accurate, nil
	}
	points := make([]float64, len(matrix[0].Values))
	zeros := 0
	for i, s := range matrix[0].Values {
		points[i] = math.Ceil(float64(s.Value))
		if points[i] == 0 {
			zeros++
		}
	}
	if float64(zeros)/float64(len(points)) > inaccurateZeroRatio {
		accurate = false
	}
	if q, ok := topDecile(points); ok {
		top = max(int64(q), MinCPUTop)
	}
	return top, accurate, nil
}

// topDecile returns the last cut point of the exclusive-method deciles of
// data. ok is false for fewer than two points.
func topDecile(data []float64) (float64, bool) {
	n := len(data)
	if n < 2 {
		return 0, false
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	const parts = 10
	m := n + 1
	i := parts - 1
	j := i * m / parts
	j = min(max(j, 1), n-1)
	delta := float64(i*m - j*parts)
	return (sorted[j-1]*(parts-delta) + sorted[j]*delta) / parts, true
}

func (p *Prometheus) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// errQueryTimeout is swallowed by callers that can live without data.
var errQueryTimeout = apperrors.New(apperrors.ErrCodeTimeout, "prometheus query timeout")

func (p *Prometheus) queryError(err error) error {
	if isQueryTimeout(err) {
		slog.Warn("prometheus query timeout, consider using grafana instead")
		return errQueryTimeout
	}
	return apperrors.Wrap(apperrors.ErrCodeUnavailable, "prometheus query failed", err)
}

// isQueryTimeout reports whether err means prometheus gave up on the query.
// Prometheus answers an evaluation timeout with a 503, which the client only
// surfaces as a server error carrying the body in Detail.
func isQueryTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *v1.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Type {
	case v1.ErrTimeout:
		return true
	case v1.ErrServer:
		if strings.Contains(apiErr.Msg, strconv.Itoa(http.StatusServiceUnavailable)) {
			return true
		}
	}
	text := strings.ToLower(apiErr.Msg + " " + apiErr.Detail)
	return strings.Contains(text, "timed out") || strings.Contains(text, "timeout")
}

func logWarnings(w v1.Warnings) {
	for _, s := range w {
		slog.Warn("prometheus warning", "warning", s)
	}
}

// ProcTop is the observed usage of one proc next to its declared resources.
type ProcTop struct {
	Name         string `json:"name" yaml:"name"`
	ReplicaCount int    `json:"replicaCount" yaml:"replicaCount"`
	MemoryTop    int64  `json:"memoryTop" yaml:"memoryTop"`
	MemoryTopStr string `json:"memoryTopStr" yaml:"memoryTopStr"`
	CPUTop       int64  `json:"cpuTop" yaml:"cpuTop"`

	Requests *app.Resource `json:"requests,omitempty" yaml:"requests,omitempty"`
	Limits   *app.Resource `json:"limits,omitempty" yaml:"limits,omitempty"`
}

// TopProcs measures every proc of v. Procs without memory data or with an
// unreliable CPU series are left out. A timed out query skips the proc.
func (p *Prometheus) TopProcs(ctx context.Context, v *app.Values) ([]ProcTop, error) {
	var out []ProcTop
	for _, name := range v.ProcNames() {
		proc := v.Procs[name]
		mem, ok, err := p.MemoryQuantile(ctx, v.Appname, name)
		if errors.Is(err, errQueryTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ok || mem == 0 {
			continue
		}
		mem = max(mem, schema.MinMemory)

		cpu, accurate, err := p.CPUP95(ctx, v.Appname, name)
		if errors.Is(err, errQueryTimeout) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !accurate {
			slog.Debug("cpu data inaccurate, skipping proc", "proc", name)
			continue
		}
		out = append(out, ProcTop{
			Name:         name,
			ReplicaCount: proc.ReplicaCount,
			MemoryTop:    mem,
			MemoryTopStr: schema.FormatMemory(mem),
			CPUTop:       cpu,
			Requests:     proc.Requests,
			Limits:       proc.Limits,
		})
	}
	return out, nil
}

// QueryRangeOf reads prometheus_query_range from app values.
func QueryRangeOf(v *app.Values) string {
	if v == nil {
		return ""
	}
	return values.GetString(v.Raw, "prometheus_query_range", "")
}

func (t ProcTop) String() string {
	return fmt.Sprintf("%s cpu=%dm memory=%s", t.Name, t.CPUTop, t.MemoryTopStr)
}
