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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/schema"
)

const (
	cpuTemplate    = `rate(container_cpu_usage_seconds_total{{container="{appname}-{proc_name}"}}[{range}]) * 1000`
	memoryTemplate = `quantile_over_time(0.95, container_memory_working_set_bytes{{container="{appname}-{proc_name}"}}[{range}])`
)

// fakePrometheus answers instant and range queries from canned series keyed
// by container name.
type fakePrometheus struct {
	memory  map[string]string
	cpu     map[string][]string
	timeout bool
	status  int
	body    string
	queries []string
}

func (f *fakePrometheus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.FormValue("query")
	f.queries = append(f.queries, q)
	w.Header().Set("Content-Type", "application/json")
	if f.timeout {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","errorType":"timeout","error":"query timed out in expression evaluation"}`))
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}
	container := q[strings.Index(q, `container="`)+len(`container="`):]
	container = container[:strings.Index(container, `"`)]

	var data map[string]any
	switch r.URL.Path {
	case "/api/v1/query":
		result := []any{}
		if v, ok := f.memory[container]; ok {
			result = append(result, map[string]any{"metric": map[string]string{}, "value": []any{1595486084.053, v}})
		}
		data = map[string]any{"resultType": "vector", "result": result}
	case "/api/v1/query_range":
		result := []any{}
		if series, ok := f.cpu[container]; ok {
			points := make([]any, 0, len(series))
			for i, v := range series {
				points = append(points, []any{1595486084 + i*420, v})
			}
			result = append(result, map[string]any{"metric": map[string]string{}, "values": points})
		}
		data = map[string]any{"resultType": "matrix", "result": result}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": data})
}

func newTestPrometheus(t *testing.T, f *fakePrometheus) *Prometheus {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	p, err := NewPrometheus(&cluster.Config{
		Prometheus:  srv.URL,
		PQLTemplate: cluster.PQLTemplate{CPU: cpuTemplate, Memory: memoryTemplate},
	}, "")
	require.NoError(t, err)
	return p
}

func series(vals ...float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%g", v)
	}
	return out
}

func TestNewPrometheus(t *testing.T) {
	_, err := NewPrometheus(&cluster.Config{}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingValue))

	p, err := NewPrometheus(&cluster.Config{Prometheus: "http://prometheus"}, "")
	require.NoError(t, err)
	assert.Equal(t, "7d", p.RangeText)
	assert.Equal(t, 7*time.Minute, p.Step)

	require.NoError(t, p.SetQueryRange("1d"))
	assert.Equal(t, time.Minute, p.Step)

	assert.Error(t, p.SetQueryRange("a week"))
}

func TestRenderQuery(t *testing.T) {
	got := RenderQuery(memoryTemplate, "dummy", "web", "7d")
	assert.Equal(t, `quantile_over_time(0.95, container_memory_working_set_bytes{container="dummy-web"}[7d])`, got)
	assert.Equal(t, "{appname}", RenderQuery("{{appname}}", "dummy", "web", "7d"))
}

func TestMemoryQuantile(t *testing.T) {
	p := newTestPrometheus(t, &fakePrometheus{memory: map[string]string{"dummy-web": "744079360.5"}})

	got, ok, err := p.MemoryQuantile(context.Background(), "dummy", "web")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(744079360), got)

	_, ok, err = p.MemoryQuantile(context.Background(), "dummy", "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	p.Templates.Memory = ""
	_, _, err = p.MemoryQuantile(context.Background(), "dummy", "web")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingValue))
}

func TestCPUP95(t *testing.T) {
	f := &fakePrometheus{cpu: map[string][]string{
		"dummy-web":    series(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000),
		"dummy-low":    series(0.1, 0.2, 0.3),
		"dummy-idle":   series(0, 0, 0, 0, 0, 0, 0, 0, 1, 1),
		"dummy-single": series(300),
	}}
	p := newTestPrometheus(t, f)
	ctx := context.Background()

	top, accurate, err := p.CPUP95(ctx, "dummy", "web")
	require.NoError(t, err)
	assert.True(t, accurate)
	// exclusive ninth decile of the sorted series
	assert.Equal(t, int64(890), top)

	top, accurate, err = p.CPUP95(ctx, "dummy", "low")
	require.NoError(t, err)
	assert.True(t, accurate)
	assert.Equal(t, int64(MinCPUTop), top)

	_, accurate, err = p.CPUP95(ctx, "dummy", "idle")
	require.NoError(t, err)
	assert.False(t, accurate)

	top, _, err = p.CPUP95(ctx, "dummy", "single")
	require.NoError(t, err)
	assert.Equal(t, int64(MinCPUTop), top)

	top, accurate, err = p.CPUP95(ctx, "dummy", "nodata")
	require.NoError(t, err)
	assert.True(t, accurate)
	assert.Equal(t, int64(MinCPUTop), top)

	assert.Contains(t, f.queries[0], `container="dummy-web"`)
	assert.Contains(t, f.queries[0], "[7d]")
}

func TestQueryTimeout(t *testing.T) {
	p := newTestPrometheus(t, &fakePrometheus{timeout: true})
	_, _, err := p.MemoryQuantile(context.Background(), "dummy", "web")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))

	tops, err := p.TopProcs(context.Background(), &app.Values{
		Appname: "dummy",
		Procs:   map[string]*app.Proc{"web": {Name: "web"}},
	})
	require.NoError(t, err)
	assert.Empty(t, tops)
}

func TestQueryServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		timeout bool
	}{
		{name: "bare 503", status: http.StatusServiceUnavailable, timeout: true},
		{name: "gateway timeout text", status: http.StatusBadGateway, body: "upstream request timeout", timeout: true},
		{name: "internal error", status: http.StatusInternalServerError, body: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPrometheus(t, &fakePrometheus{status: tt.status, body: tt.body})
			_, _, err := p.MemoryQuantile(context.Background(), "dummy", "web")
			require.Error(t, err)
			if tt.timeout {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout), "got %v", err)
				return
			}
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnavailable), "got %v", err)
		})
	}
}

func TestTopDecile(t *testing.T) {
	got, ok := topDecile([]float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, 9.9, got, 1e-9)

	_, ok = topDecile([]float64{1})
	assert.False(t, ok)
}

func TestTopProcs(t *testing.T) {
	f := &fakePrometheus{
		memory: map[string]string{"dummy-web": "1048576", "dummy-idle": "300000000"},
		cpu: map[string][]string{
			"dummy-web":  series(50, 60, 70),
			"dummy-idle": series(0, 0, 0, 0),
		},
	}
	p := newTestPrometheus(t, f)
	v := &app.Values{
		Appname: "dummy",
		Procs: map[string]*app.Proc{
			"web":   {Name: "web", ReplicaCount: 2, Requests: &app.Resource{CPUMillis: 1000, MemoryBytes: 256 * schema.Mi}},
			"idle":  {Name: "idle", ReplicaCount: 1},
			"ghost": {Name: "ghost", ReplicaCount: 1},
		},
	}

	tops, err := p.TopProcs(context.Background(), v)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	assert.Equal(t, "web", tops[0].Name)
	assert.Equal(t, schema.MinMemory, tops[0].MemoryTop)
	assert.Equal(t, "4Mi", tops[0].MemoryTopStr)
	assert.Equal(t, int64(76), tops[0].CPUTop)
	assert.Equal(t, 2, tops[0].ReplicaCount)
}
