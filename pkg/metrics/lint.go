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
	"fmt"
	"math"

	"github.com/lain-cli/lain/pkg/schema"
)

const (
	// MemoryForgivingCoefficient is how far requests may drift from usage.
	MemoryForgivingCoefficient = 1.13
	// PoorMemory is the usage below which memory requests are not linted.
	PoorMemory = 256 * schema.Mi
	// MinCPULimit is the smallest CPU limit lint accepts, in millicores.
	MinCPULimit = 1000
	// cpuRequestsMargin is how far CPU requests may drift from usage.
	cpuRequestsMargin = 300
	// busyReplicaCount switches memory limits to the tight ratio.
	busyReplicaCount = 5
)

// SuggestCPULimits returns a better CPU limit, or "" when limits is fine.
func SuggestCPULimits(limits int64) string {
	if limits < MinCPULimit {
		return fmt.Sprintf("%dm", MinCPULimit)
	}
	return ""
}

// SuggestCPURequests returns top as a request when requests is too far
// from it, or "".
func SuggestCPURequests(requests, top int64) string {
	if requests < top-cpuRequestsMargin || requests > top+cpuRequestsMargin {
		return fmt.Sprintf("%dm", top)
	}
	return ""
}

// SuggestMemoryRequests returns top as a request when requests is too far
// from it, or "". Procs using little memory are left alone.
func SuggestMemoryRequests(requests, top int64) string {
	if top < PoorMemory && requests < PoorMemory {
		return ""
	}
	t, r := float64(top), float64(requests)
	if t*MemoryForgivingCoefficient < r || t/MemoryForgivingCoefficient > r {
		return schema.FormatMemory(top)
	}
	return ""
}

// SuggestMemoryLimits returns a limit derived from top, or "" when limits
// is close enough. Procs with many replicas get tighter limits.
func SuggestMemoryLimits(limits, top int64, replicaCount int) string {
	ratio, margin := 2.5, float64(1024*schema.Mi)
	if replicaCount > busyReplicaCount {
		ratio, margin = 1.3, float64(50*schema.Mi)
	}
	suggest := float64(top) * ratio
	l := float64(limits)
	if math.Abs(suggest-l) < margin {
		return ""
	}
	if suggest*MemoryForgivingCoefficient < l || suggest/MemoryForgivingCoefficient > l {
		return schema.FormatMemory(int64(suggest))
	}
	return ""
}

// Severity of a Finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one lint suggestion for a proc.
type Finding struct {
	Proc       string   `json:"proc" yaml:"proc"`
	Field      string   `json:"field" yaml:"field"`
	Current    string   `json:"current" yaml:"current"`
	Suggestion string   `json:"suggestion" yaml:"suggestion"`
	Severity   Severity `json:"severity" yaml:"severity"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: current %s, suggestion %s", f.Proc, f.Field, f.Current, f.Suggestion)
}

// Lint compares the usage in tops with the declared resources. Low CPU
// limits are warnings, everything else is an error.
func Lint(tops []ProcTop) []Finding {
	var out []Finding
	for _, t := range tops {
		if t.Limits != nil {
			if s := SuggestCPULimits(t.Limits.CPUMillis); s != "" {
				out = append(out, Finding{t.Name, "cpu limits", fmt.Sprintf("%dm", t.Limits.CPUMillis), s, SeverityWarning})
			}
		}
		if t.MemoryTop == 0 {
			continue
		}
		if t.Requests != nil {
			if s := SuggestCPURequests(t.Requests.CPUMillis, t.CPUTop); s != "" {
				out = append(out, Finding{t.Name, "cpu requests", fmt.Sprintf("%dm", t.Requests.CPUMillis), s, SeverityError})
			}
			if s := SuggestMemoryRequests(t.Requests.MemoryBytes, t.MemoryTop); s != "" {
				out = append(out, Finding{t.Name, "memory requests", schema.FormatMemory(t.Requests.MemoryBytes), s, SeverityError})
			}
		}
		if t.Limits != nil {
			if s := SuggestMemoryLimits(t.Limits.MemoryBytes, t.MemoryTop, t.ReplicaCount); s != "" {
				out = append(out, Finding{t.Name, "memory limits", schema.FormatMemory(t.Limits.MemoryBytes), s, SeverityError})
			}
		}
	}
	return out
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
