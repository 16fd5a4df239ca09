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

package defaults

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		{"ProbeTimeout", ProbeTimeout, 500 * time.Millisecond, 10 * time.Second},
		{"RegistryTimeout", RegistryTimeout, 10 * time.Second, 5 * time.Minute},
		{"PrometheusTimeout", PrometheusTimeout, 5 * time.Second, time.Minute},
		{"K8sAPITimeout", K8sAPITimeout, 5 * time.Second, time.Minute},
		{"K8sPodReadyTimeout", K8sPodReadyTimeout, 30 * time.Second, 10 * time.Minute},
		{"K8sPodPollInterval", K8sPodPollInterval, 500 * time.Millisecond, 10 * time.Second},
		{"HelmCommandTimeout", HelmCommandTimeout, 10 * time.Second, 5 * time.Minute},
		{"StatusRefreshInterval", StatusRefreshInterval, time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) is above maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestPollIntervalShorterThanReadyTimeout(t *testing.T) {
	if K8sPodPollInterval >= K8sPodReadyTimeout {
		t.Errorf("K8sPodPollInterval (%v) should be less than K8sPodReadyTimeout (%v)",
			K8sPodPollInterval, K8sPodReadyTimeout)
	}
}

func TestPrometheusStep(t *testing.T) {
	step := PrometheusQueryRange / PrometheusPoints
	if step != 7*time.Minute {
		t.Errorf("query step = %v, want 7m", step)
	}
}
