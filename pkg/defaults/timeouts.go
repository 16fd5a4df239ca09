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

import "time"

// Probe settings for ingress URL checks.
const (
	// ProbeTimeout bounds a single probe request.
	ProbeTimeout = 2 * time.Second

	// ProbeBodyLimit is how much of a response body is kept as text.
	ProbeBodyLimit = 256
)

// Remote API timeouts.
const (
	// RegistryTimeout bounds listing tags and deleting manifests.
	RegistryTimeout = 90 * time.Second

	// PrometheusTimeout bounds one PromQL query.
	PrometheusTimeout = 20 * time.Second

	// PrometheusQueryRange is the window usage is measured over.
	PrometheusQueryRange = 7 * 24 * time.Hour

	// PrometheusPoints is how many samples a range query asks for.
	PrometheusPoints = 1440
)

// Kubernetes timeouts.
const (
	// K8sAPITimeout bounds a single API call.
	K8sAPITimeout = 20 * time.Second

	// K8sPodReadyTimeout is how long lain wait gives pods to come up.
	K8sPodReadyTimeout = 2 * time.Minute

	// K8sPodPollInterval is the pause between pod readiness checks.
	K8sPodPollInterval = 3 * time.Second
)

// Helm timeouts.
const (
	// HelmCommandTimeout bounds helm commands that do not wait on workloads.
	HelmCommandTimeout = 60 * time.Second
)

// CLI refresh settings.
const (
	// StatusRefreshInterval is the minimum pause between lain status --watch refreshes.
	StatusRefreshInterval = 3 * time.Second
)
