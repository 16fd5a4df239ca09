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

// Package defaults collects the timeouts and limits lain uses when it talks
// to other systems.
//
// # Timeout Categories
//
//   - Probe timeouts: per request when checking ingress URLs
//   - Registry and Prometheus timeouts: per API call
//   - Kubernetes timeouts: API calls and waiting for pods
//   - Helm timeouts: shelling out to helm
//
// # Usage
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.RegistryTimeout)
//	defer cancel()
package defaults
