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

// Package registry talks to the image registry of a cluster.
//
// Only plain OCI distribution registries are supported. Clusters whose
// registry_type names a vendor API get an UNAVAILABLE error from New.
//
// Tags are listed, resolved and deleted with oras-go. Credentials come from
// the cluster config (dockerhub_username, dockerhub_password) when set, and
// from the local Docker credential store otherwise.
package registry
