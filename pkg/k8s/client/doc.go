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

// Package client builds the Kubernetes client lain uses.
//
// lain points kubectl, helm and itself at the same file: the config symlink
// in the kube directory that lain use maintains. GetKubeClient builds the
// client once per invocation and caches it:
//
//	clientset, _, err := client.GetKubeClient(filepath.Join(kubeDir, "config"))
//	if err != nil {
//	    return fmt.Errorf("failed to get kubernetes client: %w", err)
//	}
//
// When the path is empty, KUBECONFIG and then ~/.kube/config are tried,
// falling back to the in-cluster service account, which is how lain wait
// runs inside helm test pods.
package client
