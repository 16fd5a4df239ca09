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

// Package k8s groups the Kubernetes integration of lain.
//
// # Sub-packages
//
// client: a shared clientset built from the kubeconfig of the current cluster
//
//	cs, _, err := client.GetKubeClient(resolver.KubeconfigPath(cluster))
//	if err != nil {
//	    return err
//	}
//
// workload: pods, Secrets and jobs of a single app
//
//	rows, err := workload.ListPods(ctx, cs, ns, workload.AppSelector(appname))
//
// The client is created once per process. Everything in workload accepts a
// kubernetes.Interface, so tests pass fake.NewClientset() instead.
package k8s
