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

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/lain-cli/lain/pkg/defaults"
	"github.com/lain-cli/lain/pkg/version"
)

// Interface is kubernetes.Interface, so tests can pass fake.NewClientset().
type Interface = kubernetes.Interface

var (
	clientOnce   sync.Once
	cachedClient *kubernetes.Clientset
	cachedConfig *rest.Config
	clientErr    error
)

// GetKubeClient returns the client for kubeconfig, building it on the first
// call. Later calls return the cached client whatever path they pass.
func GetKubeClient(kubeconfig string) (Interface, *rest.Config, error) {
	clientOnce.Do(func() {
		cachedClient, cachedConfig, clientErr = BuildKubeClient(kubeconfig)
	})
	return cachedClient, cachedConfig, clientErr
}

// BuildKubeClient creates a client from kubeconfig, bypassing the cache. An
// empty path tries KUBECONFIG, then ~/.kube/config, then in-cluster config.
func BuildKubeClient(kubeconfig string) (*kubernetes.Clientset, *rest.Config, error) {
	var config *rest.Config
	var err error

	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")

		if kubeconfig == "" {
			kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
			if _, err = os.Stat(kubeconfig); os.IsNotExist(err) {
				kubeconfig = ""
			}
		}
	}

	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get in-cluster config: %w", err)
		}
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build kube config from %s: %w", kubeconfig, err)
		}
	}
	config.Timeout = defaults.K8sAPITimeout

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return client, config, nil
}

// ServerVersion asks the API server for its version.
func ServerVersion(cs Interface) (version.Version, error) {
	info, err := cs.Discovery().ServerVersion()
	if err != nil {
		return version.Version{}, fmt.Errorf("failed to get server version: %w", err)
	}
	return version.Parse(info.GitVersion)
}

// InCluster reports whether lain runs inside a pod.
func InCluster() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}
