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

package app

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/values"
)

const (
	defaultHTTPPort = 80

	// DefaultJobDeadline applies to jobs without activeDeadlineSeconds.
	DefaultJobDeadline = 3600 * time.Second
	// MinHelmTimeout is the helm --timeout when no job needs longer.
	MinHelmTimeout = 300 * time.Second
)

// ProxyEnvNames are variables that tend to break access to the cluster.
var ProxyEnvNames = []string{"HTTPS_PROXY", "HTTP_PROXY", "https_proxy", "http_proxy"}

// jobNamespace seeds job name hashes so the same command always maps to the
// same job.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("lain"))

// IngressURLs lists every URL the app is reachable at, http and https for
// each path. Internal hosts without a dot get the cluster domain suffix.
func IngressURLs(v *Values, cc *cluster.Config) []string {
	var urls []string
	for _, h := range ingressHosts(v, cc) {
		urls = append(urls, makeURLs(h.host, h.paths, h.port)...)
	}
	return urls
}

// IngressTLS is the certificate an ingress host is served with.
type IngressTLS struct {
	Host       string   `json:"host" yaml:"host"`
	Hosts      []string `json:"hosts" yaml:"hosts"`
	SecretName string   `json:"secretName" yaml:"secretName"`
}

// IngressTLSNames pairs every ingress host with the wildcard domain its
// certificate covers and the secret that certificate is stored in.
func IngressTLSNames(v *Values, cc *cluster.Config) []IngressTLS {
	var out []IngressTLS
	seen := map[string]bool{}
	for _, h := range ingressHosts(v, cc) {
		if seen[h.host] {
			continue
		}
		seen[h.host] = true
		hosts := MakeWildcardDomain(h.host)
		out = append(out, IngressTLS{Host: h.host, Hosts: hosts, SecretName: DomainTLSName(hosts[0])})
	}
	return out
}

type ingressHost struct {
	host  string
	paths []string
	port  int
}

func ingressHosts(v *Values, cc *cluster.Config) []ingressHost {
	if v == nil || cc.Empty() {
		return nil
	}
	suffix := cc.TellDomainSuffix()
	var out []ingressHost
	for _, ing := range v.Ingresses {
		host := ing.Host
		if !strings.Contains(host, ".") {
			host += suffix
		}
		out = append(out, ingressHost{host: host, paths: ing.Paths, port: cc.IngressInternalPort})
	}
	for _, ing := range v.ExternalIngresses {
		out = append(out, ingressHost{host: ing.Host, paths: ing.Paths, port: cc.IngressExternalPort})
	}
	return out
}

func makeURLs(host string, paths []string, port int) []string {
	if port != 0 && port != defaultHTTPPort {
		host = fmt.Sprintf("%s:%d", host, port)
	}
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	urls := make([]string, 0, 2*len(paths))
	for _, p := range paths {
		urls = append(urls, "http://"+host+p, "https://"+host+p)
	}
	return urls
}

// MakeWildcardDomain returns the wildcard and bare forms of the domain a
// host lives in:
//
//	foo-bar.example.com -> [*.example.com example.com]
//	example.com         -> [*.example.com example.com]
func MakeWildcardDomain(d string) []string {
	idx := strings.Index(d, ".")
	if strings.Count(d, ".") <= 1 || idx <= 0 {
		return []string{"*." + d, d}
	}
	withStar := "*" + d[idx:]
	return []string{withStar, strings.ReplaceAll(withStar, "*.", "")}
}

// DomainTLSName turns a domain into a TLS secret name:
//
//	*.example.com          -> example-com
//	prometheus.example.com -> prometheus-example-com
func DomainTLSName(d string) string {
	parts := strings.Split(d, ".")
	if parts[0] == "*" {
		parts = parts[1:]
	}
	return strings.Join(parts, "-")
}

// ImageString builds registry/appname:tag, omitting the docker.io prefix.
func ImageString(registry, appname, tag string) string {
	registry = strings.TrimPrefix(registry, "docker.io/")
	return fmt.Sprintf("%s/%s:%s", registry, appname, tag)
}

// JobName derives a stable job name from the command it runs.
func JobName(appname string, command []string) string {
	h := uuid.NewSHA1(jobNamespace, []byte(strings.Join(command, "")))
	hex := strings.ReplaceAll(h.String(), "-", "")
	return fmt.Sprintf("%s-%s", appname, hex[:16])
}

// Executor tells who is running lain, either a local user or a CI job.
func Executor(getenv func(string) string) string {
	if u := getenv("USER"); u != "" {
		return u
	}
	jobURL := getenv("CI_JOB_URL")
	if name := getenv("GITLAB_USER_NAME"); name != "" {
		return fmt.Sprintf("%s-via-%s", name, jobURL)
	}
	return jobURL
}

// PodDeployName strips the replicaset and pod hashes from a pod name:
//
//	dummy-web-dev-7557696ddf-52cc6 -> dummy-web-dev
func PodDeployName(pod string) string {
	parts := strings.Split(pod, "-")
	if len(parts) <= 3 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-2], "-")
}

// JobTimeout is the longest activeDeadlineSeconds among jobs, at least
// MinHelmTimeout.
func JobTimeout(v *Values) time.Duration {
	timeout := MinHelmTimeout
	if v == nil {
		return timeout
	}
	for _, j := range v.Jobs {
		d := DefaultJobDeadline
		switch n := j.Raw["activeDeadlineSeconds"].(type) {
		case int:
			d = time.Duration(n) * time.Second
		case float64:
			d = time.Duration(math.Ceil(n)) * time.Second
		}
		if d > timeout {
			timeout = d
		}
	}
	return timeout
}

// IsValuesFile reports whether a chart file is a values file, with or
// without a .j2 suffix and with either yaml extension.
func IsValuesFile(name string) bool {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, ".j2", "")
	name = strings.ReplaceAll(name, ".yml", ".yaml")
	return strings.HasPrefix(name, "values") && strings.HasSuffix(name, "yaml")
}

// CanaryName is the release name of the canary of appname.
func CanaryName(appname string) string {
	return appname + "-canary"
}

// CheckCorrectOverride reports whether a cluster values file that overrides
// build also sets appname to the effective appname, so images of different
// builds never share a repository.
func CheckCorrectOverride(appname string, partial values.Tree) bool {
	if len(partial) == 0 {
		return true
	}
	if _, ok := partial["build"]; !ok {
		return true
	}
	override, _ := partial["appname"].(string)
	return override == appname
}

// ProxyEnv returns the proxy variables that are set, sorted.
func ProxyEnv(lookupEnv func(string) (string, bool)) []string {
	var set []string
	for _, k := range ProxyEnvNames {
		if _, ok := lookupEnv(k); ok {
			set = append(set, k)
		}
	}
	sort.Strings(set)
	return set
}
