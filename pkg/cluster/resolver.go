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

package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/schema"
	"github.com/lain-cli/lain/pkg/values"
)

const (
	kubeconfigPrefix = "kubeconfig-"
	currentLinkName  = "config"

	// EnvClusterValuesDir overrides the internal cluster values directory.
	EnvClusterValuesDir = "LAIN_CLUSTER_VALUES_DIR"
	// DefaultChartDir is where an app keeps its helm chart.
	DefaultChartDir = "chart"
	// DefaultHostsFile is checked for the host aliases a cluster needs.
	DefaultHostsFile = "/etc/hosts"
)

// ErrNoCurrentCluster means the current-cluster symlink is missing. Callers
// decide whether that is fatal.
var ErrNoCurrentCluster = apperrors.New(apperrors.ErrCodeNotFound, "current cluster unknown")

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// Options configures a Resolver. Empty fields get defaults.
type Options struct {
	// KubeDir holds kubeconfig-<cluster> files and the config symlink.
	KubeDir string
	// InternalDir holds the internal values-<cluster>.yaml files.
	InternalDir string
	// ChartDir is the app chart directory holding values-<cluster>.yaml overrides.
	ChartDir string
	// ExtraValuesFile is the file passed with --values, if any.
	ExtraValuesFile string
	// HostsFile is checked against hostAliases.
	HostsFile string
	// LookupEnv resolves secrets_env entries; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// DefaultKubeDir returns ~/.kube.
func DefaultKubeDir() string {
	home, err := osUserHomeDir()
	if err != nil {
		return ".kube"
	}
	return filepath.Join(home, ".kube")
}

// DefaultInternalDir returns $LAIN_CLUSTER_VALUES_DIR or ~/.config/lain/cluster_values.
func DefaultInternalDir() string {
	if d := os.Getenv(EnvClusterValuesDir); d != "" {
		return d
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "cluster_values"
	}
	return filepath.Join(home, ".config", "lain", "cluster_values")
}

// Resolver loads cluster configuration for one invocation.
type Resolver struct {
	opts Options

	mu      sync.Mutex
	current *Config
}

// NewResolver returns a Resolver with defaults filled in.
func NewResolver(opts Options) *Resolver {
	if opts.KubeDir == "" {
		opts.KubeDir = DefaultKubeDir()
	}
	if opts.InternalDir == "" {
		opts.InternalDir = DefaultInternalDir()
	}
	if opts.ChartDir == "" {
		opts.ChartDir = DefaultChartDir
	}
	if opts.HostsFile == "" {
		opts.HostsFile = DefaultHostsFile
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	return &Resolver{opts: opts}
}

// Options returns the effective options.
func (r *Resolver) Options() Options {
	return r.opts
}

// KubeconfigPath returns the kubeconfig file of a cluster.
func (r *Resolver) KubeconfigPath(cluster string) string {
	return filepath.Join(r.opts.KubeDir, kubeconfigPrefix+cluster)
}

// Current returns the cluster the config symlink points at.
func (r *Resolver) Current() (string, error) {
	link := filepath.Join(r.opts.KubeDir, currentLinkName)
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("%s is not a symlink or does not exist: %w", link, ErrNoCurrentCluster)
	}
	name := filepath.Base(target)
	if _, cluster, ok := strings.Cut(name, "-"); ok {
		return cluster, nil
	}
	return name, nil
}

// ValuesFile returns values-<cluster>.yaml from the internal directory or
// the chart directory, or "" when the file does not exist.
func (r *Resolver) ValuesFile(cluster string, internal bool) string {
	dir := r.opts.ChartDir
	if internal {
		dir = r.opts.InternalDir
	}
	p := filepath.Join(dir, fmt.Sprintf("values-%s.yaml", cluster))
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return ""
	}
	return p
}

// Layers returns the value layers for cluster in merge order: internal
// defaults, the repository override file and the extra values file.
func (r *Resolver) Layers(cluster string, ignoreExtra bool) ([]values.Layer, error) {
	var layers []values.Layer
	if p := r.ValuesFile(cluster, true); p != "" {
		t, err := values.LoadFile(p)
		if err != nil {
			return nil, err
		}
		layers = append(layers, values.Layer{Name: "internal", Path: p, Tree: t, IgnoreExtra: ignoreExtra})
	}
	overlays, err := r.overlays(cluster, ignoreExtra)
	if err != nil {
		return nil, err
	}
	return append(layers, overlays...), nil
}

func (r *Resolver) overlays(cluster string, ignoreExtra bool) ([]values.Layer, error) {
	var layers []values.Layer
	if p := r.ValuesFile(cluster, false); p != "" {
		t, err := values.LoadFile(p)
		if err != nil {
			return nil, err
		}
		layers = append(layers, values.Layer{
			Name:               "cluster",
			Path:               p,
			Tree:               t,
			IgnoreExtra:        ignoreExtra,
			PreventDuplication: true,
		})
	}
	if p := r.opts.ExtraValuesFile; p != "" {
		t, err := values.LoadFile(p)
		if err != nil {
			return nil, err
		}
		layers = append(layers, values.Layer{Name: "extra", Path: p, Tree: t, IgnoreExtra: ignoreExtra})
	}
	return layers, nil
}

// Resolve loads the configuration of cluster, or of the current cluster
// when cluster is empty. Missing internal defaults yield an empty Config and
// a warning.
func (r *Resolver) Resolve(cluster string) (*Config, error) {
	if cluster == "" {
		r.mu.Lock()
		cached := r.current
		r.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		cur, err := r.Current()
		if err != nil {
			return nil, err
		}
		cluster = cur
	}

	internal := r.ValuesFile(cluster, true)
	if internal == "" {
		slog.Warn("cluster values not found",
			"cluster", cluster,
			"dir", r.opts.InternalDir)
		return newConfig(cluster, false, nil), nil
	}

	isCurrent := false
	if cur, err := r.Current(); err == nil {
		isCurrent = cur == cluster
	}

	base, err := values.LoadFile(internal)
	if err != nil {
		return nil, err
	}
	overlays, err := r.overlays(cluster, true)
	if err != nil {
		return nil, err
	}
	merged, err := values.MergeLayers(base, overlays...)
	if err != nil {
		return nil, DuplicationError(err)
	}

	loaded, err := schema.Load(schema.ClusterConfig, merged, schema.LoadContext{
		IsCurrent: isCurrent,
		LookupEnv: r.opts.LookupEnv,
	})
	if err != nil {
		if errors.Is(err, schema.ErrValidation) {
			return nil, apperrors.WrapWithContext(apperrors.ErrCodeValidation,
				"your cluster config did not pass schema check", err,
				map[string]any{"cluster": cluster})
		}
		return nil, err
	}

	cfg := newConfig(cluster, isCurrent, loaded)
	slog.Debug("cluster config resolved", "cluster", cluster, "current", isCurrent)

	if isCurrent {
		r.mu.Lock()
		r.current = cfg
		r.mu.Unlock()
		r.checkHosts(cfg)
	}
	return cfg, nil
}

// DuplicationError turns a values.DuplicationError into a DUPLICATION
// error naming the offending file. Other errors pass through.
func DuplicationError(err error) error {
	var dup *values.DuplicationError
	if !errors.As(err, &dup) {
		return err
	}
	return apperrors.WrapWithContext(apperrors.ErrCodeDuplication,
		fmt.Sprintf("duplication detected in %s", dup.Source), err,
		map[string]any{"key": dup.Key, "file": dup.Source},
	).WithHint("you must eliminate all duplications before proceeding")
}

// checkHosts warns about host aliases missing from the hosts file.
func (r *Resolver) checkHosts(cfg *Config) {
	if len(cfg.HostAliases) == 0 {
		return
	}
	hosts, err := readHosts(r.opts.HostsFile)
	if err != nil {
		slog.Debug("failed to read hosts file", "path", r.opts.HostsFile, "error", err)
		return
	}
	for _, ha := range cfg.HostAliases {
		for _, name := range ha.Hostnames {
			if _, ok := hosts[ha.IP][name]; !ok {
				slog.Warn(fmt.Sprintf("you should add this to %s: %s %s", r.opts.HostsFile, ha.IP, name))
			}
		}
	}
}

func readHosts(path string) (map[string]map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		ip := fields[0]
		if hosts[ip] == nil {
			hosts[ip] = make(map[string]struct{})
		}
		for _, h := range fields[1:] {
			hosts[ip][h] = struct{}{}
		}
	}
	return hosts, nil
}

// Clusters lists clusters that have a kubeconfig file, sorted.
func (r *Resolver) Clusters() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.opts.KubeDir, kubeconfigPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list kubeconfig files: %w", err)
	}
	var names []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		names = append(names, strings.TrimPrefix(filepath.Base(m), kubeconfigPrefix))
	}
	sort.Strings(names)
	return names, nil
}

// All resolves every cluster that has both a kubeconfig and internal values.
// Internal values without a kubeconfig are reported as warnings.
func (r *Resolver) All() (map[string]*Config, error) {
	names, err := r.Clusters()
	if err != nil {
		return nil, err
	}

	ccs := make(map[string]*Config)
	for _, name := range names {
		if r.ValuesFile(name, true) == "" {
			continue
		}
		cc, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		ccs[name] = cc
	}
	if len(ccs) == 0 {
		slog.Error("no cluster values found at all, you should first set things up",
			"dir", r.opts.InternalDir)
	}

	internals, _ := filepath.Glob(filepath.Join(r.opts.InternalDir, "values-*"))
	for _, f := range internals {
		name := strings.TrimPrefix(filepath.Base(f), "values-")
		name, _, _ = strings.Cut(name, ".")
		if _, ok := ccs[name]; !ok {
			slog.Warn(fmt.Sprintf("%s not found, you should get it from your system administrator", r.KubeconfigPath(name)))
		}
	}
	return ccs, nil
}

// Use points the config symlink at the kubeconfig of cluster.
func (r *Resolver) Use(cluster string) error {
	target := r.KubeconfigPath(cluster)
	if _, err := os.Stat(target); err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeNotFound,
			fmt.Sprintf("kubeconfig for cluster %s not found", cluster), err,
			map[string]any{"path": target},
		).WithHint("you should get it from your system administrator")
	}

	link := filepath.Join(r.opts.KubeDir, currentLinkName)
	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return apperrors.New(apperrors.ErrCodeInvalidRequest,
				fmt.Sprintf("%s is a regular file, refusing to overwrite", link),
			).WithHint(fmt.Sprintf("move it to %s first", r.KubeconfigPath("<name>")))
		}
		if err := os.Remove(link); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to remove old symlink", err)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create symlink", err)
	}

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	slog.Info("cluster switched", "cluster", cluster)
	return nil
}
