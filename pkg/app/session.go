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
	"errors"
	"log/slog"
	"os"

	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
)

// Options holds the global flags of one invocation.
type Options struct {
	KubeDir          string
	ClusterValuesDir string
	ChartDir         string
	ExtraValuesFile  string
	HostsFile        string
	// Use switches to this cluster before anything else.
	Use        string
	IgnoreLint bool

	LookupEnv func(string) (string, bool)
}

func (o Options) lookupEnv() func(string) (string, bool) {
	if o.LookupEnv != nil {
		return o.LookupEnv
	}
	return os.LookupEnv
}

// Getenv returns the value of an environment variable, or "".
func (o Options) Getenv(key string) string {
	v, _ := o.lookupEnv()(key)
	return v
}

// Session is the state of one invocation. Cluster is empty when no cluster
// is selected, Values is nil outside an app repository.
type Session struct {
	Options       Options
	Resolver      *cluster.Resolver
	Cluster       string
	ClusterConfig *cluster.Config
	Values        *Values

	valuesErr error
}

// NewSession resolves the current cluster and loads the app values. A
// missing cluster or app repository is not an error here; commands that
// need them call RequireCluster or RequireValues.
func NewSession(opts Options) (*Session, error) {
	r := cluster.NewResolver(cluster.Options{
		KubeDir:         opts.KubeDir,
		InternalDir:     opts.ClusterValuesDir,
		ChartDir:        opts.ChartDir,
		ExtraValuesFile: opts.ExtraValuesFile,
		HostsFile:       opts.HostsFile,
		LookupEnv:       opts.lookupEnv(),
	})
	s := &Session{Options: opts, Resolver: r}

	if opts.Use != "" {
		if err := r.Use(opts.Use); err != nil {
			return nil, err
		}
	}

	if env := ProxyEnv(opts.lookupEnv()); len(env) > 0 {
		slog.Warn("you better unset these variables", "env", env)
	}

	cur, err := r.Current()
	switch {
	case errors.Is(err, cluster.ErrNoCurrentCluster):
		slog.Warn("no cluster selected, run lain use <cluster> first", "error", err)
	case err != nil:
		return nil, err
	default:
		s.Cluster = cur
		cc, err := r.Resolve("")
		if err != nil {
			return nil, err
		}
		s.ClusterConfig = cc
	}

	v, err := LoadValues(r.Options().ChartDir, r, s.Cluster)
	switch {
	case errors.Is(err, ErrNotAppRepo):
		slog.Debug("values not loaded", "error", err)
		s.valuesErr = err
	case err != nil:
		return nil, err
	default:
		s.Values = v
	}
	return s, nil
}

// RequireCluster returns the current cluster config or ErrNoCurrentCluster.
func (s *Session) RequireCluster() (*cluster.Config, error) {
	if s.Cluster == "" || s.ClusterConfig == nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, "no cluster selected",
			cluster.ErrNoCurrentCluster).WithHint("run lain use <cluster>")
	}
	return s.ClusterConfig, nil
}

// RequireValues returns the app values or ErrNotAppRepo.
func (s *Session) RequireValues() (*Values, error) {
	if s.Values == nil {
		if s.valuesErr != nil {
			return nil, s.valuesErr
		}
		return nil, ErrNotAppRepo
	}
	return s.Values, nil
}

// URLs lists the ingress URLs of the app on the current cluster.
func (s *Session) URLs() []string {
	return IngressURLs(s.Values, s.ClusterConfig)
}

// Executor tells who runs this invocation.
func (s *Session) Executor() string {
	return Executor(s.Options.Getenv)
}
