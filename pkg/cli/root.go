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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/kubernetes"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/defaults"
	"github.com/lain-cli/lain/pkg/helm"
	"github.com/lain-cli/lain/pkg/k8s/client"
	"github.com/lain-cli/lain/pkg/logging"
	"github.com/lain-cli/lain/pkg/metrics"
	"github.com/lain-cli/lain/pkg/registry"
)

const (
	name           = "lain"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// deps are the collaborators commands reach for. Tests swap them for fakes.
type deps struct {
	stdout     io.Writer
	stderr     io.Writer
	lookupEnv  func(string) (string, bool)
	runner     helm.Runner
	kube       func(kubeconfig string) (kubernetes.Interface, error)
	registry   func(cc *cluster.Config) (registry.Client, error)
	prometheus func(cc *cluster.Config, queryRange string) (*metrics.Prometheus, error)
	httpClient *http.Client
}

func defaultDeps() *deps {
	return &deps{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
		runner:    helm.ExecRunner{},
		kube: func(kubeconfig string) (kubernetes.Interface, error) {
			cs, _, err := client.GetKubeClient(kubeconfig)
			return cs, err
		},
		registry:   registry.New,
		prometheus: metrics.NewPrometheus,
		httpClient: &http.Client{Timeout: defaults.ProbeTimeout},
	}
}

func (d *deps) helm() *helm.Client {
	return helm.NewClient(d.runner)
}

// Execute runs the lain command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := defaultDeps()
	if err := newRootCmd(d).Run(ctx, os.Args); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(d.stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "deploy and inspect lain apps on Kubernetes",
		Version:               fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		EnableShellCompletion: true,
		Writer:                d.stdout,
		ErrWriter:             d.stderr,
		Flags:                 globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			initLogger(cmd, d.stderr)
			return ctx, nil
		},
		Commands: []*cli.Command{
			valuesCmd(d),
			clusterConfigCmd(d),
			useCmd(d),
			templateCmd(d),
			getValuesCmd(d),
			lintCmd(d),
			topCmd(d),
			statusCmd(d),
			waitCmd(d),
			tagsCmd(d),
			secretCmd(d, secretFiles),
			secretCmd(d, secretEnv),
			createJobCmd(d),
			jobCmd(d),
			doctorCmd(d),
			adminCmd(d),
			versionCmd(d),
		},
	}
}

func initLogger(cmd *cli.Command, out io.Writer) {
	level := cmd.String("log-level")
	if cmd.Bool("debug") {
		level = "debug"
	}
	logging.SetDefault(logging.Options{
		Module:  name,
		Version: version,
		Level:   level,
		Format:  logging.Format(cmd.String("log-format")),
		Output:  out,
	})
	slog.Debug("starting", "name", name, "version", version, "commit", commit, "date", date)
}

// options collects the global flags into app.Options.
func (d *deps) options(cmd *cli.Command) app.Options {
	return app.Options{
		KubeDir:          cmd.String("kube-dir"),
		ClusterValuesDir: cmd.String("cluster-values-dir"),
		ChartDir:         cmd.String("chart-dir"),
		ExtraValuesFile:  cmd.String("values"),
		Use:              cmd.String("use"),
		IgnoreLint:       cmd.Bool("ignore-lint"),
		LookupEnv:        d.lookupEnv,
	}
}

func (d *deps) session(cmd *cli.Command) (*app.Session, error) {
	return app.NewSession(d.options(cmd))
}

// appSession returns a session inside an app repository on a selected cluster.
func (d *deps) appSession(cmd *cli.Command) (*app.Session, *app.Values, *cluster.Config, error) {
	s, err := d.session(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	v, err := s.RequireValues()
	if err != nil {
		return nil, nil, nil, err
	}
	cc, err := s.RequireCluster()
	if err != nil {
		return nil, nil, nil, err
	}
	return s, v, cc, nil
}

// kubeFor connects to the current cluster. Without one the client falls
// back to KUBECONFIG and then to the in-cluster config.
func (d *deps) kubeFor(s *app.Session) (kubernetes.Interface, error) {
	if s.Cluster == "" {
		return d.kube("")
	}
	return d.kube(s.Resolver.KubeconfigPath(s.Cluster))
}
