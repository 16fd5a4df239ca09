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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/lain-cli/lain/pkg/app"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/helm"
	"github.com/lain-cli/lain/pkg/k8s/client"
	semver "github.com/lain-cli/lain/pkg/version"
)

const kubectlBinary = "kubectl"

// check is one doctor finding. An empty Problem means the check passed.
type check struct {
	Name    string `json:"name" yaml:"name"`
	Problem string `json:"problem,omitempty" yaml:"problem,omitempty"`
}

type checkTable []check

func (t checkTable) TableHeader() []string {
	return []string{"CHECK", "RESULT"}
}

func (t checkTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		result := "ok"
		if c.Problem != "" {
			result = c.Problem
		}
		rows = append(rows, []string{c.Name, result})
	}
	return rows
}

func doctorCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check the local toolchain and cluster setup",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all-clusters", Usage: "also validate the config of every known cluster"},
			&cli.StringFlag{Name: "format", Aliases: []string{"t"}, Value: "table", Usage: "output format: yaml, json, table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := d.session(cmd)
			if err != nil {
				return err
			}
			checks := d.diagnose(ctx, s, cmd.Bool("all-clusters"))
			if err := writeOutput(ctx, cmd, checkTable(checks)); err != nil {
				return err
			}
			var failed []string
			for _, c := range checks {
				if c.Problem != "" {
					failed = append(failed, c.Name)
				}
			}
			if len(failed) > 0 {
				return apperrors.NewWithContext(apperrors.ErrCodeValidation, "doctor found problems",
					map[string]any{"checks": failed})
			}
			return nil
		},
	}
}

func (d *deps) diagnose(ctx context.Context, s *app.Session, allClusters bool) []check {
	var checks []check
	add := func(name string, err error) {
		c := check{Name: name}
		if err != nil {
			c.Problem = err.Error()
			slog.Debug("doctor check failed", "check", name, "error", err)
		}
		checks = append(checks, c)
	}

	add("helm version", d.helm().EnsureVersion(ctx, helm.MinVersion))

	if proxies := app.ProxyEnv(d.lookupEnv); len(proxies) > 0 {
		add("proxy", fmt.Errorf("%s set, kubectl and helm may not reach the cluster", strings.Join(proxies, ", ")))
	}

	if s.Cluster == "" {
		add("cluster", ErrNoCluster)
	} else {
		add("kubectl version", d.checkKubectl(ctx, s))
	}

	if allClusters {
		all, err := s.Resolver.All()
		if err != nil {
			add("cluster configs", err)
			return checks
		}
		names := make([]string, 0, len(all))
		for n := range all {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			var err error
			if all[n].Empty() {
				err = fmt.Errorf("no cluster values found")
			}
			add("cluster config "+n, err)
		}
	}
	return checks
}

// ErrNoCluster is reported when no kube config link exists.
var ErrNoCluster = apperrors.New(apperrors.ErrCodeMissingValue, "no cluster selected").
	WithHint("run lain use CLUSTER")

func (d *deps) checkKubectl(ctx context.Context, s *app.Session) error {
	out, stderr, err := d.runner.Run(ctx, kubectlBinary, "version", "--client")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnavailable,
			"kubectl version failed: "+strings.TrimSpace(string(stderr)), err)
	}
	cv, err := clientVersion(out)
	if err != nil {
		return err
	}
	cs, err := d.kubeFor(s)
	if err != nil {
		return err
	}
	sv, err := client.ServerVersion(cs)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnavailable, "cannot reach the cluster", err)
	}
	if !semver.SkewOK(cv, sv) {
		return apperrors.NewWithContext(apperrors.ErrCodeValidation, "kubectl and server versions are too far apart",
			map[string]any{"client": cv.String(), "server": sv.String()}).
			WithHint("install a kubectl within one minor version of the server")
	}
	return nil
}

// clientVersion picks the client line out of kubectl version output.
func clientVersion(out []byte) (semver.Version, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "Client Version") {
			return semver.Extract(line)
		}
	}
	return semver.Extract(string(out))
}

func versionCmd(_ *deps) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the lain version",
		Action: func(_ context.Context, cmd *cli.Command) error {
			fmt.Fprintf(cmd.Root().Writer, "%s %s (commit %s, built %s)\n", name, version, commit, date)
			return nil
		},
	}
}
