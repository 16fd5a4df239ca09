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
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
)

func valuesCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "values",
		Usage: "Print the merged and validated values of the app",
		Description: `Merge chart/values.yaml with the values file of the current cluster and
the file given by --values, validate the result and print it. Pairs given
with --set are applied last, the same way helm applies them.

Examples:
  lain values
  lain --values extra.yaml values --format json
  lain values --cluster prod --set deployments.web.replicaCount=3`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cluster", Aliases: []string{"c"}, Usage: "merge the values of this cluster instead of the current one"},
			setFlag(),
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := d.session(cmd)
			if err != nil {
				return err
			}
			v, err := s.RequireValues()
			if err != nil {
				return err
			}
			if c := cmd.String("cluster"); c != "" && c != s.Cluster {
				if v, err = app.LoadValues(s.Resolver.Options().ChartDir, s.Resolver, c); err != nil {
					return err
				}
			}
			pairs, err := setPairs(cmd)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid --set", err)
			}
			out := values.Clone(v.Raw)
			if err := values.ApplySetPairs(out, pairs); err != nil {
				return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid --set", err)
			}
			return writeOutput(ctx, cmd, out)
		},
	}
}

func clusterConfigCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "cluster-config",
		Usage:     "Print the validated config of a cluster",
		ArgsUsage: "[CLUSTER]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "print the config of every known cluster"},
			outputFlag(),
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := d.session(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("all") {
				all, err := s.Resolver.All()
				if err != nil {
					return err
				}
				out := make(map[string]any, len(all))
				for name, cc := range all {
					out[name] = cc.Raw
				}
				return writeOutput(ctx, cmd, out)
			}
			name := cmd.Args().First()
			var cc *cluster.Config
			if name == "" {
				if cc, err = s.RequireCluster(); err != nil {
					return err
				}
			} else if cc, err = s.Resolver.Resolve(name); err != nil {
				return err
			}
			if cc.Empty() {
				return fmt.Errorf("no cluster values found for %s", cc.Name)
			}
			return writeOutput(ctx, cmd, cc.Raw)
		},
	}
}

func useCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Point ~/.kube/config to a cluster, or list clusters",
		ArgsUsage: "[CLUSTER]",
		Description: `With CLUSTER, link kubeconfig-CLUSTER to the kube config so kubectl and
helm talk to that cluster. Without it, list known clusters and mark the
current one.`,
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return fmt.Errorf("provide one cluster only, got %v", cmd.Args().Slice())
			}
			opts := d.options(cmd)
			opts.Use = cmd.Args().First()
			s, err := app.NewSession(opts)
			if err != nil {
				return err
			}
			return printClusters(cmd, s)
		},
	}
}

func printClusters(cmd *cli.Command, s *app.Session) error {
	names, err := s.Resolver.Clusters()
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	if s.Cluster == "" {
		fmt.Fprintln(w, "you're nowhere, pick a cluster from the following:")
	}
	for _, c := range names {
		mark := " "
		if c == s.Cluster {
			mark = "*"
		}
		line := mark + " " + c
		if cc, err := s.Resolver.Resolve(c); err == nil && cc.ExtraDocs != "" {
			line += ", " + cc.ExtraDocs
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
