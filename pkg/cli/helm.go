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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/lain-cli/lain/pkg/app"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/helm"
	"github.com/lain-cli/lain/pkg/metrics"
)

func templateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "Render the app manifests with helm template",
		Description: `Render the chart with every values layer of the current cluster, the same
way a deploy would, and print the manifests.

Examples:
  lain template
  lain template --set imageTag=1600000000-abc -D`,
		Flags: []cli.Flag{
			setFlag(),
			&cli.BoolFlag{Name: "debug-template", Aliases: []string{"D"}, Usage: "pass --debug to helm"},
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
			pairs, err := setPairs(cmd)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid --set", err)
			}
			out, err := d.helm().Template(ctx, helm.TemplateOptions{
				Release:  v.Release(),
				ChartDir: s.Resolver.Options().ChartDir,
				Options:  helm.HelmOptions(s, pairs),
				Debug:    cmd.Bool("debug-template"),
			})
			if err != nil {
				return err
			}
			_, err = cmd.Root().Writer.Write(out)
			return err
		},
	}
}

func getValuesCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "get-values",
		Usage: "Print the values of the deployed release",
		Flags: []cli.Flag{outputFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, v, _, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			t, err := d.helm().GetValues(ctx, v.Release())
			if err != nil {
				return err
			}
			return writeOutput(ctx, cmd, t)
		},
	}
}

func lintCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "Check the chart and suggest resources based on real usage",
		Description: `Run helm lint and helm template, check the chart version, then compare
the requests and limits of every proc with what Prometheus observed.

Low CPU limits are reported as warnings. Everything else fails the command.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "simple", Aliases: []string{"s"}, Usage: "skip the Prometheus based checks"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := d.session(cmd)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			if s.Options.IgnoreLint {
				fmt.Fprintln(w, "you just ran lain lint using --ignore-lint, what a great way to use this command")
				return nil
			}
			v, err := s.RequireValues()
			if err != nil {
				return err
			}

			chartDir := s.Resolver.Options().ChartDir
			opts := helm.HelmOptions(s, nil)
			h := d.helm()
			if err := h.Lint(ctx, chartDir, opts); err != nil {
				return err
			}
			out, err := h.Template(ctx, helm.TemplateOptions{Release: v.Release(), ChartDir: chartDir, Options: opts})
			if err != nil {
				return err
			}
			if len(bytes.TrimSpace(out)) == 0 {
				return apperrors.New(apperrors.ErrCodeValidation, "helm template render result is empty").
					WithHint("make sure " + chartDir + "/values.yaml is not empty and the chart templates are complete")
			}
			if err := helm.CheckChartVersion(chartDir); err != nil {
				return err
			}
			bad, err := app.OverriddenBuilds(chartDir, v.Appname)
			if err != nil {
				return err
			}
			if len(bad) > 0 {
				return apperrors.New(apperrors.ErrCodeValidation, "build is overridden in "+strings.Join(bad, ", ")).
					WithHint("override appname in the same file, so images of different builds never share a repository")
			}
			if cmd.Bool("simple") || s.ClusterConfig.Empty() || s.ClusterConfig.Prometheus == "" {
				return nil
			}

			tops, err := d.tops(ctx, s.ClusterConfig, v)
			if err != nil {
				return err
			}
			findings := metrics.Lint(tops)
			for _, f := range findings {
				if f.Severity == metrics.SeverityWarning {
					slog.Warn(f.String())
				} else {
					fmt.Fprintln(w, f.String())
				}
			}
			if metrics.HasErrors(findings) {
				return apperrors.New(apperrors.ErrCodeValidation, "resource declarations do not match real usage").
					WithHint("apply the suggestions above to values.yaml")
			}
			return nil
		},
	}
}

func topCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Show CPU and memory usage of every proc measured by Prometheus",
		Flags: []cli.Flag{outputFlag(), formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, v, cc, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			tops, err := d.tops(ctx, cc, v)
			if err != nil {
				return err
			}
			return writeOutput(ctx, cmd, topTable(tops))
		},
	}
}
