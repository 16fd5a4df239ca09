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
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/defaults"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/k8s/client"
	"github.com/lain-cli/lain/pkg/k8s/workload"
	"github.com/lain-cli/lain/pkg/probe"
)

const defaultNamespace = "default"

func statusCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show release state, pods and ingress health of the app",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "refresh until interrupted"},
			&cli.DurationFlag{Name: "interval", Value: defaults.StatusRefreshInterval, Usage: "refresh interval with --watch"},
			formatFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, v, cc, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			cs, err := d.kubeFor(s)
			if err != nil {
				return err
			}
			report := func(ctx context.Context) error {
				st := status{Cluster: s.Cluster, Release: v.Release()}
				rel, err := d.helm().Status(ctx, v.Release())
				if err != nil {
					return err
				}
				if rel == nil {
					st.State = "not deployed"
				} else {
					st.State = rel.Info.Status
					if rel.Stuck() {
						slog.Warn("release is in a stuck state, if this problem persists, use helm rollback",
							"state", rel.Info.Status)
					}
				}
				canary, err := d.helm().Status(ctx, app.CanaryName(v.Release()))
				if err != nil {
					return err
				}
				if canary != nil {
					st.Canary = canary.Info.Status
					slog.Warn("canary deploy in progress, accept or abort it before the next deploy",
						"release", canary.Name)
				}
				rows, err := workload.ListPods(ctx, cs, cc.Namespace, workload.AppSelector(v.Appname))
				if err != nil {
					return err
				}
				st.Pods = rows
				st.digest(v)
				st.URLs = probe.Probe(ctx, d.httpClient, s.URLs())
				st.TLS = app.IngressTLSNames(v, cc)
				return writeOutput(ctx, cmd, st)
			}

			if !cmd.Bool("watch") {
				return report(ctx)
			}
			limiter := rate.NewLimiter(rate.Every(cmd.Duration("interval")), 1)
			for {
				if err := limiter.Wait(ctx); err != nil {
					// interrupted
					return nil
				}
				if err := report(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("status refresh failed", "code", apperrors.CodeOf(err), "error", err)
				}
				fmt.Fprintln(cmd.Root().Writer, "---")
			}
		},
	}
}

func waitCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "wait",
		Usage: "Wait until the pods of an app are up and running",
		Description: `Designed to run in helm tests. Inside a cluster it also waits for the
ingress URLs of the app to answer.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "appname", Aliases: []string{"a"}, Usage: "app to wait for, defaults to the current app"},
			&cli.StringSliceFlag{Name: "selector", Aliases: []string{"l"}, Usage: "label selector, may repeat"},
			&cli.IntFlag{Name: "tries", Value: int(defaults.K8sPodReadyTimeout / defaults.K8sPodPollInterval), Usage: "how many times to check"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			appname, selectors := cmd.String("appname"), cmd.StringSlice("selector")
			if appname != "" && len(selectors) > 0 {
				return apperrors.New(apperrors.ErrCodeInvalidRequest, "cannot use --selector with --appname")
			}
			s, err := d.session(cmd)
			if err != nil {
				return err
			}
			selector := strings.Join(selectors, ",")
			if selector == "" {
				if appname == "" {
					v, err := s.RequireValues()
					if err != nil {
						return err
					}
					appname = v.Appname
				}
				selector = workload.AppSelector(appname)
			}

			cs, err := d.kubeFor(s)
			if err != nil {
				return err
			}
			timeout := time.Duration(cmd.Int("tries")) * defaults.K8sPodPollInterval
			rows, err := workload.WaitForPods(ctx, cs, namespaceOf(s), selector, defaults.K8sPodPollInterval, timeout)
			if err != nil {
				return err
			}
			slog.Info("pods ready", "selector", selector, "count", len(rows))

			if client.InCluster() && s.Values != nil {
				return waitForURLs(ctx, d, s.URLs(), timeout)
			}
			return nil
		},
	}
}

func waitForURLs(ctx context.Context, d *deps, urls []string, timeout time.Duration) error {
	if len(urls) == 0 {
		return nil
	}
	var last []probe.Result
	err := wait.PollUntilContextTimeout(ctx, defaults.K8sPodPollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			last = probe.Probe(ctx, d.httpClient, urls)
			for _, r := range last {
				if !r.OK() {
					return false, nil
				}
			}
			return true, nil
		},
	)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeTimeout, "svc not up", err,
			map[string]any{"results": last}).WithHint("check lain status for clues")
	}
	return nil
}

func createJobCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "create-job",
		Usage:     "Run a cronjob of the app right now and follow its logs",
		ArgsUsage: "CRONJOB",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return apperrors.New(apperrors.ErrCodeInvalidRequest, "provide exactly one cronjob name")
			}
			s, v, cc, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			short := cmd.Args().First()
			if _, ok := v.Cronjobs[short]; !ok {
				return apperrors.NewWithContext(apperrors.ErrCodeNotFound,
					fmt.Sprintf("cronjob %s not found in values", short),
					map[string]any{"cronjobs": workload.SortedKeys(v.Cronjobs)})
			}
			cs, err := d.kubeFor(s)
			if err != nil {
				return err
			}
			cronjob := v.Release() + "-" + short
			job, err := workload.CreateJobFromCronJob(ctx, cs, cc.Namespace, cronjob)
			if err != nil {
				return err
			}
			pod, err := workload.WaitForPodStarted(ctx, cs, cc.Namespace, workload.JobSelector(job.Name),
				defaults.K8sPodPollInterval, defaults.K8sPodReadyTimeout)
			if err != nil {
				return err
			}
			return workload.StreamLogs(ctx, cs, cc.Namespace, pod, true, cmd.Root().Writer, "")
		},
	}
}

func jobCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "job",
		Usage:     "Run a command in a one-off job that shares the image and env of the app",
		ArgsUsage: "-- COMMAND [ARG...]",
		Description: `Copy the pod template of a deployment into a Kubernetes Job running
COMMAND, wait for its pod and follow the logs. The job name is derived from
the command, so running the same command twice collides unless --force is
given.

Examples:
  lain job -- ./manage.py migrate
  lain job --image-tag 1600000000-abc -- make check`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "deploy", Aliases: []string{"d"}, Usage: "deployment to borrow the pod template from, defaults to web"},
			&cli.StringFlag{Name: "image-tag", Usage: "run this image tag instead of the deployed one"},
			&cli.DurationFlag{Name: "timeout", Usage: "job deadline, defaults to the longest deadline of the app jobs"},
			&cli.BoolFlag{Name: "force", Usage: "replace a job of the same name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			command := cmd.Args().Slice()
			if len(command) == 0 {
				return apperrors.New(apperrors.ErrCodeInvalidRequest, "provide a command, for example: lain job -- echo hello")
			}
			s, v, cc, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			deploy := cmd.String("deploy")
			if deploy == "" {
				if deploy, err = bestDeploy(v); err != nil {
					return err
				}
			} else if _, ok := v.Deployments[deploy]; !ok {
				return apperrors.NewWithContext(apperrors.ErrCodeNotFound,
					fmt.Sprintf("deployment %s not found in values", deploy),
					map[string]any{"deployments": workload.SortedKeys(v.Deployments)})
			}
			deadline := cmd.Duration("timeout")
			if deadline == 0 {
				deadline = app.JobTimeout(v)
			}
			cs, err := d.kubeFor(s)
			if err != nil {
				return err
			}
			job, err := workload.CreateCommandJob(ctx, cs, cc.Namespace, workload.CommandJob{
				Name:       app.JobName(v.Appname, command),
				Deployment: v.Release() + "-" + deploy,
				Command:    command,
				ImageTag:   cmd.String("image-tag"),
				Deadline:   deadline,
				Force:      cmd.Bool("force"),
			})
			if err != nil {
				return err
			}
			pod, err := workload.WaitForPodStarted(ctx, cs, cc.Namespace, workload.JobSelector(job.Name),
				defaults.K8sPodPollInterval, defaults.K8sPodReadyTimeout)
			if err != nil {
				return err
			}
			return workload.StreamLogs(ctx, cs, cc.Namespace, pod, true, cmd.Root().Writer, "")
		},
	}
}

// bestDeploy picks the deployment a job borrows its pod template from:
// web when there is one, the first by name otherwise.
func bestDeploy(v *app.Values) (string, error) {
	if _, ok := v.Deployments["web"]; ok {
		return "web", nil
	}
	names := workload.SortedKeys(v.Deployments)
	if len(names) == 0 {
		return "", apperrors.New(apperrors.ErrCodeNotFound, "no deployments in values, lain job needs one")
	}
	return names[0], nil
}

func namespaceOf(s *app.Session) string {
	if s.ClusterConfig != nil && s.ClusterConfig.Namespace != "" {
		return s.ClusterConfig.Namespace
	}
	return defaultNamespace
}
