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
	"log/slog"

	"github.com/urfave/cli/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/k8s/workload"
	"github.com/lain-cli/lain/pkg/registry"
)

func tagsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List recent image tags of the app in the cluster registry",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: registry.RecentTagsCount, Usage: "how many tags to show"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, v, cc, err := d.appSession(cmd)
			if err != nil {
				return err
			}
			rc, err := d.registry(cc)
			if err != nil {
				return err
			}
			repo := rc.Repo(v.Appname)
			tags, err := rc.ListTags(ctx, repo)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			if len(tags) == 0 {
				fmt.Fprintf(w, "no images found for %s\n", repo)
				return nil
			}
			for _, tag := range registry.SortAndFilter(tags, cmd.Int("n")) {
				fmt.Fprintln(w, app.ImageString(cc.Registry, v.Appname, tag))
			}
			return nil
		},
	}
}

func adminCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Cluster maintenance, for cluster administrators",
		Commands: []*cli.Command{
			{
				Name:  "cleanup-registry",
				Usage: "Delete old image tags that no pod is running",
				Description: `Every repository keeps its most recent tags, the tags of running pods and
the protected tags. Everything else is deleted.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "only print what would be deleted"},
					formatFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := d.session(cmd)
					if err != nil {
						return err
					}
					cc, err := s.RequireCluster()
					if err != nil {
						return err
					}
					cs, err := d.kubeFor(s)
					if err != nil {
						return err
					}
					running, err := workload.RunningImageTags(ctx, cs, metav1.NamespaceAll)
					if err != nil {
						return err
					}
					rc, err := d.registry(cc)
					if err != nil {
						return err
					}
					results, err := registry.Cleanup(ctx, rc, running, cmd.Bool("dry-run"))
					if err != nil {
						return err
					}
					deleted := 0
					for _, r := range results {
						deleted += len(r.Deleted)
					}
					slog.Info("registry cleanup done", "repos", len(results), "tags", deleted, "dry_run", cmd.Bool("dry-run"))
					return writeOutput(ctx, cmd, results)
				},
			},
			{
				Name:  "list-images",
				Usage: "List every image in the cluster registry",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := d.session(cmd)
					if err != nil {
						return err
					}
					cc, err := s.RequireCluster()
					if err != nil {
						return err
					}
					rc, err := d.registry(cc)
					if err != nil {
						return err
					}
					images, err := rc.ListImages(ctx)
					if err != nil {
						return err
					}
					w := cmd.Root().Writer
					for _, img := range images {
						fmt.Fprintln(w, img)
					}
					return nil
				},
			},
		},
	}
}
