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
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/serializer"
	"github.com/lain-cli/lain/pkg/values"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "values",
			Aliases: []string{"f"},
			Usage:   "extra values file, merged over the chart and cluster values",
			Sources: cli.EnvVars("LAIN_VALUES"),
		},
		&cli.StringFlag{
			Name:    "cluster-values-dir",
			Usage:   "directory holding the internal values of every cluster",
			Value:   cluster.DefaultInternalDir(),
			Sources: cli.EnvVars(cluster.EnvClusterValuesDir),
		},
		&cli.StringFlag{
			Name:    "kube-dir",
			Usage:   "directory holding kubeconfig-<cluster> files",
			Value:   cluster.DefaultKubeDir(),
			Sources: cli.EnvVars("LAIN_KUBE_DIR"),
		},
		&cli.StringFlag{
			Name:  "chart-dir",
			Usage: "helm chart directory of the app",
			Value: cluster.DefaultChartDir,
		},
		&cli.StringFlag{
			Name:  "use",
			Usage: "switch to this cluster before running the command",
		},
		&cli.BoolFlag{
			Name:    "ignore-lint",
			Usage:   "skip lain lint",
			Sources: cli.EnvVars("LAIN_IGNORE_LINT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (text, json)",
			Value: "text",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "shorthand for --log-level debug",
		},
	}
}

// outputFlag and its siblings return a fresh flag per command, since a
// urfave flag keeps its parsed value.
func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout)",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("output format: %s", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func setFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "set",
		Usage: "extra helm values as KEY=VALUE, may repeat",
	}
}

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", f)
	}
	return f, nil
}

// writeOutput serializes v as --format to --output, or to the command writer.
func writeOutput(ctx context.Context, cmd *cli.Command, v any) error {
	f, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}
	var w *serializer.Writer
	if path := cmd.String("output"); path != "" {
		w = serializer.NewFileWriterOrStdout(f, path)
	} else {
		w = serializer.NewWriter(f, cmd.Root().Writer)
	}
	defer w.Close()
	if err := w.Serialize(ctx, v); err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	return nil
}

// setPairs parses --set flags. The last occurrence of a key wins.
func setPairs(cmd *cli.Command) (map[string]string, error) {
	return values.ParseSetPairs(cmd.StringSlice("set"))
}
