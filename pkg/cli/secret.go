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
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/kubernetes"

	"github.com/lain-cli/lain/pkg/app"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/k8s/workload"
	"github.com/lain-cli/lain/pkg/values"
)

// secretKind describes one of the two Secrets every app owns.
type secretKind struct {
	command string
	usage   string
	kind    workload.SecretKind
	name    func(v *app.Values) string
	// addArgs names what add takes.
	addArgs string
	parse   func(args []string) (map[string]string, error)
}

var (
	secretFiles = secretKind{
		command: "secret",
		usage:   "Manage files mounted from the app Secret",
		kind:    workload.KindFile,
		name:    (*app.Values).SecretName,
		addArgs: "FILE...",
		parse:   readSecretFiles,
	}
	secretEnv = secretKind{
		command: "env",
		usage:   "Manage environment variables injected from the app env Secret",
		kind:    workload.KindEnv,
		name:    (*app.Values).EnvName,
		addArgs: "KEY=VALUE...",
		parse:   values.ParseSetPairs,
	}
)

const nothingAdded = "You just added nothing, what a great way to use this command"

func secretCmd(d *deps, k secretKind) *cli.Command {
	commands := []*cli.Command{
		{
			Name:  "show",
			Usage: "Print the content, creating the Secret with an example when missing",
			Flags: []cli.Flag{outputFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				sc, err := d.secretContext(cmd, k)
				if err != nil {
					return err
				}
				data, err := workload.EnsureSecret(ctx, sc.cs, sc.ns, sc.name, k.kind)
				if err != nil {
					return err
				}
				return writeOutput(ctx, cmd, data)
			},
		},
		{
			Name:      "add",
			Aliases:   []string{"set"},
			Usage:     "Add or overwrite entries",
			ArgsUsage: k.addArgs,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				kv, err := k.parse(cmd.Args().Slice())
				if err != nil {
					return err
				}
				return d.addSecret(ctx, cmd, k, kv)
			},
		},
		{
			Name:      "remove",
			Usage:     "Remove entries",
			ArgsUsage: "KEY...",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() == 0 {
					return apperrors.New(apperrors.ErrCodeInvalidRequest, "provide at least one key to remove")
				}
				sc, err := d.secretContext(cmd, k)
				if err != nil {
					return err
				}
				diff, err := workload.RemoveSecretKeys(ctx, sc.cs, sc.ns, sc.name, cmd.Args().Slice()...)
				if err != nil {
					return err
				}
				printDiff(cmd, sc.name, diff)
				return nil
			},
		},
	}
	if k.kind == workload.KindEnv {
		commands = append(commands, &cli.Command{
			Name:      "add-file",
			Usage:     "Add every key of a flat yaml or json file",
			ArgsUsage: "FILE",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() != 1 {
					return apperrors.New(apperrors.ErrCodeInvalidRequest, "provide exactly one file")
				}
				kv, err := readEnvFile(cmd.Args().First())
				if err != nil {
					return err
				}
				return d.addSecret(ctx, cmd, k, kv)
			},
		})
	}
	return &cli.Command{
		Name:     k.command,
		Usage:    k.usage,
		Commands: commands,
	}
}

type secretContext struct {
	cs   kubernetes.Interface
	ns   string
	name string
}

func (d *deps) secretContext(cmd *cli.Command, k secretKind) (*secretContext, error) {
	s, v, cc, err := d.appSession(cmd)
	if err != nil {
		return nil, err
	}
	cs, err := d.kubeFor(s)
	if err != nil {
		return nil, err
	}
	return &secretContext{cs: cs, ns: cc.Namespace, name: k.name(v)}, nil
}

func (d *deps) addSecret(ctx context.Context, cmd *cli.Command, k secretKind, kv map[string]string) error {
	if len(kv) == 0 {
		fmt.Fprintln(cmd.Root().Writer, nothingAdded)
		return nil
	}
	sc, err := d.secretContext(cmd, k)
	if err != nil {
		return err
	}
	diff, err := workload.UpdateSecret(ctx, sc.cs, sc.ns, sc.name, k.kind, kv)
	if err != nil {
		return err
	}
	printDiff(cmd, sc.name, diff)
	return nil
}

func printDiff(cmd *cli.Command, name string, diff values.Diff) {
	w := cmd.Root().Writer
	if diff.Empty() {
		fmt.Fprintf(w, "%s unchanged\n", name)
		return
	}
	for _, line := range []struct {
		what string
		keys []string
	}{
		{"added", diff.Added},
		{"removed", diff.Removed},
		{"changed", diff.Changed},
	} {
		if len(line.keys) > 0 {
			fmt.Fprintf(w, "%s %s: %s\n", line.what, name, strings.Join(line.keys, ", "))
		}
	}
}

// readSecretFiles keys every file by its base name.
func readSecretFiles(paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, "failed to read secret file", err)
		}
		out[filepath.Base(p)] = string(data)
	}
	return out, nil
}

// readEnvFile loads a flat mapping of scalars.
func readEnvFile(path string) (map[string]string, error) {
	t, err := values.LoadFile(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		switch v.(type) {
		case map[string]any, []any:
			return nil, apperrors.NewWithContext(apperrors.ErrCodeValidation,
				"env file must be a flat mapping", map[string]any{"key": k, "file": path})
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}
