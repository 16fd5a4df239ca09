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

package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lain-cli/lain/pkg/defaults"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
	"github.com/lain-cli/lain/pkg/version"
)

const (
	// DefaultBinary is the helm executable name.
	DefaultBinary = "helm"

	statusUninstalled = "uninstalled"
)

// MinVersion is the oldest helm lain works with.
var MinVersion = version.MustParse("v3.8.0")

// StuckStates are release states a previous helm run left behind.
var StuckStates = map[string]bool{
	"pending-install": true,
	"pending-upgrade": true,
	"uninstalling":    true,
}

// Client runs helm commands.
type Client struct {
	Binary string
	Runner Runner
}

// NewClient returns a Client running the helm binary in PATH through r. A
// nil r executes helm directly.
func NewClient(r Runner) *Client {
	if r == nil {
		r = ExecRunner{}
	}
	return &Client{Binary: DefaultBinary, Runner: r}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	ctx, cancel := context.WithTimeout(ctx, defaults.HelmCommandTimeout)
	defer cancel()
	return c.Runner.Run(ctx, bin, args...)
}

// Version returns the helm client version.
func (c *Client) Version(ctx context.Context) (version.Version, error) {
	out, stderr, err := c.run(ctx, "version", "--short")
	if err != nil {
		return version.Version{}, commandError("helm version", stderr, err)
	}
	return version.Extract(string(out))
}

// EnsureVersion fails when helm is missing or older than min.
func (c *Client) EnsureVersion(ctx context.Context, min version.Version) error {
	v, err := c.Version(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnavailable, "cannot tell helm version", err).
			WithHint(fmt.Sprintf("install helm >= %s, see https://github.com/helm/helm", min))
	}
	if !v.AtLeast(min) {
		return apperrors.NewWithContext(apperrors.ErrCodeUnavailable,
			fmt.Sprintf("your helm too old: %s", v),
			map[string]any{"min": min.String()},
		).WithHint(fmt.Sprintf("install helm >= %s, see https://github.com/helm/helm", min))
	}
	slog.Debug("helm version ok", "version", v.String())
	return nil
}

// TemplateOptions configures helm template.
type TemplateOptions struct {
	Release  string
	ChartDir string
	// Options are the --set and -f arguments from Options.Args.
	Options Options
	Debug   bool
}

// Template renders the chart and returns the manifests.
func (c *Client) Template(ctx context.Context, opts TemplateOptions) ([]byte, error) {
	args := append([]string{"template"}, opts.Options.Args()...)
	if opts.Debug {
		args = append(args, "--debug")
	}
	args = append(args, opts.Release, opts.ChartDir)
	out, stderr, err := c.run(ctx, args...)
	if err != nil {
		return nil, commandError("helm template", stderr, err)
	}
	return out, nil
}

// Lint runs helm lint on the chart.
func (c *Client) Lint(ctx context.Context, chartDir string, opts Options) error {
	args := append([]string{"lint", chartDir}, opts.Args()...)
	if _, stderr, err := c.run(ctx, args...); err != nil {
		return commandError("helm lint", stderr, err)
	}
	return nil
}

// Release is the part of helm status output lain reads.
type Release struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Version   int    `json:"version" yaml:"version"`
	Info      struct {
		Status       string `json:"status" yaml:"status"`
		Description  string `json:"description,omitempty" yaml:"description,omitempty"`
		LastDeployed string `json:"last_deployed,omitempty" yaml:"lastDeployed,omitempty"`
	} `json:"info" yaml:"info"`
}

// Stuck reports whether the release is left in a pending state.
func (r *Release) Stuck() bool {
	return r != nil && StuckStates[r.Info.Status]
}

// Status returns the release, or nil when it does not exist or was
// uninstalled.
func (c *Client) Status(ctx context.Context, release string) (*Release, error) {
	out, stderr, err := c.run(ctx, "status", release, "-o", "json")
	if err != nil {
		if strings.Contains(string(stderr), "not found") {
			return nil, nil
		}
		return nil, commandError("helm status", stderr, err)
	}
	var rel Release
	if err := json.Unmarshal(out, &rel); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to parse helm status", err)
	}
	if rel.Info.Status == statusUninstalled {
		return nil, nil
	}
	return &rel, nil
}

// GetValues returns the user supplied values of a release.
func (c *Client) GetValues(ctx context.Context, release string) (values.Tree, error) {
	out, stderr, err := c.run(ctx, "get", "values", release, "-o", "yaml")
	if err != nil {
		return nil, commandError("helm get values", stderr, err)
	}
	t, err := values.DecodeTree(out)
	if err != nil {
		return nil, fmt.Errorf("helm get values %s: %w", release, err)
	}
	return t, nil
}

func commandError(what string, stderr []byte, err error) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = what + " failed"
	}
	if apperrors.HasCode(err, apperrors.ErrCodeUnavailable) {
		return err
	}
	return apperrors.WrapWithContext(apperrors.ErrCodeInternal, msg, err,
		map[string]any{"command": what})
}
