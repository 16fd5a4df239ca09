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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/version"
)

// ChartFile is the chart metadata file name.
const ChartFile = "Chart.yaml"

// MinChartVersion is the oldest chart lain lint accepts.
var MinChartVersion = version.MustParse("0.1.11")

// defaultChartVersion applies when Chart.yaml sets no version.
const defaultChartVersion = "0.1.0"

// Chart is the part of Chart.yaml lain reads.
type Chart struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LoadChart reads Chart.yaml from chartDir.
func LoadChart(chartDir string) (*Chart, error) {
	path := filepath.Join(chartDir, ChartFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound,
			fmt.Sprintf("%s not found", path), nil)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to read chart", err)
	}
	var c Chart
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, fmt.Sprintf("invalid %s", path), err)
	}
	if c.Version == "" {
		c.Version = defaultChartVersion
	}
	return &c, nil
}

// CheckChartVersion fails when the chart in chartDir is older than
// MinChartVersion.
func CheckChartVersion(chartDir string) error {
	c, err := LoadChart(chartDir)
	if err != nil {
		return err
	}
	v, err := version.Parse(c.Version)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid chart version", err)
	}
	if !v.AtLeast(MinChartVersion) {
		return apperrors.NewWithContext(apperrors.ErrCodeValidation,
			fmt.Sprintf("chart version too low: %s", c.Version),
			map[string]any{"chart": filepath.Join(chartDir, ChartFile)}).
			WithHint("change the version in " + ChartFile + " to a larger value once the chart no longer needs the built-in template")
	}
	return nil
}
