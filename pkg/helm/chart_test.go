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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

func writeChart(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChartFile), []byte(content), 0o600))
	return dir
}

func TestCheckChartVersion(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode apperrors.ErrorCode
	}{
		{name: "current", content: "name: dummy\nversion: 0.1.11\n"},
		{name: "newer", content: "name: dummy\nversion: 1.0.0\n"},
		{name: "too old", content: "name: dummy\nversion: 0.1.10\n", wantCode: apperrors.ErrCodeValidation},
		{name: "missing version", content: "name: dummy\n", wantCode: apperrors.ErrCodeValidation},
		{name: "garbage version", content: "version: latest\n", wantCode: apperrors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckChartVersion(writeChart(t, tt.content))
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestLoadChartMissing(t *testing.T) {
	_, err := LoadChart(t.TempDir())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}
