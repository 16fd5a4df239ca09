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

package values

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "values.yaml", `
appname: dummy
deployments:
  web:
    replicaCount: 1
    resources:
      limits:
        cpu: 1000m
`)
	got, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "dummy", got["appname"])
	v, ok := Get(got, "deployments.web.replicaCount")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, "1000m", GetString(got, "deployments.web.resources.limits.cpu", ""))
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "extra.json", `{"env": {"A": "1"}}`)
	got, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, Tree{"env": map[string]any{"A": "1"}}, got)
}

func TestLoadFile_Empty(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "values-test.yaml", "")
	got, err := LoadFile(p)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadFile_Link(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "values-prod.yaml", "env:\n  STAGE: prod\n")
	p := writeFile(t, dir, "values-prod-backup.yaml", "values-prod.yaml\n")

	got, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "prod", GetString(got, "env.STAGE", ""))
}

func TestLoadFile_LinkIsFollowedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "b.yaml\n")
	writeFile(t, dir, "b.yaml", "a.yaml\n")

	_, err := LoadFile(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, apperrors.CodeOf(err))
}

func TestLoadFile_NotMapping(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "values.yaml", "- a\n- b\n")
	_, err := LoadFile(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a mapping")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "values.yaml", "foo: [unclosed\n")
	_, err := LoadFile(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), p)
}
