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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSetPairs(t *testing.T) {
	got, err := ParseSetPairs([]string{"imageTag=abc", "a.b=1,c=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"imageTag": "abc", "a.b": "1", "c": "true"}, got)

	_, err = ParseSetPairs([]string{"novalue"})
	assert.Error(t, err)

	_, err = ParseSetPairs([]string{"=x"})
	assert.Error(t, err)
}

func TestApplySetPairs(t *testing.T) {
	tree := Tree{"deployments": map[string]any{"web": map[string]any{"replicaCount": 1}}}
	err := ApplySetPairs(tree, map[string]string{
		"deployments.web.replicaCount": "3",
		"canary":                       "true",
		"ratio":                        "0.5",
		"imageTag":                     "1234abc",
		"build":                        "0123",
		"env":                          "null",
		"new.nested.key":               "v",
	})
	require.NoError(t, err)

	v, _ := Get(tree, "deployments.web.replicaCount")
	assert.Equal(t, 3, v)
	assert.Equal(t, true, tree["canary"])
	// helm keeps floats and zero padded numbers as strings
	assert.Equal(t, "0.5", tree["ratio"])
	assert.Equal(t, "0123", tree["build"])
	assert.Nil(t, tree["env"])
	assert.Contains(t, tree, "env")
	assert.Equal(t, "1234abc", tree["imageTag"])
	assert.Equal(t, "v", GetString(tree, "new.nested.key", ""))
}

func TestApplySetPairs_NonMapSegment(t *testing.T) {
	tree := Tree{"appname": "dummy"}
	err := ApplySetPairs(tree, map[string]string{"appname.sub": "x", "appname.other": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a map")
	assert.Contains(t, err.Error(), "appname.other")
	assert.Contains(t, err.Error(), "appname.sub")

	assert.Error(t, ApplySetPairs(nil, map[string]string{"a": "b"}))
}
