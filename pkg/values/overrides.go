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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseSetPairs parses KEY=VALUE arguments as given to --set.
func ParseSetPairs(args []string) (map[string]string, error) {
	pairs := make(map[string]string, len(args))
	for _, arg := range args {
		for _, item := range strings.Split(arg, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			k, v, ok := strings.Cut(item, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return nil, fmt.Errorf("bad key-value pair %q, expected KEY=VALUE", item)
			}
			pairs[k] = v
		}
	}
	return pairs, nil
}

// ApplySetPairs writes pairs into target the way helm --set would, so a
// printed tree matches what the chart is rendered with. Keys are dot paths;
// missing maps along a path are created. A path running into a non-map
// value is an error, and every such path is reported.
func ApplySetPairs(target Tree, pairs map[string]string) error {
	if target == nil {
		return fmt.Errorf("cannot apply --set values to a nil tree")
	}
	paths := make([]string, 0, len(pairs))
	for p := range pairs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var bad []string
	for _, p := range paths {
		if err := assign(target, strings.Split(p, "."), helmScalar(pairs[p])); err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", p, err))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("cannot apply --set values: %s", strings.Join(bad, "; "))
	}
	return nil
}

func assign(t Tree, keys []string, v any) error {
	head := keys[0]
	if len(keys) == 1 {
		t[head] = v
		return nil
	}
	child, ok := t[head]
	if !ok || child == nil {
		child = map[string]any{}
		t[head] = child
	}
	m, ok := child.(map[string]any)
	if !ok {
		return fmt.Errorf("%s holds a %s, not a map", head, KindOf(child))
	}
	return assign(m, keys[1:], v)
}

// helmScalar types a --set value like helm does: null, booleans and
// integers without a leading zero are converted, everything else stays a
// string.
func helmScalar(s string) any {
	switch strings.ToLower(s) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if s == "0" {
		return 0
	}
	if !strings.HasPrefix(s, "0") && !strings.HasPrefix(s, "+") {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return s
}
