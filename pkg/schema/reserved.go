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

package schema

import "sync"

const reservedWordMessage = "this is a reserved word, please change"

var (
	reservedOnce  sync.Once
	reservedWords map[string]struct{}
)

func reserved() map[string]struct{} {
	reservedOnce.Do(func() {
		reservedWords = collectReserved(HelmValues, ClusterConfig)
	})
	return reservedWords
}

// collectReserved walks every schema reachable from roots.
func collectReserved(roots ...*Schema) map[string]struct{} {
	words := make(map[string]struct{})
	seen := make(map[*Schema]bool)

	var walkSchema func(s *Schema)
	var walkField func(f *Field)

	walkField = func(f *Field) {
		if f == nil {
			return
		}
		if f.Schema != nil {
			walkSchema(f.Schema)
		}
		walkField(f.Elem)
	}
	walkSchema = func(s *Schema) {
		if s == nil || seen[s] {
			return
		}
		seen[s] = true
		if !s.Strict {
			for _, f := range s.Fields {
				words[f.Name] = struct{}{}
			}
			for _, a := range s.Aliases {
				words[a.Canonical] = struct{}{}
				for _, n := range a.Names {
					words[n] = struct{}{}
				}
			}
		}
		for i := range s.Fields {
			walkField(&s.Fields[i])
		}
	}

	for _, r := range roots {
		walkSchema(r)
	}
	return words
}

// IsReserved reports whether name is used by a schema as a key.
func IsReserved(name string) bool {
	_, ok := reserved()[name]
	return ok
}
