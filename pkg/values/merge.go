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
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrDuplication is matched by every DuplicationError.
var ErrDuplication = errors.New("duplicate value")

// DuplicationError reports an overlay key whose value equals the base value
// while duplication prevention is enabled.
type DuplicationError struct {
	Key    string
	Value  any
	Source string
}

// Error implements the error interface.
func (e *DuplicationError) Error() string {
	msg := fmt.Sprintf("duplicate value %v for key %q", e.Value, e.Key)
	if e.Source != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.Source)
	}
	return msg
}

// Is makes errors.Is(err, ErrDuplication) true.
func (e *DuplicationError) Is(target error) bool {
	return target == ErrDuplication
}

type mergeOptions struct {
	ignoreExtra        bool
	preventDuplication bool
}

// MergeOption tunes a single Merge call.
type MergeOption func(*mergeOptions)

// WithIgnoreExtra drops overlay keys the base does not already have.
func WithIgnoreExtra() MergeOption {
	return func(o *mergeOptions) { o.ignoreExtra = true }
}

// WithPreventDuplication fails when the overlay repeats a non-empty base value.
func WithPreventDuplication() MergeOption {
	return func(o *mergeOptions) { o.preventDuplication = true }
}

// Merge folds overlay into base and returns base. A nil base is allocated
// when the overlay has something to contribute. Options only govern the
// overlay's top-level keys.
func Merge(base, overlay Tree, opts ...MergeOption) (Tree, error) {
	if len(overlay) == 0 {
		return base, nil
	}
	o := &mergeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if base == nil {
		base = make(Tree, len(overlay))
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := overlay[k]
		old, exists := base[k]
		if !exists {
			if o.ignoreExtra {
				continue
			}
			base[k] = cloneValue(v)
			continue
		}

		if !sameType(old, v) {
			base[k] = cloneValue(v)
			continue
		}

		if oldMap, ok := old.(map[string]any); ok {
			if _, err := Merge(oldMap, v.(map[string]any)); err != nil {
				return base, err
			}
			continue
		}

		if o.preventDuplication && !isEmpty(old) && reflect.DeepEqual(old, v) {
			return base, &DuplicationError{Key: k, Value: v}
		}
		base[k] = cloneValue(v)
	}
	return base, nil
}

// MustMerge is Merge without options; it cannot fail.
func MustMerge(base, overlay Tree) Tree {
	out, err := Merge(base, overlay)
	if err != nil {
		panic(fmt.Sprintf("MustMerge: %v", err))
	}
	return out
}
