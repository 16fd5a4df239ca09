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
	"log/slog"
)

// Layer is one source of values in the merge order.
type Layer struct {
	// Name identifies the layer in logs, e.g. "internal" or "extra".
	Name string
	// Path is the file the tree was read from, if any.
	Path string
	Tree Tree

	IgnoreExtra        bool
	PreventDuplication bool
}

// Options returns the merge options this layer asks for.
func (l Layer) Options() []MergeOption {
	var opts []MergeOption
	if l.IgnoreExtra {
		opts = append(opts, WithIgnoreExtra())
	}
	if l.PreventDuplication {
		opts = append(opts, WithPreventDuplication())
	}
	return opts
}

// MergeLayers merges layers into base in order. A duplication error is
// stamped with the path of the layer that caused it.
func MergeLayers(base Tree, layers ...Layer) (Tree, error) {
	var err error
	for _, l := range layers {
		if len(l.Tree) == 0 {
			continue
		}
		slog.Debug("merging values layer",
			"layer", l.Name,
			"path", l.Path,
			"ignoreExtra", l.IgnoreExtra,
			"preventDuplication", l.PreventDuplication)

		base, err = Merge(base, l.Tree, l.Options()...)
		if err != nil {
			var dup *DuplicationError
			if errors.As(err, &dup) && dup.Source == "" {
				dup.Source = l.Path
				if dup.Source == "" {
					dup.Source = l.Name
				}
			}
			return base, err
		}
	}
	return base, nil
}
