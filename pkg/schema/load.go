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

import (
	"sort"
	"strconv"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
)

// Load validates raw against s and returns the loaded tree. The input is not
// modified. Alias keys are left in place; read canonical keys only.
func Load(s *Schema, raw values.Tree, lc LoadContext) (values.Tree, error) {
	tree := values.Clone(raw)
	if tree == nil {
		tree = values.Tree{}
	}

	s.prepare(tree)

	errs := &collector{}
	if err := checkShape(s, tree, errs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "schema check could not run", err)
	}
	if len(errs.errs) > 0 {
		return nil, &ValidationError{Schema: s.Name, Errors: errs.errs}
	}

	if err := s.finalize(tree, "", lc, errs); err != nil {
		return nil, err
	}
	if len(errs.errs) > 0 {
		return nil, &ValidationError{Schema: s.Name, Errors: errs.errs}
	}
	return tree, nil
}

// prepare folds aliases and fills defaults, recursing into nested schemas.
// Values of the wrong shape are skipped here and reported by the shape check.
func (s *Schema) prepare(t values.Tree) {
	s.foldAliases(t)
	for i := range s.Fields {
		f := &s.Fields[i]
		v, ok := t[f.Name]
		if !ok {
			if f.Default != nil {
				t[f.Name] = f.Default()
			}
			continue
		}
		prepareValue(f, v)
	}
}

func prepareValue(f *Field, v any) {
	switch f.Type {
	case TypeObject:
		if m, ok := v.(map[string]any); ok && f.Schema != nil {
			f.Schema.prepare(m)
		}
	case TypeList:
		if l, ok := v.([]any); ok && f.Elem != nil {
			for _, item := range l {
				prepareValue(f.Elem, item)
			}
		}
	case TypeMap:
		if m, ok := v.(map[string]any); ok && f.Elem != nil {
			for _, item := range m {
				prepareValue(f.Elem, item)
			}
		}
	}
}

// foldAliases merges alias values into the canonical key in declaration
// order, following the same replacement rule as a values merge.
func (s *Schema) foldAliases(t values.Tree) {
	for _, a := range s.Aliases {
		for _, name := range a.Names {
			av, ok := t[name]
			if !ok || av == nil {
				continue
			}
			merged := values.MustMerge(values.Tree{a.Canonical: t[a.Canonical]}, values.Tree{a.Canonical: av})
			t[a.Canonical] = merged[a.Canonical]
		}
	}
}

// finalize applies field rules, nested schemas and post-load hooks. Problems
// go to errs; the returned error aborts the whole load.
func (s *Schema) finalize(t values.Tree, path string, lc LoadContext, errs *collector) error {
	before := len(errs.errs)
	for i := range s.Fields {
		f := &s.Fields[i]
		v, ok := t[f.Name]
		if !ok || v == nil {
			continue
		}
		nv, err := finalizeValue(f, v, joinPath(path, f.Name), lc, errs)
		if err != nil {
			return err
		}
		t[f.Name] = nv
	}
	if len(errs.errs) > before {
		return nil
	}

	for _, hook := range s.PostLoad {
		if err := hook(t, lc); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeMissingValue) {
				return err
			}
			errs.addErr(path, err)
		}
	}
	return nil
}

func finalizeValue(f *Field, v any, path string, lc LoadContext, errs *collector) (any, error) {
	if f.ReservedValue {
		if s, ok := v.(string); ok && IsReserved(s) {
			errs.add(path, reservedWordMessage)
		}
	}
	if f.Validate != nil {
		nv, err := f.Validate(v)
		if err != nil {
			errs.addErr(path, err)
			return v, nil
		}
		v = nv
	}

	switch f.Type {
	case TypeObject:
		if m, ok := v.(map[string]any); ok && f.Schema != nil {
			if err := f.Schema.finalize(m, path, lc, errs); err != nil {
				return v, err
			}
		}
	case TypeList:
		if l, ok := v.([]any); ok && f.Elem != nil {
			for i, item := range l {
				if item == nil {
					continue
				}
				nv, err := finalizeValue(f.Elem, item, joinPath(path, strconv.Itoa(i)), lc, errs)
				if err != nil {
					return v, err
				}
				l[i] = nv
			}
		}
	case TypeMap:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if f.ReservedKeys && IsReserved(k) {
				errs.add(joinPath(path, k), reservedWordMessage)
			}
			if f.Elem == nil || m[k] == nil {
				continue
			}
			nv, err := finalizeValue(f.Elem, m[k], joinPath(path, k), lc, errs)
			if err != nil {
				return v, err
			}
			m[k] = nv
		}
	}
	return v, nil
}
