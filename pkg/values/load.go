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
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

// Decode parses a YAML or JSON document. An empty document decodes to nil.
func Decode(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "failed to parse values", err)
	}
	return Normalize(doc), nil
}

// DecodeTree parses a document that must be a mapping.
func DecodeTree(data []byte) (Tree, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return toTree(doc, "")
}

// LoadFile reads a values file. An empty file yields an empty tree; a
// missing file is a NOT_FOUND error.
//
// A document consisting of a single string is a link: the string names
// another file in the same directory, whose content is used instead.
// Links are followed once.
func LoadFile(path string) (Tree, error) {
	return loadFile(path, true)
}

func loadFile(path string, followLink bool) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("values file %s not found", path), err)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, fmt.Sprintf("failed to read %s", path), err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if link, ok := doc.(string); ok && followLink {
		target := strings.TrimSpace(link)
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		return loadFile(target, false)
	}

	return toTree(doc, path)
}

func toTree(doc any, path string) (Tree, error) {
	switch t := doc.(type) {
	case nil:
		return Tree{}, nil
	case map[string]any:
		return t, nil
	default:
		msg := fmt.Sprintf("values document must be a mapping, got %s", KindOf(doc))
		if path != "" {
			msg = fmt.Sprintf("%s: %s", path, msg)
		}
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, msg)
	}
}

// Get looks up a dot separated path.
func Get(t Tree, path string) (any, bool) {
	var cur any = t
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at path, or def.
func GetString(t Tree, path, def string) string {
	v, ok := Get(t, path)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}
