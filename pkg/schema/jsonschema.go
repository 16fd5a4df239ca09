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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var compiled sync.Map // *Schema -> *jsonschema.Schema

// Document renders s as a JSON Schema (draft 2020-12) document.
func (s *Schema) Document() map[string]any {
	doc := objectDocument(s)
	doc["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	doc["title"] = s.Name
	return doc
}

func objectDocument(s *Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for i := range s.Fields {
		f := &s.Fields[i]
		props[f.Name] = fieldDocument(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": !s.Strict,
	}
	if len(required) > 0 {
		sort.Strings(required)
		doc["required"] = required
	}
	return doc
}

func fieldDocument(f *Field) map[string]any {
	var doc map[string]any
	switch f.Type {
	case TypeAny:
		return map[string]any{}
	case TypeObject:
		if f.Schema != nil {
			doc = objectDocument(f.Schema)
		} else {
			doc = map[string]any{"type": "object"}
		}
	case TypeMap:
		doc = map[string]any{"type": "object"}
		if f.Elem != nil {
			doc["additionalProperties"] = fieldDocument(f.Elem)
		}
		if len(f.KeysOneOf) > 0 {
			doc["propertyNames"] = map[string]any{"enum": f.KeysOneOf}
		}
	case TypeList:
		doc = map[string]any{"type": "array"}
		if f.Elem != nil {
			doc["items"] = fieldDocument(f.Elem)
		}
	default:
		doc = map[string]any{"type": string(f.Type)}
	}
	if f.Nullable {
		doc["type"] = []any{doc["type"], "null"}
	}
	return doc
}

func compile(s *Schema) (*jsonschema.Schema, error) {
	if c, ok := compiled.Load(s); ok {
		return c.(*jsonschema.Schema), nil
	}

	raw, err := json.Marshal(s.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to render schema %s: %w", s.Name, err)
	}

	url := strings.ReplaceAll(s.Name, " ", "_") + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", s.Name, err)
	}
	c, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", s.Name, err)
	}
	compiled.Store(s, c)
	return c, nil
}

// checkShape validates tree against the compiled document and records every
// leaf failure. It returns an error only when the schema itself is broken.
func checkShape(s *Schema, tree map[string]any, errs *collector) error {
	c, err := compile(s)
	if err != nil {
		return err
	}
	nonFinite := map[string]bool{}
	doc, err := jsonValue(finite(tree, "", nonFinite))
	if err != nil {
		return err
	}
	for _, path := range sortedPaths(nonFinite) {
		errs.add(path, "NaN and infinite numbers are not allowed")
	}

	err = c.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for _, leaf := range leaves(ve) {
		path := pointerToPath(leaf.InstanceLocation)
		if nonFinite[path] {
			continue
		}
		errs.add(path, "%s", leaf.Message)
	}
	return nil
}

// finite returns v with NaN and infinite floats replaced by nil, recording
// the path of each one in bad. v itself is not modified.
func finite(v any, path string, bad map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = finite(child, joinPath(path, k), bad)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = finite(child, joinPath(path, strconv.Itoa(i)), bad)
		}
		return out
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			bad[path] = true
			return nil
		}
	case float32:
		if f := float64(t); math.IsNaN(f) || math.IsInf(f, 0) {
			bad[path] = true
			return nil
		}
	}
	return v
}

func sortedPaths(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// jsonValue converts a tree into the value model jsonschema expects, with
// numbers as json.Number.
func jsonValue(tree any) (any, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("values cannot be represented as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode values: %w", err)
	}
	return v, nil
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// pointerToPath turns "/deployments/web/replicaCount" into
// "deployments.web.replicaCount".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
