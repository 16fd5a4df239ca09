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
	"os"

	"github.com/lain-cli/lain/pkg/values"
)

// Type is the JSON type a field must have.
type Type string

const (
	TypeAny    Type = ""
	TypeString Type = "string"
	TypeInt    Type = "integer"
	TypeNumber Type = "number"
	TypeBool   Type = "boolean"
	TypeList   Type = "array"
	TypeMap    Type = "map"
	TypeObject Type = "object"
)

// Field declares one key of a schema. Elem describes list items and map
// values; Schema describes an object.
type Field struct {
	Name     string
	Type     Type
	Required bool
	Nullable bool

	// Default is called when the key is absent. A present null is kept.
	Default func() any

	Schema *Schema
	Elem   *Field

	// ReservedKeys rejects map keys that are reserved words.
	ReservedKeys bool
	// ReservedValue rejects a string value that is a reserved word.
	ReservedValue bool
	// KeysOneOf restricts the keys of a map.
	KeysOneOf []string

	// Validate may reject the value or return a normalized replacement.
	Validate func(v any) (any, error)
}

// Alias folds the values found under Names into Canonical, in order.
type Alias struct {
	Canonical string
	Names     []string
}

// PostLoadFunc runs after every field of a schema passed its checks.
// It may modify data in place.
type PostLoadFunc func(data values.Tree, lc LoadContext) error

// Schema is a set of field declarations.
type Schema struct {
	Name    string
	Fields  []Field
	Aliases []Alias

	// Strict schemas reject unknown keys and do not contribute reserved words.
	Strict bool

	PostLoad []PostLoadFunc
}

// Field returns the declaration for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// LoadContext carries per-invocation inputs to Load.
type LoadContext struct {
	// IsCurrent marks the cluster currently in use. Only then are secrets
	// resolved from the environment.
	IsCurrent bool
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (lc LoadContext) lookupEnv(name string) (string, bool) {
	if lc.LookupEnv != nil {
		return lc.LookupEnv(name)
	}
	return os.LookupEnv(name)
}

func str(v string) func() any { return func() any { return v } }

func emptyList() any { return []any{} }

func emptyMap() any { return map[string]any{} }
