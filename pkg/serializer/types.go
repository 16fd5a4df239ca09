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

// Package serializer prints command results as YAML, JSON or a table.
//
// YAML is the default because it is what lain users edit all day. Table
// output renders a slice of rows in columns when the value implements
// Tabular and falls back to flattened FIELD/VALUE pairs otherwise.
//
//	w := serializer.NewFileWriterOrStdout(serializer.FormatYAML, "")
//	defer w.Close()
//	if err := w.Serialize(ctx, v); err != nil {
//		return err
//	}
package serializer

import "context"

// Serializer writes a value somewhere.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Closer is implemented by serializers holding a file.
type Closer interface {
	Close() error
}

// Tabular values render themselves as rows for table output.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}
