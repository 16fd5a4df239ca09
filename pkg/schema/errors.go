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
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("schema validation failed")

// FieldError is one problem at a dotted path. An empty path is the root.
type FieldError struct {
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationError collects every problem found while loading one tree.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	items := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		items = append(items, fe.String())
	}
	return fmt.Sprintf("%s did not pass schema check: %s", e.Schema, strings.Join(items, "; "))
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type collector struct {
	errs []FieldError
}

func (c *collector) add(path, format string, args ...any) {
	c.errs = append(c.errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) addErr(path string, err error) {
	var qe *QuantityError
	if errors.As(err, &qe) {
		c.errs = append(c.errs, AsFieldError(path, qe))
		return
	}
	c.add(path, "%s", err.Error())
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
