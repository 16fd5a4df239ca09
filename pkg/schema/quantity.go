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
	"fmt"
	"math"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	// Mi is one mebibyte.
	Mi int64 = 1 << 20
	// MinMemory is the smallest memory request a container should get.
	MinMemory = 4 * Mi
	// tinyMemory is used when a measured value rounds below one mebibyte.
	tinyMemory = "50M"
)

// QuantityError reports a malformed cpu or memory value. It is distinct from
// ValidationError; callers turn it into a FieldError with AsFieldError.
type QuantityError struct {
	Input  any
	Reason string
}

// Error implements the error interface.
func (e *QuantityError) Error() string {
	return fmt.Sprintf("weird quantity %v: %s", e.Input, e.Reason)
}

// AsFieldError attaches a field path to a quantity error.
func AsFieldError(path string, err *QuantityError) FieldError {
	return FieldError{Path: path, Message: err.Error()}
}

// ParseCPU converts a cpu quantity into whole millicores, rounding down.
// Numbers are cores ("0.5" and 0.5 are 500), "Nm" strings are millicores,
// and any other Kubernetes quantity string is accepted as well.
func ParseCPU(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return cores(float64(t), v)
	case int64:
		return cores(float64(t), v)
	case float64:
		return cores(t, v)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, &QuantityError{Input: v, Reason: "empty string"}
		}
		if m, ok := strings.CutSuffix(s, "m"); ok {
			n, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return 0, &QuantityError{Input: v, Reason: "millicores must be an integer"}
			}
			if n < 0 {
				return 0, &QuantityError{Input: v, Reason: "negative cpu"}
			}
			return n, nil
		}
		q, err := resource.ParseQuantity(s)
		if err != nil {
			return 0, &QuantityError{Input: v, Reason: err.Error()}
		}
		return cores(q.AsApproximateFloat64(), v)
	default:
		return 0, &QuantityError{Input: v, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func cores(n float64, input any) (int64, error) {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &QuantityError{Input: input, Reason: "cpu must be a non-negative number"}
	}
	return int64(math.Floor(n * 1000)), nil
}

// ParseSize converts a memory quantity such as "4Mi", "100M" or 1024 to bytes.
func ParseSize(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(math.Ceil(t)), nil
	case string:
		q, err := resource.ParseQuantity(strings.TrimSpace(t))
		if err != nil {
			return 0, &QuantityError{Input: v, Reason: err.Error()}
		}
		if q.Sign() < 0 {
			return 0, &QuantityError{Input: v, Reason: "negative size"}
		}
		return q.Value(), nil
	default:
		return 0, &QuantityError{Input: v, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

// FormatMemory renders bytes as whole mebibytes, rounding up.
func FormatMemory(bytes int64) string {
	if bytes < Mi {
		return tinyMemory
	}
	n := (bytes + Mi - 1) / Mi
	return fmt.Sprintf("%dMi", n)
}

func validateCPU(v any) (any, error) {
	_, err := ParseCPU(v)
	return v, err
}

func validateSize(v any) (any, error) {
	_, err := ParseSize(v)
	return v, err
}
