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

// Package version parses and compares the versions reported by the tools
// lain shells out to, such as helm and kubectl.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
	ErrNoVersion         = errors.New("no version found in output")
)

// versionPattern finds a version token inside tool output such as
// "Client Version: v1.29.2" or "v3.14.0+gc309b6f".
var versionPattern = regexp.MustCompile(`v?\d+(\.\d+){0,2}([-+][0-9A-Za-z.\-+]*)?`)

// Version is a major.minor.patch triple. Components missing from the parsed
// string are zero. Extras keeps build metadata such as "+g5cb9af4" or
// "-tke.13".
type Version struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor" yaml:"minor"`
	Patch int `json:"patch" yaml:"patch"`

	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// New returns major.minor.patch.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch}
}

// String returns vMajor.Minor.Patch, without extras.
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse reads "3", "3.8", "v3.8.0", "v3.8.0+g5cb9af4" or "v1.20.4-aliyun.1".
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, ErrEmptyVersion
	}
	s = strings.TrimPrefix(s, "v")

	var v Version
	main := s
	if i := strings.IndexAny(s, "-+"); i > 0 {
		main, v.Extras = s[:i], s[i:]
	}

	parts := strings.Split(main, ".")
	if len(parts) > 3 {
		return Version{}, ErrTooManyComponents
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		switch i {
		case 0:
			v.Major = n
		case 1:
			v.Minor = n
		case 2:
			v.Patch = n
		}
	}
	return v, nil
}

// MustParse is Parse for hardcoded strings.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("version.MustParse(%q): %v", s, err))
	}
	return v
}

// Extract parses the last version token in a line of tool output, so
// "Client Version: v1.29.2" yields v1.29.2.
func Extract(line string) (Version, error) {
	matches := versionPattern.FindAllString(line, -1)
	if len(matches) == 0 {
		return Version{}, fmt.Errorf("%w: %q", ErrNoVersion, strings.TrimSpace(line))
	}
	return Parse(matches[len(matches)-1])
}

// Compare returns -1, 0 or 1. Extras are ignored.
func (v Version) Compare(other Version) int {
	for _, d := range [...]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

// SkewOK reports whether a kubectl client may talk to a server: same major
// and at most one minor apart.
func SkewOK(client, server Version) bool {
	if client.Major != server.Major {
		return false
	}
	d := client.Minor - server.Minor
	return d > -2 && d < 2
}
