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

package registry

import (
	"sort"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

const (
	// RecentTagsCount is how many tags SortAndFilter keeps by default.
	RecentTagsCount = 10
	// CleanupKeepCount is how many recent tags cleanup never deletes.
	CleanupKeepCount = 20
	// DockerHub is the domain image references default to.
	DockerHub = "docker.io"
)

// ProtectedRepoKeywords mark repositories cleanup must not touch.
var ProtectedRepoKeywords = []string{"centos"}

// ProtectedTags are never deleted by cleanup.
var ProtectedTags = []string{"prepare", "latest"}

// SortAndFilter drops prepare tags, sorts the rest in reverse order and keeps
// the first n. n <= 0 means RecentTagsCount.
func SortAndFilter(tags []string, n int) []string {
	if n <= 0 {
		n = RecentTagsCount
	}
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if !strings.HasPrefix(t, "prepare") {
			cleaned = append(cleaned, t)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(cleaned)))
	if len(cleaned) > n {
		cleaned = cleaned[:n]
	}
	return cleaned
}

// IsProtectedRepo reports whether repo must be skipped by cleanup.
func IsProtectedRepo(repo string) bool {
	for _, kw := range ProtectedRepoKeywords {
		if strings.Contains(repo, kw) {
			return true
		}
	}
	return false
}

// AncientTags returns the tags cleanup may delete: everything except the
// CleanupKeepCount most recent, the protected ones and those in use.
func AncientTags(tags []string, running map[string]struct{}) []string {
	keep := make(map[string]struct{}, CleanupKeepCount+len(ProtectedTags))
	for _, t := range SortAndFilter(tags, CleanupKeepCount) {
		keep[t] = struct{}{}
	}
	for _, t := range ProtectedTags {
		keep[t] = struct{}{}
	}
	var out []string
	for _, t := range tags {
		if _, ok := keep[t]; ok {
			continue
		}
		if _, ok := running[t]; ok {
			continue
		}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseImage splits image into its normalized repository and tag.
// The tag is empty when image carries none.
func ParseImage(image string) (repo, tag string, err error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid image reference", err)
	}
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}
	return NormalizeRegistry(named.Name()), tag, nil
}

// NormalizeRegistry drops the implicit docker.io/ prefix from a name, the
// same way docker prints images.
func NormalizeRegistry(name string) string {
	return strings.TrimPrefix(name, DockerHub+"/")
}

// SplitRegistry splits a cluster registry setting such as
// registry.example.com/ns into host and namespace.
func SplitRegistry(registry string) (host, namespace string) {
	host, namespace, _ = strings.Cut(registry, "/")
	return host, namespace
}
