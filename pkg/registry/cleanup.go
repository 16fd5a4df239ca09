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
	"context"
	"log/slog"
)

// CleanupResult lists what Cleanup removed per repository.
type CleanupResult struct {
	Repo    string   `json:"repo" yaml:"repo"`
	Deleted []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Skipped bool     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Cleanup deletes the ancient tags of every repository. Tags in running
// are kept. With dryRun nothing is deleted but the result is the same.
func Cleanup(ctx context.Context, c Client, running map[string]struct{}, dryRun bool) ([]CleanupResult, error) {
	repos, err := c.ListRepos(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]CleanupResult, 0, len(repos))
	for _, repo := range repos {
		if IsProtectedRepo(repo) {
			results = append(results, CleanupResult{Repo: repo, Skipped: true})
			continue
		}
		tags, err := c.ListTags(ctx, repo)
		if err != nil {
			return results, err
		}
		res := CleanupResult{Repo: repo}
		for _, tag := range AncientTags(tags, running) {
			if !dryRun {
				if err := c.DeleteTag(ctx, repo, tag); err != nil {
					return append(results, res), err
				}
			}
			slog.Debug("delete image", "repo", repo, "tag", tag, "dry_run", dryRun)
			res.Deleted = append(res.Deleted, tag)
		}
		results = append(results, res)
	}
	return results, nil
}
