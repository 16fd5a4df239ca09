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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
)

// testDigest is the digest of the two byte manifest "{}".
var testDigest = ocispec.DescriptorEmptyJSON.Digest.String()

// fakeRegistry serves the subset of the distribution API lain uses.
type fakeRegistry struct {
	mu      sync.Mutex
	repos   map[string][]string
	deleted []string
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v2/")
	switch {
	case path == "_catalog":
		repos := make([]string, 0, len(f.repos))
		for name := range f.repos {
			repos = append(repos, name)
		}
		writeJSON(w, map[string]any{"repositories": repos})
	case strings.HasSuffix(path, "/tags/list"):
		name := strings.TrimSuffix(path, "/tags/list")
		tags, ok := f.repos[name]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"code":"NAME_UNKNOWN","message":"repository name not known"}]}`))
			return
		}
		writeJSON(w, map[string]any{"name": name, "tags": tags})
	case strings.Contains(path, "/manifests/") && r.Method == http.MethodHead:
		name, ref, _ := strings.Cut(path, "/manifests/")
		if !contains(f.repos[name], ref) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", ocispec.MediaTypeImageManifest)
		w.Header().Set("Docker-Content-Digest", testDigest)
		w.Header().Set("Content-Length", "2")
		w.WriteHeader(http.StatusOK)
	case strings.Contains(path, "/manifests/") && r.Method == http.MethodGet:
		// fetched before deletion to look for a subject
		w.Header().Set("Content-Type", ocispec.MediaTypeImageManifest)
		w.Header().Set("Docker-Content-Digest", testDigest)
		_, _ = w.Write([]byte("{}"))
	case strings.Contains(path, "/manifests/") && r.Method == http.MethodDelete:
		name, ref, _ := strings.Cut(path, "/manifests/")
		if ref != testDigest {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.deleted = append(f.deleted, name)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func newTestRegistry(t *testing.T, repos map[string][]string) (*Registry, *fakeRegistry) {
	t.Helper()
	fake := &fakeRegistry{repos: repos}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	r := NewRegistry(Options{
		Registry:   strings.TrimPrefix(srv.URL, "http://") + "/dev",
		Username:   "u",
		Password:   "p",
		HTTPClient: srv.Client(),
	})
	return r, fake
}

func TestListTags(t *testing.T) {
	r, _ := newTestRegistry(t, map[string][]string{
		"dev/dummy": {"1600000000-abc", "prepare", "1700000000-def"},
	})
	assert.True(t, r.PlainHTTP)
	assert.Equal(t, "dev", r.Namespace)
	assert.Equal(t, "dev/dummy", r.Repo("dummy"))

	tags, err := r.ListTags(context.Background(), r.Repo("dummy"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1600000000-abc", "prepare", "1700000000-def"}, tags)

	tags, err = r.ListTags(context.Background(), r.Repo("absent"))
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestListReposAndImages(t *testing.T) {
	r, _ := newTestRegistry(t, map[string][]string{
		"dev/dummy": {"v1"},
		"prod/app":  {"v2"},
	})
	repos, err := r.ListRepos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dev/dummy"}, repos)

	images, err := r.ListImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{r.Host + "/dev/dummy:v1"}, images)
}

func TestDeleteTag(t *testing.T) {
	r, fake := newTestRegistry(t, map[string][]string{"dev/dummy": {"v1"}})
	require.NoError(t, r.DeleteTag(context.Background(), "dev/dummy", "v1"))
	assert.Equal(t, []string{"dev/dummy"}, fake.deleted)

	// already gone
	require.NoError(t, r.DeleteTag(context.Background(), "dev/dummy", "v9"))
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingValue))

	_, err = New(&cluster.Config{Name: "test", Registry: "registry.example.com", RegistryType: "aliyun"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnavailable))

	c, err := New(&cluster.Config{
		Name:         "test",
		Registry:     "docker.io/lain",
		RegistryType: TypeRegistry,
		Raw:          values.Tree{"dockerhub_username": "u", "dockerhub_password": "p"},
	})
	require.NoError(t, err)
	reg := c.(*Registry)
	assert.Equal(t, "docker.io", reg.Host)
	assert.False(t, reg.PlainHTTP)
	assert.Equal(t, "lain/dummy", c.Repo("dummy"))
}

func TestSortAndFilter(t *testing.T) {
	tags := []string{"prepare", "1600000000-a", "1700000000-b", "prepare-1", "1650000000-c"}
	assert.Equal(t, []string{"1700000000-b", "1650000000-c", "1600000000-a"}, SortAndFilter(tags, 0))
	assert.Equal(t, []string{"1700000000-b"}, SortAndFilter(tags, 1))
}

func TestAncientTags(t *testing.T) {
	var tags []string
	for i := 10; i < 35; i++ {
		tags = append(tags, "16000000"+string(rune('0'+i/10))+string(rune('0'+i%10)))
	}
	tags = append(tags, "prepare", "latest")
	running := map[string]struct{}{"1600000010": {}}

	got := AncientTags(tags, running)
	// latest sorts first and takes one of the 20 slots, 10 is running
	assert.Equal(t, []string{"1600000011", "1600000012", "1600000013", "1600000014", "1600000015"}, got)
}

func TestIsProtectedRepo(t *testing.T) {
	assert.True(t, IsProtectedRepo("dev/centos"))
	assert.False(t, IsProtectedRepo("dev/dummy"))
}

func TestParseImage(t *testing.T) {
	tests := []struct {
		image    string
		wantRepo string
		wantTag  string
		wantErr  bool
	}{
		{image: "registry.example.com/dev/dummy:v1", wantRepo: "registry.example.com/dev/dummy", wantTag: "v1"},
		{image: "busybox", wantRepo: "library/busybox"},
		{image: "docker.io/lain/dummy:1", wantRepo: "lain/dummy", wantTag: "1"},
		{image: "Bad Image", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			repo, tag, err := ParseImage(tt.image)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRepo, repo)
			assert.Equal(t, tt.wantTag, tag)
		})
	}
}

type stubClient struct {
	repos   map[string][]string
	deleted []string
}

func (s *stubClient) ListTags(_ context.Context, repo string) ([]string, error) {
	return s.repos[repo], nil
}

func (s *stubClient) ListRepos(context.Context) ([]string, error) {
	return []string{"dev/centos", "dev/dummy"}, nil
}

func (s *stubClient) ListImages(context.Context) ([]string, error) {
	return nil, nil
}

func (s *stubClient) DeleteTag(_ context.Context, repo, tag string) error {
	s.deleted = append(s.deleted, repo+":"+tag)
	return nil
}

func (s *stubClient) Repo(appname string) string { return "dev/" + appname }

func TestCleanup(t *testing.T) {
	var old []string
	for i := 0; i < 22; i++ {
		old = append(old, "170000"+strings.Repeat("0", 2)+string(rune('a'+i)))
	}
	c := &stubClient{repos: map[string][]string{
		"dev/centos": {"1", "2"},
		"dev/dummy":  old,
	}}

	res, err := Cleanup(context.Background(), c, nil, true)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.True(t, res[0].Skipped)
	assert.Equal(t, []string{"17000000a", "17000000b"}, res[1].Deleted)
	assert.Empty(t, c.deleted)

	_, err = Cleanup(context.Background(), c, map[string]struct{}{"17000000a": {}}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev/dummy:17000000b"}, c.deleted)
}
