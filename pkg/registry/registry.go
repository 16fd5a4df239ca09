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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/lain-cli/lain/pkg/cluster"
	"github.com/lain-cli/lain/pkg/defaults"
	apperrors "github.com/lain-cli/lain/pkg/errors"
)

// TypeRegistry is the only supported registry_type.
const TypeRegistry = "registry"

// Client lists and deletes image tags.
type Client interface {
	// ListTags returns every tag of repo, unsorted.
	ListTags(ctx context.Context, repo string) ([]string, error)
	// ListRepos returns the repositories below the configured namespace.
	ListRepos(ctx context.Context) ([]string, error)
	// ListImages returns a pullable reference for every tag of every repo.
	ListImages(ctx context.Context) ([]string, error)
	// DeleteTag removes the manifest tag points to.
	DeleteTag(ctx context.Context, repo, tag string) error
	// Repo maps an app name to its repository path.
	Repo(appname string) string
}

// deleteBackoff retries deletions, which some registries answer slowly.
var deleteBackoff = wait.Backoff{Steps: 6, Duration: 2 * time.Second, Factor: 1}

// Registry is an OCI distribution registry.
type Registry struct {
	Host      string
	Namespace string
	PlainHTTP bool

	client *auth.Client
}

var _ Client = (*Registry)(nil)

// Options configures NewRegistry.
type Options struct {
	// Registry is host[/namespace].
	Registry string
	// Username and Password override the Docker credential store.
	Username string
	Password string
	// PlainHTTP defaults to true for every host except docker.io.
	PlainHTTP *bool
	// HTTPClient replaces the default transport, mostly for tests.
	HTTPClient *http.Client
}

// New builds the client for cc according to its registry_type.
func New(cc *cluster.Config) (Client, error) {
	if cc == nil || cc.Registry == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingValue, "registry not configured for this cluster")
	}
	if cc.RegistryType != "" && cc.RegistryType != TypeRegistry {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeUnavailable,
			fmt.Sprintf("registry type %s is not supported", cc.RegistryType),
			map[string]any{"cluster": cc.Name})
	}
	opts := Options{Registry: cc.Registry}
	if v, ok := cc.Get("dockerhub_username"); ok {
		opts.Username, _ = v.(string)
	}
	if v, ok := cc.Get("dockerhub_password"); ok {
		opts.Password, _ = v.(string)
	}
	return NewRegistry(opts), nil
}

// NewRegistry builds a Registry from opts.
func NewRegistry(opts Options) *Registry {
	host, ns := SplitRegistry(strings.TrimPrefix(strings.TrimPrefix(opts.Registry, "https://"), "http://"))
	plain := host != DockerHub
	if opts.PlainHTTP != nil {
		plain = *opts.PlainHTTP
	}
	return &Registry{
		Host:      host,
		Namespace: ns,
		PlainHTTP: plain,
		client:    newAuthClient(opts),
	}
}

func newAuthClient(opts Options) *auth.Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   defaults.RegistryTimeout,
		}
	}
	c := &auth.Client{
		Client: httpClient,
		Cache:  auth.NewCache(),
	}
	if opts.Username != "" && opts.Password != "" {
		cred := auth.Credential{Username: opts.Username, Password: opts.Password}
		c.Credential = func(context.Context, string) (auth.Credential, error) { return cred, nil }
		return c
	}
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credential store unavailable", "error", err)
		return c
	}
	c.Credential = credentials.Credential(store)
	return c
}

// Repo maps appname to its repository path below the namespace.
func (r *Registry) Repo(appname string) string {
	if r.Namespace == "" {
		return appname
	}
	return r.Namespace + "/" + appname
}

// Image returns the full image reference of repo:tag.
func (r *Registry) Image(repo, tag string) string {
	return fmt.Sprintf("%s/%s:%s", r.Host, repo, tag)
}

func (r *Registry) repository(repo string) (*remote.Repository, error) {
	rr, err := remote.NewRepository(r.Host + "/" + repo)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid repository", err)
	}
	rr.PlainHTTP = r.PlainHTTP
	rr.Client = r.client
	return rr, nil
}

// ListTags returns every tag of repo. A repository that does not exist has
// no tags.
func (r *Registry) ListTags(ctx context.Context, repo string) ([]string, error) {
	rr, err := r.repository(repo)
	if err != nil {
		return nil, err
	}
	var tags []string
	err = rr.Tags(ctx, "", func(page []string) error {
		tags = append(tags, page...)
		return nil
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to list tags", err,
			map[string]any{"registry": r.Host, "repo": repo})
	}
	return tags, nil
}

// ListRepos returns the repositories in the registry catalog that live
// below the namespace.
func (r *Registry) ListRepos(ctx context.Context) ([]string, error) {
	reg, err := remote.NewRegistry(r.Host)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid registry", err)
	}
	reg.PlainHTTP = r.PlainHTTP
	reg.Client = r.client

	var repos []string
	err = reg.Repositories(ctx, "", func(page []string) error {
		for _, repo := range page {
			if r.Namespace == "" || strings.HasPrefix(repo, r.Namespace+"/") {
				repos = append(repos, repo)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to list repositories", err,
			map[string]any{"registry": r.Host})
	}
	return repos, nil
}

// ListImages returns repo:tag for every tag of every repository.
func (r *Registry) ListImages(ctx context.Context) ([]string, error) {
	repos, err := r.ListRepos(ctx)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, repo := range repos {
		tags, err := r.ListTags(ctx, repo)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			images = append(images, r.Image(repo, t))
		}
	}
	return images, nil
}

// DeleteTag resolves tag to its manifest digest and deletes that manifest.
// A tag that is already gone is not an error.
func (r *Registry) DeleteTag(ctx context.Context, repo, tag string) error {
	rr, err := r.repository(repo)
	if err != nil {
		return err
	}
	var desc ocispec.Descriptor
	err = retry.OnError(deleteBackoff, retriable, func() error {
		var err error
		desc, err = rr.Resolve(ctx, tag)
		if err != nil {
			return err
		}
		return rr.Delete(ctx, desc)
	})
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to delete image", err,
			map[string]any{"repo": repo, "tag": tag})
	}
	slog.Debug("image deleted", "repo", repo, "tag", tag, "digest", desc.Digest.String())
	return nil
}

func retriable(err error) bool {
	if isNotFound(err) || ctxDone(err) {
		return false
	}
	var resp *errcode.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func ctxDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return true
	}
	var resp *errcode.ErrorResponse
	return errors.As(err, &resp) && resp.StatusCode == http.StatusNotFound
}
