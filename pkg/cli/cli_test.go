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

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sversion "k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/lain-cli/lain/pkg/app"
	"github.com/lain-cli/lain/pkg/cluster"
	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/k8s/workload"
	"github.com/lain-cli/lain/pkg/metrics"
	"github.com/lain-cli/lain/pkg/registry"
)

const testValuesYAML = `appname: dummy
deployments:
  web:
    replicaCount: 1
    resources:
      requests:
        cpu: 10m
        memory: 80Mi
      limits:
        cpu: 1
        memory: 256Mi
cronjobs:
  nightly:
    schedule: "0 0 * * *"
ingresses:
- host: dummy
  deployName: web
  paths: [/]
`

// fakeRunner answers helm and kubectl by subcommand, optionally narrowed
// by the first argument after it.
type fakeRunner struct {
	out   map[string]string
	fail  map[string]error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	keys := []string{name}
	if len(args) > 0 {
		keys = append(keys, name+" "+args[0])
	}
	if len(args) > 1 {
		keys = append(keys, name+" "+args[0]+" "+args[1])
	}
	// the most specific key wins
	for i := len(keys) - 1; i >= 0; i-- {
		if err := f.fail[keys[i]]; err != nil {
			return nil, []byte(err.Error()), err
		}
		if out, ok := f.out[keys[i]]; ok {
			return []byte(out), nil, nil
		}
	}
	return nil, nil, nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func okClient() *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}, nil
	})}
}

type stubRegistry struct {
	tags    map[string][]string
	deleted []string
}

func (s *stubRegistry) ListTags(_ context.Context, repo string) ([]string, error) {
	return s.tags[repo], nil
}

func (s *stubRegistry) ListRepos(context.Context) ([]string, error) {
	repos := make([]string, 0, len(s.tags))
	for r := range s.tags {
		repos = append(repos, r)
	}
	return repos, nil
}

func (s *stubRegistry) ListImages(ctx context.Context) ([]string, error) {
	repos, _ := s.ListRepos(ctx)
	sort.Strings(repos)
	var images []string
	for _, r := range repos {
		for _, t := range s.tags[r] {
			images = append(images, r+":"+t)
		}
	}
	return images, nil
}

func (s *stubRegistry) DeleteTag(_ context.Context, repo, tag string) error {
	s.deleted = append(s.deleted, repo+":"+tag)
	return nil
}

func (s *stubRegistry) Repo(appname string) string {
	return "registry.example.com/" + appname
}

type env struct {
	root        string
	chartDir    string
	kubeDir     string
	internalDir string

	stdout *bytes.Buffer
	runner *fakeRunner
	kube   *fake.Clientset
	reg    *stubRegistry
	deps   *deps
}

// newEnv lays out an app repository with cluster "test" selected.
func newEnv(t *testing.T, valuesYAML string, objects ...runtime.Object) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		root:        root,
		chartDir:    filepath.Join(root, "chart"),
		kubeDir:     filepath.Join(root, "kube"),
		internalDir: filepath.Join(root, "cluster_values"),
		stdout:      &bytes.Buffer{},
		runner:      &fakeRunner{out: map[string]string{}, fail: map[string]error{}},
		kube:        fake.NewClientset(objects...),
		reg:         &stubRegistry{tags: map[string][]string{}},
	}
	for _, d := range []string{e.chartDir, e.kubeDir, e.internalDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	if valuesYAML != "" {
		write(filepath.Join(e.chartDir, "values.yaml"), valuesYAML)
	}
	write(filepath.Join(e.chartDir, "Chart.yaml"), "name: dummy\nversion: 0.1.12\n")
	write(filepath.Join(e.kubeDir, "kubeconfig-test"), "apiVersion: v1\n")
	write(filepath.Join(e.internalDir, "values-test.yaml"),
		"domain: example.com\nregistry: registry.example.com\nnamespace: default\n")
	require.NoError(t, os.Symlink(filepath.Join(e.kubeDir, "kubeconfig-test"), filepath.Join(e.kubeDir, "config")))

	e.deps = &deps{
		stdout:    e.stdout,
		stderr:    io.Discard,
		lookupEnv: func(string) (string, bool) { return "", false },
		runner:    e.runner,
		kube: func(string) (kubernetes.Interface, error) {
			return e.kube, nil
		},
		registry: func(*cluster.Config) (registry.Client, error) {
			return e.reg, nil
		},
		prometheus: func(*cluster.Config, string) (*metrics.Prometheus, error) {
			return nil, apperrors.New(apperrors.ErrCodeMissingValue, "prometheus not provided in cluster config")
		},
		httpClient: okClient(),
	}
	return e
}

func (e *env) run(t *testing.T, args ...string) error {
	t.Helper()
	full := append([]string{name,
		"--kube-dir", e.kubeDir,
		"--cluster-values-dir", e.internalDir,
		"--chart-dir", e.chartDir,
	}, args...)
	return newRootCmd(e.deps).Run(context.Background(), full)
}

func TestValuesCmd(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	require.NoError(t, e.run(t, "values"))
	assert.Contains(t, e.stdout.String(), "appname: dummy")
}

func TestValuesCmdSet(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	require.NoError(t, e.run(t, "values", "--set", "deployments.web.replicaCount=3,imageTag=abc", "--format", "json"))
	out := e.stdout.String()
	assert.Contains(t, out, `"replicaCount": 3`)
	assert.Contains(t, out, `"imageTag": "abc"`)

	e.stdout.Reset()
	err := e.run(t, "values", "--set", "appname.sub=x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestValuesCmdOutsideRepo(t *testing.T) {
	e := newEnv(t, "")
	assert.Error(t, e.run(t, "values"))
}

func TestUseCmdLists(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	require.NoError(t, e.run(t, "use"))
	assert.Contains(t, e.stdout.String(), "* test")
}

func TestUseCmdTooManyArgs(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	assert.Error(t, e.run(t, "use", "a", "b"))
}

func TestTemplateCmd(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	e.runner.out["helm template"] = "kind: Deployment\n"

	require.NoError(t, e.run(t, "template", "--set", "imageTag=abc"))
	assert.Equal(t, "kind: Deployment\n", e.stdout.String())

	args := strings.Join(e.runner.calls[0], " ")
	assert.Contains(t, args, "--set imageTag=abc,cluster=test,user=")
	assert.Contains(t, args, "-f "+filepath.Join(e.internalDir, "values-test.yaml"))
	assert.True(t, strings.HasSuffix(args, "dummy "+e.chartDir))
}

func TestLintCmd(t *testing.T) {
	t.Run("simple passes", func(t *testing.T) {
		e := newEnv(t, testValuesYAML)
		e.runner.out["helm template"] = "kind: Deployment\n"
		require.NoError(t, e.run(t, "lint", "--simple"))
	})

	t.Run("build overridden without appname", func(t *testing.T) {
		e := newEnv(t, testValuesYAML)
		e.runner.out["helm template"] = "kind: Deployment\n"
		require.NoError(t, os.WriteFile(filepath.Join(e.chartDir, "values-prod.yaml"), []byte("build:\n  base: golang:1.22\n"), 0o644))
		err := e.run(t, "lint", "--simple")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
		assert.Contains(t, err.Error(), "values-prod.yaml")
	})

	t.Run("empty render", func(t *testing.T) {
		e := newEnv(t, testValuesYAML)
		err := e.run(t, "lint")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	})

	t.Run("helm lint fails", func(t *testing.T) {
		e := newEnv(t, testValuesYAML)
		e.runner.fail["helm lint"] = errors.New("[ERROR] templates/")
		assert.Error(t, e.run(t, "lint"))
	})

	t.Run("ignored", func(t *testing.T) {
		e := newEnv(t, testValuesYAML)
		require.NoError(t, e.run(t, "--ignore-lint", "lint"))
		assert.Contains(t, e.stdout.String(), "--ignore-lint")
		assert.Empty(t, e.runner.calls)
	})
}

func TestStatusCmd(t *testing.T) {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "dummy-web-abc",
			Namespace: "default",
			Labels:    map[string]string{workload.AppLabel: "dummy"},
		},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "web", Image: "registry.example.com/dummy:1"}}},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{Name: "web", Ready: true}},
		},
	}
	e := newEnv(t, testValuesYAML, p)
	e.runner.out["helm status"] = `{"name":"dummy","info":{"status":"deployed"}}`
	e.runner.fail["helm status dummy-canary"] = errors.New("Error: release: not found")

	require.NoError(t, e.run(t, "status", "--format", "json"))
	out := e.stdout.String()
	assert.Contains(t, out, `"state": "deployed"`)
	assert.NotContains(t, out, `"canary"`)
	assert.Contains(t, out, "dummy-web-abc")
	assert.Contains(t, out, "https://dummy.example.com/")
	assert.Contains(t, out, `"secretName": "example-com"`)

	e.stdout.Reset()
	delete(e.runner.fail, "helm status dummy-canary")
	e.runner.out["helm status dummy-canary"] = `{"name":"dummy-canary","info":{"status":"deployed"}}`
	require.NoError(t, e.run(t, "status", "--format", "table"))
	assert.Contains(t, e.stdout.String(), "dummy-canary")
	assert.Contains(t, e.stdout.String(), "canary")
}

func TestStatusCmdDigestsLargeApps(t *testing.T) {
	pod := func(name string, ready bool) *corev1.Pod {
		phase := corev1.PodRunning
		if !ready {
			phase = corev1.PodPending
		}
		return &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: "default",
				Labels:    map[string]string{workload.AppLabel: "dummy"},
			},
			Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "web", Image: "registry.example.com/dummy:1"}}},
			Status: corev1.PodStatus{
				Phase:             phase,
				ContainerStatuses: []corev1.ContainerStatus{{Name: "web", Ready: ready}},
			},
		}
	}
	large := strings.Replace(testValuesYAML, "replicaCount: 1", "replicaCount: 14", 1)
	e := newEnv(t, large, pod("dummy-web-5d4f8-aaaaa", true), pod("dummy-web-5d4f8-bbbbb", false))
	e.runner.out["helm status"] = `{"name":"dummy","info":{"status":"deployed"}}`
	e.runner.fail["helm status dummy-canary"] = errors.New("Error: release: not found")

	require.NoError(t, e.run(t, "status", "--format", "json"))
	out := e.stdout.String()
	assert.Contains(t, out, "dummy-web-5d4f8-bbbbb")
	assert.NotContains(t, out, "dummy-web-5d4f8-aaaaa")
	assert.Contains(t, out, `"hiddenReadyPods": 1`)

	e.stdout.Reset()
	require.NoError(t, e.run(t, "status", "--format", "table"))
	assert.Contains(t, e.stdout.String(), "dummy-web, 0/1 ready")
	assert.Contains(t, e.stdout.String(), "1 ready pods hidden")
}

func TestWaitCmd(t *testing.T) {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "dummy-web-abc",
			Namespace: "default",
			Labels:    map[string]string{workload.AppLabel: "dummy"},
		},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "web", Image: "registry.example.com/dummy:1"}}},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{{Name: "web", Ready: true}},
		},
	}
	e := newEnv(t, testValuesYAML, p)
	require.NoError(t, e.run(t, "wait", "--tries", "1"))

	err := e.run(t, "wait", "--appname", "dummy", "-l", "a=b")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestTagsCmd(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	e.reg.tags["registry.example.com/dummy"] = []string{"1600000000-a", "1700000000-b", "prepare-1800000000"}

	require.NoError(t, e.run(t, "tags", "-n", "1"))
	assert.Equal(t, "registry.example.com/dummy:1700000000-b\n", e.stdout.String())
}

func TestEnvCmd(t *testing.T) {
	e := newEnv(t, testValuesYAML)

	require.NoError(t, e.run(t, "env", "add"))
	assert.Contains(t, e.stdout.String(), nothingAdded)

	e.stdout.Reset()
	require.NoError(t, e.run(t, "env", "add", "BAZ=1"))
	assert.Contains(t, e.stdout.String(), "added dummy-env: BAZ")

	e.stdout.Reset()
	require.NoError(t, e.run(t, "env", "remove", "BAZ"))
	assert.Contains(t, e.stdout.String(), "removed dummy-env: BAZ")

	data, err := workload.ReadSecret(context.Background(), e.kube, "default", "dummy-env")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FOO": "BAR"}, data)
}

func TestEnvAddFile(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	path := filepath.Join(e.root, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("FOO: changed\nPORT: 8080\n"), 0o644))

	require.NoError(t, e.run(t, "env", "add-file", path))
	assert.Contains(t, e.stdout.String(), "added dummy-env: PORT")
	assert.Contains(t, e.stdout.String(), "changed dummy-env: FOO")

	nested := filepath.Join(e.root, "nested.yaml")
	require.NoError(t, os.WriteFile(nested, []byte("a:\n  b: c\n"), 0o644))
	err := e.run(t, "env", "add-file", nested)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestSecretAddFiles(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	path := filepath.Join(e.root, "settings.py")
	require.NoError(t, os.WriteFile(path, []byte("DEBUG = False\n"), 0o644))

	require.NoError(t, e.run(t, "secret", "add", path))
	assert.Contains(t, e.stdout.String(), "added dummy-secret: settings.py")

	data, err := workload.ReadSecret(context.Background(), e.kube, "default", "dummy-secret")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG = False\n", data["settings.py"])
	assert.Contains(t, data, "topsecret.txt")
}

func TestCreateJobCmd(t *testing.T) {
	cj := &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: "dummy-nightly", Namespace: "default"},
		Spec: batchv1.CronJobSpec{
			Schedule: "0 0 * * *",
			JobTemplate: batchv1.JobTemplateSpec{
				Spec: batchv1.JobSpec{Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "x:1"}}},
				}},
			},
		},
	}
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "manual-test-dummy-nightly-xyz",
			Namespace: "default",
			Labels:    map[string]string{"job-name": workload.ManualJobName("dummy-nightly")},
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
	e := newEnv(t, testValuesYAML, cj, p)

	require.NoError(t, e.run(t, "create-job", "nightly"))
	assert.Contains(t, e.stdout.String(), "fake logs")

	_, err := e.kube.BatchV1().Jobs("default").Get(context.Background(),
		workload.ManualJobName("dummy-nightly"), metav1.GetOptions{})
	assert.NoError(t, err)

	err = e.run(t, "create-job", "hourly")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	var se *apperrors.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"nightly"}, se.Context["cronjobs"])
}

func TestJobCmd(t *testing.T) {
	deploy := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "dummy-web", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{Template: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "web", Image: "registry.example.com/dummy:1"}}},
		}},
	}
	name := app.JobName("dummy", []string{"echo", "hello"})
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name + "-xyz",
			Namespace: "default",
			Labels:    map[string]string{"job-name": name},
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
	e := newEnv(t, testValuesYAML, deploy, p)

	require.NoError(t, e.run(t, "job", "--image-tag", "2", "--", "echo", "hello"))
	assert.Contains(t, e.stdout.String(), "fake logs")
	job, err := e.kube.BatchV1().Jobs("default").Get(context.Background(), name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "registry.example.com/dummy:2", job.Spec.Template.Spec.Containers[0].Image)
	assert.Equal(t, int64(app.MinHelmTimeout.Seconds()), *job.Spec.ActiveDeadlineSeconds)

	err = e.run(t, "job", "--", "echo", "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))

	err = e.run(t, "job")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))

	err = e.run(t, "job", "--deploy", "worker", "--", "true")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestDoctorCmd(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	e.kube.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &k8sversion.Info{GitVersion: "v1.29.3"}
	e.runner.out["helm version"] = "v3.14.0+g3fc9f4b"
	e.runner.out["kubectl version"] = "Client Version: v1.30.1\nKustomize Version: v5.0.4\n"

	require.NoError(t, e.run(t, "doctor"))
	assert.Contains(t, e.stdout.String(), "kubectl version")

	e.runner.out["kubectl version"] = "Client Version: v1.25.0\n"
	err := e.run(t, "doctor")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestClientVersion(t *testing.T) {
	v, err := clientVersion([]byte("Client Version: v1.30.1\nKustomize Version: v5.0.4\n"))
	require.NoError(t, err)
	assert.Equal(t, 30, v.Minor)
}

func TestAdminCleanupRegistry(t *testing.T) {
	running := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "prod"},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "web", Image: "registry.example.com/dummy:1000000000-old"}}},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
	e := newEnv(t, testValuesYAML, running)
	var tags []string
	for i := range 25 {
		tags = append(tags, fmt.Sprintf("17000000%02d-x", i))
	}
	tags = append(tags, "1000000000-old", "latest")
	e.reg.tags["dummy"] = tags

	require.NoError(t, e.run(t, "admin", "cleanup-registry", "--dry-run"))
	assert.Empty(t, e.reg.deleted)
	assert.Contains(t, e.stdout.String(), "1700000000-x")
	assert.NotContains(t, e.stdout.String(), "1000000000-old")

	e.stdout.Reset()
	require.NoError(t, e.run(t, "admin", "cleanup-registry"))
	// latest takes one of the kept slots
	assert.Len(t, e.reg.deleted, 6)
}

func TestAdminListImages(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	e.reg.tags["dummy"] = []string{"1600000000-a", "prepare"}
	e.reg.tags["empty"] = nil
	require.NoError(t, e.run(t, "admin", "list-images"))
	assert.Equal(t, "dummy:1600000000-a\ndummy:prepare\n", e.stdout.String())
}

func TestVersionCmd(t *testing.T) {
	e := newEnv(t, "")
	require.NoError(t, e.run(t, "version"))
	assert.True(t, strings.HasPrefix(e.stdout.String(), "lain dev"))
}

func TestValuesCmdOtherCluster(t *testing.T) {
	e := newEnv(t, testValuesYAML)
	require.NoError(t, os.WriteFile(filepath.Join(e.chartDir, "values-prod.yaml"), []byte("releaseName: dummy-prod\n"), 0o644))

	require.NoError(t, e.run(t, "values", "--cluster", "prod"))
	assert.Contains(t, e.stdout.String(), "releaseName: dummy-prod")
}
