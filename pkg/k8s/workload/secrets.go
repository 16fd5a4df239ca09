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

package workload

import (
	"context"
	"log/slog"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
)

// SecretKind tells how a fresh Secret is seeded.
type SecretKind string

const (
	// KindEnv holds environment variables injected into every container.
	KindEnv SecretKind = "env"
	// KindFile holds files mounted into containers.
	KindFile SecretKind = "secret"
)

// seed returns example content that shows users the expected shape.
func (k SecretKind) seed() map[string]string {
	if k == KindEnv {
		return map[string]string{"FOO": "BAR"}
	}
	return map[string]string{"topsecret.txt": "I\nAM\nBATMAN"}
}

// InitSecret creates Secret name with example content when it does not
// exist yet and reports whether it did.
func InitSecret(ctx context.Context, cs kubernetes.Interface, ns, name string, kind SecretKind) (bool, error) {
	_, err := cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return false, nil
	}
	if !apierrors.IsNotFound(err) {
		return false, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get secret", err)
	}
	if _, err := createSecret(ctx, cs, ns, name, kind.seed()); err != nil {
		return false, err
	}
	slog.Info("secret initialized", "secret", name, "kind", kind)
	return true, nil
}

// ReadSecret returns the decoded data of Secret name.
func ReadSecret(ctx context.Context, cs kubernetes.Interface, ns, name string) (map[string]string, error) {
	s, err := cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound,
			"secret "+name+" not found", map[string]any{"namespace": ns})
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get secret", err)
	}
	return decode(s), nil
}

// EnsureSecret returns the data of Secret name, seeding it first when missing.
func EnsureSecret(ctx context.Context, cs kubernetes.Interface, ns, name string, kind SecretKind) (map[string]string, error) {
	if _, err := InitSecret(ctx, cs, ns, name, kind); err != nil {
		return nil, err
	}
	return ReadSecret(ctx, cs, ns, name)
}

// UpdateSecret merges kv into Secret name and reports what changed.
// The Secret is seeded first when missing.
func UpdateSecret(ctx context.Context, cs kubernetes.Interface, ns, name string, kind SecretKind, kv map[string]string) (values.Diff, error) {
	if _, err := InitSecret(ctx, cs, ns, name, kind); err != nil {
		return values.Diff{}, err
	}
	s, err := cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return values.Diff{}, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get secret", err)
	}

	before := decode(s)
	if s.Data == nil {
		s.Data = make(map[string][]byte, len(kv))
	}
	for k, v := range kv {
		s.Data[k] = []byte(v)
	}
	// StringData would shadow Data on the next update.
	s.StringData = nil
	after := decode(s)

	diff := values.DiffKeys(before, after)
	if diff.Empty() {
		return diff, nil
	}
	if _, err := cs.CoreV1().Secrets(ns).Update(ctx, s, metav1.UpdateOptions{}); err != nil {
		return diff, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to update secret", err)
	}
	return diff, nil
}

// RemoveSecretKeys deletes keys from Secret name. Keys that are absent are ignored.
func RemoveSecretKeys(ctx context.Context, cs kubernetes.Interface, ns, name string, keys ...string) (values.Diff, error) {
	s, err := cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return values.Diff{}, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get secret", err)
	}
	before := decode(s)
	for _, k := range keys {
		delete(s.Data, k)
	}
	after := decode(s)
	diff := values.DiffKeys(before, after)
	if len(diff.Removed) == 0 {
		return diff, nil
	}
	if _, err := cs.CoreV1().Secrets(ns).Update(ctx, s, metav1.UpdateOptions{}); err != nil {
		return diff, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to update secret", err)
	}
	return diff, nil
}

// SortedKeys returns the keys of data in order.
func SortedKeys[V any](data map[string]V) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func createSecret(ctx context.Context, cs kubernetes.Interface, ns, name string, data map[string]string) (*corev1.Secret, error) {
	s := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
		Type:       corev1.SecretTypeOpaque,
		Data:       make(map[string][]byte, len(data)),
	}
	for k, v := range data {
		s.Data[k] = []byte(v)
	}
	created, err := cs.CoreV1().Secrets(ns).Create(ctx, s, metav1.CreateOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create secret", err)
	}
	return created, nil
}

func decode(s *corev1.Secret) map[string]string {
	out := make(map[string]string, len(s.Data)+len(s.StringData))
	for k, v := range s.Data {
		out[k] = string(v)
	}
	for k, v := range s.StringData {
		out[k] = v
	}
	return out
}
