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
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

// AppLabel is the label every pod of a lain app carries.
const AppLabel = "app.kubernetes.io/name"

// AppSelector selects the pods of appname.
func AppSelector(appname string) string {
	return fmt.Sprintf("%s=%s", AppLabel, appname)
}

// PodRow is one line of pod status, shaped like kubectl get pods.
type PodRow struct {
	Name     string        `json:"name" yaml:"name"`
	Ready    int           `json:"ready" yaml:"ready"`
	Total    int           `json:"total" yaml:"total"`
	Status   string        `json:"status" yaml:"status"`
	Restarts int32         `json:"restarts" yaml:"restarts"`
	Age      time.Duration `json:"age" yaml:"age"`
	Node     string        `json:"node,omitempty" yaml:"node,omitempty"`
	IP       string        `json:"ip,omitempty" yaml:"ip,omitempty"`
}

// ReadyString renders ready containers as n/m.
func (r PodRow) ReadyString() string {
	return fmt.Sprintf("%d/%d", r.Ready, r.Total)
}

// IsReady reports whether every container of a running pod is ready.
func IsReady(r PodRow) bool {
	return r.Status == string(corev1.PodRunning) && r.Total > 0 && r.Ready == r.Total
}

// ListPods lists pods matching selector, sorted by name.
func ListPods(ctx context.Context, cs kubernetes.Interface, ns, selector string) ([]PodRow, error) {
	pods, err := cs.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to list pods", err,
			map[string]any{"namespace": ns, "selector": selector})
	}
	now := time.Now()
	rows := make([]PodRow, 0, len(pods.Items))
	for i := range pods.Items {
		rows = append(rows, podRow(&pods.Items[i], now))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

func podRow(p *corev1.Pod, now time.Time) PodRow {
	row := PodRow{
		Name:   p.Name,
		Total:  len(p.Spec.Containers),
		Status: string(p.Status.Phase),
		Node:   p.Spec.NodeName,
		IP:     p.Status.PodIP,
	}
	if !p.CreationTimestamp.IsZero() {
		row.Age = now.Sub(p.CreationTimestamp.Time)
	}
	if p.Status.Reason != "" {
		row.Status = p.Status.Reason
	}
	for _, cs := range p.Status.ContainerStatuses {
		if cs.Ready {
			row.Ready++
		}
		row.Restarts += cs.RestartCount
		switch {
		case cs.State.Waiting != nil && cs.State.Waiting.Reason != "":
			row.Status = cs.State.Waiting.Reason
		case cs.State.Terminated != nil && cs.State.Terminated.Reason != "" && p.Status.Phase != corev1.PodSucceeded:
			row.Status = cs.State.Terminated.Reason
		}
	}
	if p.DeletionTimestamp != nil {
		row.Status = "Terminating"
	}
	return row
}

// FormatAge renders a duration the way kubectl does: 45s, 12m, 5h, 3d.
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// WaitForPods polls until at least one pod matches selector and all of
// them are ready.
func WaitForPods(ctx context.Context, cs kubernetes.Interface, ns, selector string, interval, timeout time.Duration) ([]PodRow, error) {
	var rows []PodRow
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(ctx context.Context) (bool, error) {
			var err error
			rows, err = ListPods(ctx, cs, ns, selector)
			if err != nil {
				return false, err
			}
			if len(rows) == 0 {
				return false, nil
			}
			for _, r := range rows {
				if !IsReady(r) {
					return false, nil
				}
			}
			return true, nil
		},
	)
	if err != nil {
		return rows, waitError(err, selector, rows)
	}
	return rows, nil
}

// WaitForPodStarted polls until a pod matching selector has left Pending
// and returns its name.
func WaitForPodStarted(ctx context.Context, cs kubernetes.Interface, ns, selector string, interval, timeout time.Duration) (string, error) {
	var name string
	var rows []PodRow
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(ctx context.Context) (bool, error) {
			pods, err := cs.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: selector})
			if err != nil {
				return false, err
			}
			now := time.Now()
			rows = rows[:0]
			for i := range pods.Items {
				p := &pods.Items[i]
				rows = append(rows, podRow(p, now))
				if p.Status.Phase != corev1.PodPending && p.Status.Phase != "" {
					name = p.Name
					return true, nil
				}
			}
			return false, nil
		},
	)
	if err != nil {
		return "", waitError(err, selector, rows)
	}
	return name, nil
}

func waitError(err error, selector string, rows []PodRow) error {
	var states []string
	for _, r := range rows {
		states = append(states, fmt.Sprintf("%s %s %s", r.Name, r.ReadyString(), r.Status))
	}
	ctx := map[string]any{"selector": selector, "pods": states}
	if wait.Interrupted(err) {
		msg := "pods not ready in time"
		if len(rows) == 0 {
			msg = "no pods found in time"
		}
		return apperrors.WrapWithContext(apperrors.ErrCodeTimeout, msg, err, ctx).
			WithHint("check lain status for clues: " + strings.Join(states, "; "))
	}
	return apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to wait for pods", err, ctx)
}

// RunningImageTags returns the tags of every container image in use in ns,
// or in all namespaces when ns is empty.
func RunningImageTags(ctx context.Context, cs kubernetes.Interface, ns string) (map[string]struct{}, error) {
	pods, err := cs.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to list pods", err)
	}
	tags := make(map[string]struct{})
	for _, p := range pods.Items {
		containers := append(append([]corev1.Container{}, p.Spec.InitContainers...), p.Spec.Containers...)
		for _, c := range containers {
			if i := strings.LastIndex(c.Image, ":"); i >= 0 && !strings.Contains(c.Image[i:], "/") {
				tags[c.Image[i+1:]] = struct{}{}
			}
		}
	}
	return tags, nil
}
