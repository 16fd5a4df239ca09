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
	"bufio"
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/lain-cli/lain/pkg/errors"
)

// StreamLogs copies the logs of pod to w line by line, prefixing each line
// when prefix is set. With follow it returns once the container exits or
// ctx is canceled.
func StreamLogs(ctx context.Context, cs kubernetes.Interface, ns, pod string, follow bool, w io.Writer, prefix string) error {
	req := cs.CoreV1().Pods(ns).GetLogs(pod, &corev1.PodLogOptions{Follow: follow})
	logs, err := req.Stream(ctx)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeUnavailable, "failed to stream logs", err,
			map[string]any{"pod": pod})
	}
	defer logs.Close()

	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if prefix != "" {
			fmt.Fprintf(w, "%s %s\n", prefix, scanner.Text())
		} else {
			fmt.Fprintln(w, scanner.Text())
		}
	}
	return scanner.Err()
}
