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
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/registry"
)

// ManualJobPrefix prefixes jobs created by hand from a cronjob.
const ManualJobPrefix = "manual-test-"

// jobDeletionTimeout bounds the wait for a previous manual job to vanish.
var jobDeletionTimeout = 30 * time.Second

// ManualJobName names the job spawned from cronjob.
func ManualJobName(cronjob string) string {
	return ManualJobPrefix + cronjob
}

// CreateJobFromCronJob instantiates cronjob as a one-off job named after
// ManualJobName, replacing any job left from a previous run.
func CreateJobFromCronJob(ctx context.Context, cs kubernetes.Interface, ns, cronjob string) (*batchv1.Job, error) {
	jobName := ManualJobName(cronjob)
	cj, err := cs.BatchV1().CronJobs(ns).Get(ctx, cronjob, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound,
				fmt.Sprintf("cronjob %s not found", cronjob), map[string]any{"namespace": ns})
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get cronjob", err)
	}

	if err := DeleteJob(ctx, cs, ns, jobName); err != nil {
		return nil, err
	}

	job := buildJob(cj, jobName)
	created, err := cs.BatchV1().Jobs(ns).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create job", err)
	}
	slog.Info("job created", "job", jobName, "cronjob", cronjob, "namespace", ns)
	return created, nil
}

func buildJob(cj *batchv1.CronJob, name string) *batchv1.Job {
	annotations := map[string]string{"cronjob.kubernetes.io/instantiate": "manual"}
	for k, v := range cj.Spec.JobTemplate.Annotations {
		annotations[k] = v
	}
	labels := make(map[string]string, len(cj.Spec.JobTemplate.Labels))
	for k, v := range cj.Spec.JobTemplate.Labels {
		labels[k] = v
	}
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   cj.Namespace,
			Labels:      labels,
			Annotations: annotations,
			OwnerReferences: []metav1.OwnerReference{{
				APIVersion:         batchv1.SchemeGroupVersion.String(),
				Kind:               "CronJob",
				Name:               cj.Name,
				UID:                cj.UID,
				Controller:         ptr.To(true),
				BlockOwnerDeletion: ptr.To(true),
			}},
		},
		Spec: *cj.Spec.JobTemplate.Spec.DeepCopy(),
	}
}

// DeleteJob removes job name and its pods, waiting until it is gone.
// A missing job is not an error.
func DeleteJob(ctx context.Context, cs kubernetes.Interface, ns, name string) error {
	propagation := metav1.DeletePropagationForeground
	err := cs.BatchV1().Jobs(ns).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternal, "failed to delete job", err)
	}
	slog.Info("deleted previous job", "job", name)

	err = wait.PollUntilContextTimeout(ctx, 500*time.Millisecond, jobDeletionTimeout, true,
		func(ctx context.Context) (bool, error) {
			_, err := cs.BatchV1().Jobs(ns).Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			return false, err
		},
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeTimeout, "job deletion did not finish", err)
	}
	return nil
}

// CommandJob is a one-off job that runs Command with the pod template of an
// existing deployment, so it sees the same image, env and volumes.
type CommandJob struct {
	Name       string
	Deployment string
	Command    []string
	// ImageTag replaces the tag of the deployment image when set.
	ImageTag string
	Deadline time.Duration
	// Force deletes a job of the same name instead of failing.
	Force bool
}

// commandJobTTL keeps finished command jobs around for a day.
const commandJobTTL = int32(24 * 3600)

// CreateCommandJob creates the job described by spec in ns.
func CreateCommandJob(ctx context.Context, cs kubernetes.Interface, ns string, spec CommandJob) (*batchv1.Job, error) {
	deploy, err := cs.AppsV1().Deployments(ns).Get(ctx, spec.Deployment, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound,
				fmt.Sprintf("deployment %s not found", spec.Deployment), map[string]any{"namespace": ns}).
				WithHint("deploy the app first, lain job borrows its image and environment")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get deployment", err)
	}
	if len(deploy.Spec.Template.Spec.Containers) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("deployment %s has no containers", spec.Deployment))
	}

	_, err = cs.BatchV1().Jobs(ns).Get(ctx, spec.Name, metav1.GetOptions{})
	switch {
	case err == nil && !spec.Force:
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s already exists, maybe someone else is running the same job", spec.Name),
			map[string]any{"logs": "kubectl logs -f -l " + JobSelector(spec.Name)}).
			WithHint("use --force to replace it")
	case err == nil:
		if err := DeleteJob(ctx, cs, ns, spec.Name); err != nil {
			return nil, err
		}
	case !apierrors.IsNotFound(err):
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to get job", err)
	}

	tmpl := deploy.Spec.Template.DeepCopy()
	tmpl.Labels = nil
	tmpl.Spec.RestartPolicy = corev1.RestartPolicyNever
	c := tmpl.Spec.Containers[0]
	c.Command = spec.Command
	c.Args = nil
	c.LivenessProbe, c.ReadinessProbe, c.StartupProbe = nil, nil, nil
	c.Ports = nil
	if spec.ImageTag != "" {
		repo, _, err := registry.ParseImage(c.Image)
		if err != nil {
			return nil, err
		}
		c.Image = repo + ":" + spec.ImageTag
	}
	tmpl.Spec.Containers = []corev1.Container{c}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: spec.Name, Namespace: ns},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To(int32(0)),
			TTLSecondsAfterFinished: ptr.To(commandJobTTL),
			Template:                *tmpl,
		},
	}
	if spec.Deadline > 0 {
		job.Spec.ActiveDeadlineSeconds = ptr.To(int64(spec.Deadline.Seconds()))
	}
	created, err := cs.BatchV1().Jobs(ns).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create job", err)
	}
	slog.Info("job created", "job", spec.Name, "deployment", spec.Deployment, "image", c.Image)
	return created, nil
}

// JobSelector selects the pods of job name.
func JobSelector(name string) string {
	return "job-name=" + name
}
