package cluster

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// ManagedByLabel marks every Job created by the console.
const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "wgfctl"
	JobNameLabel   = "job-name"
)

// Jobs only run curl against internal services, so the limits stay small.
const (
	defaultCPULimit    = "200m"
	defaultMemoryLimit = "64Mi"
)

// BuildJob renders spec into a batch/v1 Job.
func BuildJob(spec JobSpec) *batchv1.Job {
	var envVars []corev1.EnvVar
	for _, e := range spec.Env {
		envVars = append(envVars, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	backoffLimit := spec.backoffLimit()
	ttl := spec.ttlSecondsAfterFinished()

	return &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "batch/v1",
			Kind:       "Job",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: spec.Namespace,
			Labels: map[string]string{
				ManagedByLabel: ManagedByValue,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						JobNameLabel:   spec.Name,
						ManagedByLabel: ManagedByValue,
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:            spec.Name,
							Image:           spec.Image,
							ImagePullPolicy: corev1.PullIfNotPresent,
							Command:         spec.Command,
							Env:             envVars,
							Resources: corev1.ResourceRequirements{
								Limits: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse(defaultCPULimit),
									corev1.ResourceMemory: resource.MustParse(defaultMemoryLimit),
								},
							},
						},
					},
				},
			},
		},
	}
}

// RenderManifest returns the Job manifest as YAML, as it would be applied.
func RenderManifest(spec JobSpec) ([]byte, error) {
	out, err := yaml.Marshal(BuildJob(spec))
	if err != nil {
		return nil, fmt.Errorf("failed to render job manifest: %w", err)
	}
	return out, nil
}
