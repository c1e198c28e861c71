package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"supportconsole/internal/config"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// ErrNoPods is returned by GetJobLogs when the Job never created a pod.
var ErrNoPods = errors.New("job has no pods")

// KubeGateway implements Gateway using client-go.
type KubeGateway struct {
	clientset kubernetes.Interface
	logger    *slog.Logger
}

// NewKubeGateway wraps an existing clientset.
func NewKubeGateway(clientset kubernetes.Interface, logger *slog.Logger) *KubeGateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KubeGateway{clientset: clientset, logger: logger}
}

// RESTConfig builds the client configuration for bearer-token access.
// TLS verification is disabled: the API server of the private cluster
// presents an internal certificate.
func RESTConfig(access config.ClusterAccess) (*rest.Config, error) {
	if access.Server == "" {
		return nil, errors.New("kubernetes API server address is empty")
	}
	return &rest.Config{
		Host:        access.Server,
		BearerToken: access.Token,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: true,
		},
		UserAgent: ManagedByValue,
	}, nil
}

// NewKubeGatewayForAccess connects to the cluster described by access.
func NewKubeGatewayForAccess(access config.ClusterAccess, logger *slog.Logger) (*KubeGateway, error) {
	cfg, err := RESTConfig(access)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	return NewKubeGateway(clientset, logger), nil
}

// ApplyJob implements Gateway.ApplyJob.
func (k *KubeGateway) ApplyJob(ctx context.Context, spec JobSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid job spec: %w", err)
	}

	job := BuildJob(spec)
	created, err := k.clientset.BatchV1().Jobs(spec.Namespace).Create(ctx, job, metav1.CreateOptions{
		FieldManager: ManagedByValue,
	})
	if err != nil {
		return fmt.Errorf("failed to create kubernetes job %s: %w", spec.Name, err)
	}

	k.logger.Debug("created kubernetes job", "job", created.Name, "namespace", spec.Namespace)
	return nil
}

// GetJobStatus implements Gateway.GetJobStatus.
func (k *KubeGateway) GetJobStatus(ctx context.Context, namespace, name string) (JobStatus, error) {
	job, err := k.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to get job %s: %w", name, err)
	}
	return statusFromConditions(job.Status.Conditions), nil
}

func statusFromConditions(conditions []batchv1.JobCondition) JobStatus {
	for _, c := range conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			return JobStatus{State: JobComplete, Message: c.Message}
		case batchv1.JobFailed:
			msg := c.Message
			if msg == "" {
				msg = c.Reason
			}
			return JobStatus{State: JobFailed, Message: msg}
		}
	}
	return JobStatus{State: JobRunning}
}

// GetJobLogs implements Gateway.GetJobLogs by reading the newest pod of the Job.
func (k *KubeGateway) GetJobLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	pods, err := k.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", JobNameLabel, name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list pods of job %s: %w", name, err)
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNoPods)
	}

	items := pods.Items
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreationTimestamp.After(items[j].CreationTimestamp.Time)
	})

	opts := &corev1.PodLogOptions{Container: name}
	if tailLines > 0 {
		opts.TailLines = &tailLines
	}
	raw, err := k.clientset.CoreV1().Pods(namespace).GetLogs(items[0].Name, opts).DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of pod %s: %w", items[0].Name, err)
	}
	return string(raw), nil
}

// DeleteJob implements Gateway.DeleteJob.
func (k *KubeGateway) DeleteJob(ctx context.Context, namespace, name string) error {
	// Background propagation lets the garbage collector remove the pods
	propagation := metav1.DeletePropagationBackground
	err := k.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", name, err)
	}
	k.logger.Debug("deleted kubernetes job", "job", name, "namespace", namespace)
	return nil
}
