package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportconsole/internal/config"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func testSpec(name string) JobSpec {
	return JobSpec{
		Name:      name,
		Namespace: "test-ns",
		Image:     "curlimages/curl:8.1.1",
		Command:   []string{"/bin/sh", "-c", "echo ok"},
	}
}

func TestKubeGateway_ApplyJob_CreatesJob(t *testing.T) {
	clientset := fake.NewClientset()
	gw := NewKubeGateway(clientset, nil)
	ctx := context.Background()

	if err := gw.ApplyJob(ctx, testSpec("support-create-ta-1")); err != nil {
		t.Fatalf("ApplyJob() failed: %v", err)
	}

	jobs, err := clientset.BatchV1().Jobs("test-ns").List(ctx, metav1.ListOptions{})
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs.Items) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs.Items))
	}
	if jobs.Items[0].Spec.Template.Spec.Containers[0].Image != "curlimages/curl:8.1.1" {
		t.Errorf("unexpected image %s", jobs.Items[0].Spec.Template.Spec.Containers[0].Image)
	}
}

func TestKubeGateway_ApplyJob_DuplicateNameFails(t *testing.T) {
	gw := NewKubeGateway(fake.NewClientset(), nil)
	ctx := context.Background()

	if err := gw.ApplyJob(ctx, testSpec("dup")); err != nil {
		t.Fatalf("first ApplyJob() failed: %v", err)
	}
	if err := gw.ApplyJob(ctx, testSpec("dup")); err == nil {
		t.Error("expected error when job name already exists")
	}
}

func TestKubeGateway_ApplyJob_InvalidSpec(t *testing.T) {
	gw := NewKubeGateway(fake.NewClientset(), nil)
	if err := gw.ApplyJob(context.Background(), JobSpec{Name: "x"}); err == nil {
		t.Error("expected validation error")
	}
}

func TestKubeGateway_GetJobStatus(t *testing.T) {
	tests := []struct {
		name       string
		conditions []batchv1.JobCondition
		want       JobState
		wantMsg    string
	}{
		{"no conditions", nil, JobRunning, ""},
		{
			"complete",
			[]batchv1.JobCondition{{Type: batchv1.JobComplete, Status: corev1.ConditionTrue}},
			JobComplete, "",
		},
		{
			"failed uses reason when message empty",
			[]batchv1.JobCondition{{Type: batchv1.JobFailed, Status: corev1.ConditionTrue, Reason: "BackoffLimitExceeded"}},
			JobFailed, "BackoffLimitExceeded",
		},
		{
			"false conditions are ignored",
			[]batchv1.JobCondition{{Type: batchv1.JobFailed, Status: corev1.ConditionFalse}},
			JobRunning, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &batchv1.Job{
				ObjectMeta: metav1.ObjectMeta{Name: "j", Namespace: "ns"},
				Status:     batchv1.JobStatus{Conditions: tt.conditions},
			}
			gw := NewKubeGateway(fake.NewClientset(job), nil)

			status, err := gw.GetJobStatus(context.Background(), "ns", "j")
			if err != nil {
				t.Fatalf("GetJobStatus() failed: %v", err)
			}
			if status.State != tt.want {
				t.Errorf("got state %v, want %v", status.State, tt.want)
			}
			if status.Message != tt.wantMsg {
				t.Errorf("got message %q, want %q", status.Message, tt.wantMsg)
			}
		})
	}
}

func TestKubeGateway_GetJobStatus_Missing(t *testing.T) {
	gw := NewKubeGateway(fake.NewClientset(), nil)
	if _, err := gw.GetJobStatus(context.Background(), "ns", "absent"); err == nil {
		t.Error("expected error for missing job")
	}
}

func TestKubeGateway_GetJobLogs(t *testing.T) {
	older := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Name: "j-old", Namespace: "ns",
		Labels:            map[string]string{JobNameLabel: "j"},
		CreationTimestamp: metav1.NewTime(time.Now().Add(-time.Minute)),
	}}
	newer := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Name: "j-new", Namespace: "ns",
		Labels:            map[string]string{JobNameLabel: "j"},
		CreationTimestamp: metav1.NewTime(time.Now()),
	}}
	gw := NewKubeGateway(fake.NewClientset(older, newer), nil)

	logs, err := gw.GetJobLogs(context.Background(), "ns", "j", 200)
	if err != nil {
		t.Fatalf("GetJobLogs() failed: %v", err)
	}
	// The fake clientset serves a fixed body for every pod
	if logs == "" {
		t.Error("expected log output")
	}
}

func TestKubeGateway_GetJobLogs_NoPods(t *testing.T) {
	gw := NewKubeGateway(fake.NewClientset(), nil)

	_, err := gw.GetJobLogs(context.Background(), "ns", "j", 200)
	if !errors.Is(err, ErrNoPods) {
		t.Errorf("expected ErrNoPods, got %v", err)
	}
}

func TestKubeGateway_DeleteJob(t *testing.T) {
	clientset := fake.NewClientset()
	gw := NewKubeGateway(clientset, nil)
	ctx := context.Background()

	if err := gw.ApplyJob(ctx, testSpec("to-delete")); err != nil {
		t.Fatalf("ApplyJob() failed: %v", err)
	}
	if err := gw.DeleteJob(ctx, "test-ns", "to-delete"); err != nil {
		t.Fatalf("DeleteJob() failed: %v", err)
	}

	jobs, _ := clientset.BatchV1().Jobs("test-ns").List(ctx, metav1.ListOptions{})
	if len(jobs.Items) != 0 {
		t.Errorf("expected job to be deleted, %d remain", len(jobs.Items))
	}

	// Already absent is not an error
	if err := gw.DeleteJob(ctx, "test-ns", "to-delete"); err != nil {
		t.Errorf("DeleteJob() on absent job returned %v", err)
	}
}

func TestRESTConfig_BearerToken(t *testing.T) {
	cfg, err := RESTConfig(config.ClusterAccess{Server: "https://10.0.0.1:6443", Token: "tok"})
	if err != nil {
		t.Fatalf("RESTConfig() failed: %v", err)
	}
	if cfg.Host != "https://10.0.0.1:6443" || cfg.BearerToken != "tok" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.TLSClientConfig.Insecure {
		t.Error("expected TLS verification to be disabled")
	}
}

func TestRESTConfig_RequiresServer(t *testing.T) {
	if _, err := RESTConfig(config.ClusterAccess{Token: "tok"}); err == nil {
		t.Error("expected an error without a server address")
	}
}
