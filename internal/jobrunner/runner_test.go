package jobrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"supportconsole/internal/cluster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway scripts the status sequence returned to the poller.
type fakeGateway struct {
	mu sync.Mutex

	applyErr  error
	statuses  []cluster.JobStatus
	statusErr error
	logs      string
	logsErr   error
	deleteErr error

	applied  int
	polls    int
	deleted  []string
	logCalls int
}

func (f *fakeGateway) ApplyJob(ctx context.Context, spec cluster.JobSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	return f.applyErr
}

func (f *fakeGateway) GetJobStatus(ctx context.Context, namespace, name string) (cluster.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.statusErr != nil {
		return cluster.JobStatus{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return cluster.JobStatus{State: cluster.JobRunning}, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeGateway) GetJobLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	return f.logs, f.logsErr
}

func (f *fakeGateway) DeleteJob(ctx context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

// fakeClock advances only when the runner sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func newTestRunner(gw cluster.Gateway, clock *fakeClock) *Runner {
	return New(gw, Config{PollInterval: 3 * time.Second, Timeout: 120 * time.Second},
		WithClock(clock.Now, clock.Sleep))
}

func spec() cluster.JobSpec {
	return cluster.JobSpec{
		Name:      "support-create-ta-m1abc-x9y8z",
		Namespace: "staging",
		Image:     "curlimages/curl:8.1.1",
		Command:   []string{"/bin/sh", "-c", "echo ok"},
	}
}

func TestRun_Success(t *testing.T) {
	gw := &fakeGateway{
		statuses: []cluster.JobStatus{{State: cluster.JobRunning}, {State: cluster.JobComplete}},
		logs:     `{"status":"ok"}`,
	}
	clock := newFakeClock()

	res := newTestRunner(gw, clock).Run(context.Background(), spec())

	assert.True(t, res.Success)
	assert.Empty(t, res.FailureReason)
	assert.Equal(t, `{"status":"ok"}`, res.Logs)
	assert.Equal(t, 6*time.Second, res.Duration)
	assert.Equal(t, 6, res.DurationSeconds())
	assert.Equal(t, []string{spec().Name}, gw.deleted)
}

func TestRun_CompletesAfterKPolls(t *testing.T) {
	for _, k := range []int{1, 5, 39} {
		statuses := make([]cluster.JobStatus, 0, k)
		for i := 0; i < k-1; i++ {
			statuses = append(statuses, cluster.JobStatus{State: cluster.JobRunning})
		}
		statuses = append(statuses, cluster.JobStatus{State: cluster.JobComplete})

		gw := &fakeGateway{statuses: statuses, logs: "done"}
		res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

		require.True(t, res.Success, "k=%d: %s", k, res.FailureReason)
		assert.Equal(t, k, gw.polls, "k=%d", k)
		assert.Equal(t, time.Duration(k)*3*time.Second, res.Duration, "k=%d", k)
		assert.Len(t, gw.deleted, 1)
	}
}

func TestRun_JobFailed(t *testing.T) {
	gw := &fakeGateway{
		statuses: []cluster.JobStatus{{State: cluster.JobFailed, Message: "BackoffLimitExceeded"}},
		logs:     "curl: (22) The requested URL returned error: 500",
	}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.False(t, res.Success)
	assert.Equal(t, "Job pod failed: BackoffLimitExceeded", res.FailureReason)
	assert.Contains(t, res.Logs, "error: 500")
	assert.Len(t, gw.deleted, 1)
}

func TestRun_Timeout(t *testing.T) {
	gw := &fakeGateway{logs: "partial"}
	clock := newFakeClock()

	res := newTestRunner(gw, clock).Run(context.Background(), spec())

	assert.False(t, res.Success)
	assert.True(t, res.TimedOut())
	assert.Contains(t, res.FailureReason, "Timeout after 120s")
	assert.Equal(t, 40, gw.polls)
	assert.Equal(t, 120*time.Second, res.Duration)
	// The Job is deleted even though it never finished
	assert.Equal(t, []string{spec().Name}, gw.deleted)
}

func TestRun_StatusErrorsAreTransient(t *testing.T) {
	gw := &fakeGateway{statusErr: errors.New("connection reset")}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.True(t, res.TimedOut())
	assert.Len(t, gw.deleted, 1)
}

func TestRun_SubmissionFailed(t *testing.T) {
	gw := &fakeGateway{applyErr: errors.New("forbidden: cannot create jobs")}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrSubmissionFailed)
	assert.Contains(t, res.FailureReason, "forbidden")
	assert.Contains(t, res.Logs, "Unable to retrieve logs")
	assert.Zero(t, gw.polls)
	assert.Zero(t, gw.logCalls)
	assert.Len(t, gw.deleted, 1)
}

func TestRun_LogsUnavailable(t *testing.T) {
	gw := &fakeGateway{
		statuses: []cluster.JobStatus{{State: cluster.JobComplete}},
		logsErr:  cluster.ErrNoPods,
	}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.True(t, res.Success)
	assert.Contains(t, res.Logs, "(Unable to retrieve logs:")
}

func TestRun_EmptyLogs(t *testing.T) {
	gw := &fakeGateway{statuses: []cluster.JobStatus{{State: cluster.JobComplete}}}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.Equal(t, "(no output)", res.Logs)
}

func TestRun_DeleteFailureDoesNotChangeOutcome(t *testing.T) {
	gw := &fakeGateway{
		statuses:  []cluster.JobStatus{{State: cluster.JobComplete}},
		logs:      "ok",
		deleteErr: errors.New("delete refused"),
	}

	res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

	assert.True(t, res.Success)
	assert.Len(t, gw.deleted, 1)
}

func TestRun_CancelledContextStillDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &fakeGateway{}

	res := newTestRunner(gw, newFakeClock()).Run(ctx, spec())

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Len(t, gw.deleted, 1)
}

func TestRun_ExactlyOneDeletePerRun(t *testing.T) {
	scenarios := map[string]*fakeGateway{
		"success":    {statuses: []cluster.JobStatus{{State: cluster.JobComplete}}},
		"failed":     {statuses: []cluster.JobStatus{{State: cluster.JobFailed}}},
		"timeout":    {},
		"submission": {applyErr: errors.New("boom")},
	}

	for name, gw := range scenarios {
		t.Run(name, func(t *testing.T) {
			res := newTestRunner(gw, newFakeClock()).Run(context.Background(), spec())

			assert.Len(t, gw.deleted, 1)
			assert.NotEmpty(t, res.Logs)
			assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
		})
	}
}

func TestRun_RealClockShortTimeout(t *testing.T) {
	gw := &fakeGateway{}
	r := New(gw, Config{PollInterval: 5 * time.Millisecond, Timeout: 20 * time.Millisecond})

	res := r.Run(context.Background(), spec())

	assert.True(t, res.TimedOut())
	assert.GreaterOrEqual(t, res.Duration, 20*time.Millisecond)
	assert.Len(t, gw.deleted, 1)
}

func TestJobPrefix(t *testing.T) {
	assert.Equal(t, "support-create-ta", jobPrefix("support-create-ta-m1abc-x9y8z"))
	assert.Equal(t, "plain", jobPrefix("plain"))
}
