// Package jobrunner drives one remote, one-shot Job to completion:
// submit, poll until terminal, collect output, delete.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"supportconsole/internal/cluster"
	"supportconsole/internal/logger"
	"supportconsole/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrSubmissionFailed is wrapped by results whose Job was never accepted.
var ErrSubmissionFailed = errors.New("job submission failed")

// LogTailLines bounds the output collected from a finished Job.
const LogTailLines int64 = 200

// Defaults for Config.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultTimeout      = 120 * time.Second
)

// Result is the uniform outcome of one Run.
type Result struct {
	JobName  string
	Success  bool
	Logs     string
	Duration time.Duration

	// FailureReason is empty on success.
	FailureReason string

	// Err is the typed cause behind FailureReason, for errors.Is checks.
	Err error
}

// DurationSeconds returns the elapsed time rounded to whole seconds.
func (r Result) DurationSeconds() int {
	return int(r.Duration.Round(time.Second) / time.Second)
}

// TimedOut reports whether the Job never reached a terminal condition.
func (r Result) TimedOut() bool {
	return errors.Is(r.Err, ErrTimeout)
}

// ErrTimeout is wrapped by results whose Job did not finish before the deadline.
var ErrTimeout = errors.New("job did not finish in time")

// Config tunes the polling loop.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Runner executes JobSpecs through a cluster.Gateway.
type Runner struct {
	gateway cluster.Gateway
	config  Config
	logger  *slog.Logger
	metrics *observability.Instruments
	tracer  trace.Tracer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics records job runs on inst.
func WithMetrics(inst *observability.Instruments) Option {
	return func(r *Runner) { r.metrics = inst }
}

// WithClock replaces the wall clock and the poll wait, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.now = now
		r.sleep = sleep
	}
}

// New creates a Runner.
func New(gw cluster.Gateway, cfg Config, opts ...Option) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	r := &Runner{
		gateway: gw,
		config:  cfg,
		logger:  logger.Discard(),
		tracer:  otel.Tracer("jobrunner"),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run submits spec, waits for a terminal condition, collects the output and
// deletes the Job. Delete is attempted exactly once per call, whatever
// happened before it. Run never returns an error; failures are described in
// the Result.
func (r *Runner) Run(ctx context.Context, spec cluster.JobSpec) Result {
	start := r.now()
	log := logger.FromContext(ctx, r.logger).With("job", spec.Name, "namespace", spec.Namespace)

	ctx, span := r.tracer.Start(ctx, "jobrunner.run", trace.WithAttributes(
		attribute.String("job.name", spec.Name),
		attribute.String("job.namespace", spec.Namespace),
		attribute.String("job.image", spec.Image),
	))
	defer span.End()

	res := Result{JobName: spec.Name}

	if err := r.gateway.ApplyJob(ctx, spec); err != nil {
		log.Warn("job submission failed", "error", err)
		res.Err = fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		res.FailureReason = res.Err.Error()
		res.Logs = unavailableLogs(err)
	} else {
		log.Info("job submitted")
		res.Err = r.waitForCompletion(ctx, spec)
		if res.Err == nil {
			res.Success = true
		} else {
			res.FailureReason = res.Err.Error()
		}
		res.Logs = r.collectLogs(ctx, spec)
	}

	// Cleanup runs on a context that survives cancellation of the caller
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.gateway.DeleteJob(cleanupCtx, spec.Namespace, spec.Name); err != nil {
		log.Warn("failed to delete job", "error", err)
	}

	res.Duration = r.now().Sub(start)
	if res.Duration < 0 {
		res.Duration = 0
	}

	outcome := "succeeded"
	switch {
	case errors.Is(res.Err, ErrSubmissionFailed):
		outcome = "submission_failed"
	case res.TimedOut():
		outcome = "timeout"
	case !res.Success:
		outcome = "failed"
	}
	r.metrics.RecordJob(ctx, jobPrefix(spec.Name), outcome, res.Duration)

	if !res.Success {
		span.SetStatus(codes.Error, res.FailureReason)
	}
	log.Info("job finished", "outcome", outcome, "duration_seconds", res.DurationSeconds())

	return res
}

// waitForCompletion polls the Job status every PollInterval until a terminal
// condition or the timeout. Status read errors are treated as "not yet known".
func (r *Runner) waitForCompletion(ctx context.Context, spec cluster.JobSpec) error {
	deadline := r.now().Add(r.config.Timeout)

	for {
		if err := r.sleep(ctx, r.config.PollInterval); err != nil {
			return fmt.Errorf("wait for job %s interrupted: %w", spec.Name, err)
		}

		status, err := r.gateway.GetJobStatus(ctx, spec.Namespace, spec.Name)
		if err != nil {
			r.logger.Debug("job status not available yet", "job", spec.Name, "error", err)
		} else {
			switch status.State {
			case cluster.JobComplete:
				return nil
			case cluster.JobFailed:
				if status.Message != "" {
					return fmt.Errorf("Job pod failed: %s", status.Message)
				}
				return errors.New("Job pod failed")
			}
		}

		if !r.now().Before(deadline) {
			return fmt.Errorf("%w: Timeout after %s", ErrTimeout, formatSeconds(r.config.Timeout))
		}
	}
}

func (r *Runner) collectLogs(ctx context.Context, spec cluster.JobSpec) string {
	logs, err := r.gateway.GetJobLogs(ctx, spec.Namespace, spec.Name, LogTailLines)
	if err != nil {
		return unavailableLogs(err)
	}
	if strings.TrimSpace(logs) == "" {
		return "(no output)"
	}
	return logs
}

func unavailableLogs(err error) string {
	return fmt.Sprintf("(Unable to retrieve logs: %v)", err)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d/time.Second))
}

// jobPrefix strips the "-<timestamp>-<random>" suffix added by cluster.NewJobName.
func jobPrefix(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) <= 2 {
		return name
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
