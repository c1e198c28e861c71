// Package cluster talks to the Kubernetes API on behalf of the console: it
// renders one-shot Job manifests, submits them, reads their status and logs,
// and deletes them.
package cluster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength is the Kubernetes limit for label values and most object names.
const MaxNameLength = 63

const (
	DefaultBackoffLimit            int32 = 0
	DefaultTTLSecondsAfterFinished int32 = 300
)

// EnvVar is a container environment variable.
type EnvVar struct {
	Name  string
	Value string
}

// JobSpec describes one remote, one-shot execution. Build a fresh spec per call.
type JobSpec struct {
	Name      string
	Namespace string
	Image     string
	Command   []string
	Env       []EnvVar

	// Retries before the Job is marked failed. nil means DefaultBackoffLimit.
	BackoffLimit *int32

	// Seconds the finished Job is kept before the cluster garbage-collects it.
	// nil means DefaultTTLSecondsAfterFinished.
	TTLSecondsAfterFinished *int32
}

// Validate checks the fields the API server would otherwise reject.
func (s JobSpec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	} else if len(s.Name) > MaxNameLength {
		errs = append(errs, fmt.Errorf("name %q exceeds %d characters", s.Name, MaxNameLength))
	}
	if s.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if s.Image == "" {
		errs = append(errs, errors.New("image is required"))
	}
	if len(s.Command) == 0 {
		errs = append(errs, errors.New("command is required"))
	}
	return errors.Join(errs...)
}

func (s JobSpec) backoffLimit() int32 {
	if s.BackoffLimit != nil {
		return *s.BackoffLimit
	}
	return DefaultBackoffLimit
}

func (s JobSpec) ttlSecondsAfterFinished() int32 {
	if s.TTLSecondsAfterFinished != nil {
		return *s.TTLSecondsAfterFinished
	}
	return DefaultTTLSecondsAfterFinished
}

// NewJobName returns "<prefix>-<base36 millis>-<random>", lowercased and
// DNS-safe. The prefix is shortened when needed so the random part always
// survives the length limit.
func NewJobName(prefix string) string {
	return newJobName(prefix, time.Now())
}

func newJobName(prefix string, now time.Time) string {
	id := uuid.New()
	random := uint64(id[0])<<32 | uint64(id[1])<<24 | uint64(id[2])<<16 | uint64(id[3])<<8 | uint64(id[4])
	suffix := strconv.FormatInt(now.UnixMilli(), 36) + "-" + strconv.FormatUint(random, 36)

	p := sanitizeName(prefix)
	if limit := MaxNameLength - len(suffix) - 1; len(p) > limit {
		p = strings.TrimRight(p[:limit], "-")
	}
	if p == "" {
		return suffix
	}
	return p + "-" + suffix
}

// sanitizeName lowercases s and replaces anything outside [a-z0-9-] with '-'.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
