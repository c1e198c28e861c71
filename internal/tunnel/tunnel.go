// Package tunnel forwards a private database pod to a local loopback port by
// running `kubectl port-forward` for the lifetime of a session.
package tunnel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"supportconsole/internal/config"
)

var (
	// ErrToolingUnavailable means the kubectl executable could not be found.
	ErrToolingUnavailable = errors.New("kubectl is not installed or not in PATH")

	// ErrTunnelSetupFailed means the forwarding process exited before the port was ready.
	ErrTunnelSetupFailed = errors.New("tunnel setup failed")

	// ErrTunnelTimeout means the local port did not accept connections in time.
	ErrTunnelTimeout = errors.New("tunnel did not become ready in time")
)

// SetupError carries the diagnostic output of a forwarding process that
// exited early. It matches ErrTunnelSetupFailed with errors.Is.
type SetupError struct {
	Stderr string
	Err    error
}

func (e *SetupError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "process exited before the port was ready"
	}
	return fmt.Sprintf("%s: %s", ErrTunnelSetupFailed, msg)
}

func (e *SetupError) Is(target error) bool { return target == ErrTunnelSetupFailed }

func (e *SetupError) Unwrap() error { return e.Err }

// Defaults for Options.
const (
	DefaultTimeout       = 15 * time.Second
	DefaultProbeInterval = 300 * time.Millisecond
)

// Options tune how the forwarding process is launched and awaited.
type Options struct {
	KubectlPath   string
	Timeout       time.Duration
	ProbeInterval time.Duration
	Logger        *slog.Logger

	// command builds the process; replaced in tests.
	command func(name string, arg ...string) *exec.Cmd
}

func (o *Options) withDefaults() {
	if o.KubectlPath == "" {
		o.KubectlPath = config.DefaultKubectlPath
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = DefaultProbeInterval
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.command == nil {
		o.command = exec.Command
	}
}

// Tunnel owns one forwarding process and the local port it listens on.
type Tunnel struct {
	LocalPort int

	cmd       *exec.Cmd
	exited    chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// Args returns the kubectl arguments forwarding localPort to the environment's database pod.
func Args(access config.ClusterAccess, env config.EnvironmentConfig, localPort int) []string {
	return []string{
		"--server=" + access.Server,
		"--token=" + access.Token,
		"--insecure-skip-tls-verify",
		"port-forward",
		"pod/" + env.PodName,
		fmt.Sprintf("%d:%d", localPort, env.PodPort),
		"-n", env.Namespace,
	}
}

// FreePort asks the OS for an unused loopback port.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate local port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// lockedBuffer collects process output written from the exec copy goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Open starts the forwarding process and blocks until the local port accepts
// connections. On any failure the process is terminated before returning.
func Open(ctx context.Context, access config.ClusterAccess, env config.EnvironmentConfig, opts Options) (*Tunnel, error) {
	opts.withDefaults()

	port, err := FreePort()
	if err != nil {
		return nil, err
	}

	var stderr lockedBuffer
	cmd := opts.command(opts.KubectlPath, Args(access, env, port)...)
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrToolingUnavailable, err)
		}
		return nil, &SetupError{Err: err}
	}

	t := &Tunnel{
		LocalPort: port,
		cmd:       cmd,
		exited:    make(chan struct{}),
		logger:    opts.Logger,
	}

	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(t.exited)
	}()

	opts.Logger.Debug("waiting for tunnel", "pod", env.PodName, "namespace", env.Namespace, "local_port", port)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.exited:
			// waitErr is visible here: close(exited) happens after the assignment
			return nil, &SetupError{Stderr: stderr.String(), Err: waitErr}
		case <-deadline.C:
			t.Close()
			return nil, fmt.Errorf("%w after %s", ErrTunnelTimeout, opts.Timeout)
		case <-ctx.Done():
			t.Close()
			return nil, ctx.Err()
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", addr, opts.ProbeInterval)
			if err != nil {
				continue
			}
			conn.Close()
			opts.Logger.Debug("tunnel ready", "local_port", port)
			return t, nil
		}
	}
}

// Port returns the local end of the tunnel.
func (t *Tunnel) Port() int {
	return t.LocalPort
}

// Close terminates the forwarding process. It is idempotent and never fails.
func (t *Tunnel) Close() {
	if t == nil {
		return
	}
	t.closeOnce.Do(func() {
		select {
		case <-t.exited:
			return
		default:
		}
		if err := t.cmd.Process.Kill(); err != nil {
			t.logger.Debug("failed to kill tunnel process", "error", err)
		}
		select {
		case <-t.exited:
		case <-time.After(2 * time.Second):
			t.logger.Debug("tunnel process did not exit after kill")
		}
	})
}

// Exited reports whether the forwarding process has stopped.
func (t *Tunnel) Exited() bool {
	select {
	case <-t.exited:
		return true
	default:
		return false
	}
}
