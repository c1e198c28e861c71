package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"supportconsole/internal/config"
	"supportconsole/internal/tunnel"

	driver "github.com/go-sql-driver/mysql"
)

// Kind categorizes why a session could not be opened.
type Kind int

const (
	Unknown Kind = iota
	AccessDenied
	DatabaseMissing
	Unreachable
	Timeout
)

func (k Kind) String() string {
	switch k {
	case AccessDenied:
		return "access denied"
	case DatabaseMissing:
		return "database missing"
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MySQL server error numbers.
const (
	erDBAccessDenied = 1044
	erAccessDenied   = 1045
	erBadDB          = 1049
)

// Error is returned by Open. Hint is a remediation message for the operator.
type Error struct {
	Kind        Kind
	Environment config.Environment
	Hint        string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to open %s session (%s): %v", e.Environment, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps a connection failure onto a Kind and an operator hint.
func classify(err error, env config.Environment, ec config.EnvironmentConfig) *Error {
	kind := kindOf(err)

	var hint string
	switch kind {
	case AccessDenied:
		hint = fmt.Sprintf("Incorrect credentials. Check %[1]s_DB_USER and %[1]s_DB_PASSWORD in the .env file.", envKey(env))
	case DatabaseMissing:
		hint = fmt.Sprintf("Database %q does not exist on this server.", ec.DBName)
	case Unreachable:
		if errors.Is(err, tunnel.ErrToolingUnavailable) {
			hint = "kubectl is required for the tunnel. Install it or set KUBECTL_PATH."
		} else {
			hint = "Cannot reach the server through the tunnel."
		}
	case Timeout:
		hint = "The server is not responding (timeout). Try again."
	default:
		hint = err.Error()
	}

	return &Error{Kind: kind, Environment: env, Hint: hint, Err: err}
}

func kindOf(err error) Kind {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erAccessDenied, erDBAccessDenied:
			return AccessDenied
		case erBadDB:
			return DatabaseMissing
		}
		return Unknown
	}

	switch {
	case errors.Is(err, tunnel.ErrTunnelTimeout):
		return Timeout
	case errors.Is(err, tunnel.ErrToolingUnavailable), errors.Is(err, tunnel.ErrTunnelSetupFailed):
		return Unreachable
	case errors.Is(err, syscall.ECONNREFUSED):
		return Unreachable
	case errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, driver.ErrInvalidConn):
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unknown
}

func envKey(env config.Environment) string {
	if env.IsProduction() {
		return "PRODUCTION"
	}
	return "STAGING"
}
