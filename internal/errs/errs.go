// Package errs defines the typed error kinds shared by every core
// subsystem (§7). Every mutating operation returns either nil or an
// *Error so the CLI boundary can map it to an exit code without
// re-deriving "what kind of failure was this" from string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way §7 of the workflow-state engine
// contract does. The CLI boundary uses Kind to pick an exit code and a
// remediation hint; subsystems use it to decide whether a failure is
// retryable (RemoteError) or terminal.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInput         Kind = "input"
	KindState         Kind = "state"
	KindContext       Kind = "context"
	KindGit           Kind = "git"
	KindIntegrity     Kind = "integrity"
	KindRemote        Kind = "remote"
	KindHook          Kind = "hook"
)

// ExitCode returns the process exit code associated with a Kind.
// Policy/validation failures exit 2; everything else passes through
// whatever the underlying tool reported (defaulting to 1).
func (k Kind) ExitCode() int {
	switch k {
	case KindInput, KindState, KindConfiguration, KindContext:
		return 2
	default:
		return 1
	}
}

// Error wraps a failure with its Kind, a short actionable message, the
// underlying cause (if any), and operating context for the "Context"
// footer every non-transient error carries per §7.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Context *Footer

	// exitCode overrides Kind.ExitCode() when a Git/shell subprocess's
	// own return code must pass through verbatim.
	exitCode int
}

// Footer is the "resolved repo root, relative cwd, current branch,
// workflow mode" block every non-transient error attaches.
type Footer struct {
	RepoRoot string
	Cwd      string
	Branch   string
	Mode     string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Context != nil {
		msg = fmt.Sprintf("%s\nContext: repo=%s cwd=%s branch=%s mode=%s",
			msg, e.Context.RepoRoot, e.Context.Cwd, e.Context.Branch, e.Context.Mode)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode resolves the process exit code for this error, honoring an
// explicit override (e.g. a passed-through Git subprocess return code)
// when one was set.
func (e *Error) ExitCode() int {
	if e.exitCode != 0 {
		return e.exitCode
	}
	return e.Kind.ExitCode()
}

// New builds a new *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a new *Error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithContext attaches the resolved-repo footer to an error in place
// and returns it for chaining.
func (e *Error) WithContext(f Footer) *Error {
	e.Context = &f
	return e
}

// WithExitCode overrides the exit code, used when a Git/shell
// subprocess's own return code must pass through verbatim.
func (e *Error) WithExitCode(code int) *Error {
	e.exitCode = code
	return e
}

// As allows errors.As(err, &target) against *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
