package errs

import "errors"

// Sentinel errors for conditions callers need to match with errors.Is,
// mirroring the teacher's internal/rpi/errors.go sentinel style.
var (
	// ErrCycle is returned when the dependency graph contains a cycle.
	ErrCycle = errors.New("dependency graph contains a cycle")

	// ErrChecksumMismatch is returned when the on-disk meta.checksum does
	// not match the recomputed checksum of the tasks array.
	ErrChecksumMismatch = errors.New("task store checksum mismatch: store was edited outside agentctl")

	// ErrDuplicateTaskID is returned when two tasks share an id.
	ErrDuplicateTaskID = errors.New("duplicate task id in store")

	// ErrTaskNotFound is returned when a task id does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotReady is returned when a transition is attempted on a task
	// whose dependencies are not all DONE with a valid commit.
	ErrNotReady = errors.New("task is not ready: incomplete dependencies")

	// ErrInvalidTransition is returned for a disallowed status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrWriteContext is returned when a mutating tasks-store operation
	// is attempted from a task worktree or off the base branch.
	ErrWriteContext = errors.New("refusing tasks.json write: not in tasks-write context")

	// ErrUnsupportedCapability is returned when the active backend does
	// not implement an operation the caller requested.
	ErrUnsupportedCapability = errors.New("backend does not support this operation")

	// ErrPathEscape is returned when a configured path resolves outside
	// the repository root.
	ErrPathEscape = errors.New("path escapes repository root")

	// ErrDirtyTree is returned when a clean working tree is required.
	ErrDirtyTree = errors.New("working tree is not clean")

	// ErrHookNotManaged is returned when installing over a hook script
	// that lacks the managed-hook marker.
	ErrHookNotManaged = errors.New("refusing to overwrite non-managed git hook")

	// ErrDuplicateRemoteTaskID is returned when the remote tracker
	// already has an issue for a task_id being created.
	ErrDuplicateRemoteTaskID = errors.New("duplicate task_id in remote tracker")
)
