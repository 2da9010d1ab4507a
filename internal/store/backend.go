package store

import (
	"context"
	"fmt"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

// Capability names one operation a backend may or may not implement
// (spec §4.3 "a dynamic capability check at load time").
type Capability string

const (
	CapListTasks              Capability = "list_tasks"
	CapWriteTask               Capability = "write_task"
	CapWriteTasks              Capability = "write_tasks"
	CapExport                  Capability = "export"
	CapGetTaskDoc               Capability = "get_task_doc"
	CapSetTaskDoc               Capability = "set_task_doc"
	CapTouchTaskDocMetadata     Capability = "touch_task_doc_metadata"
	CapNormalize                Capability = "normalize"
	CapSync                     Capability = "sync"
)

// Backend is the capability set both the Local and Remote
// implementations satisfy (spec §4.3). Callers probe Capabilities()
// before invoking an operation and surface errs.ErrUnsupportedCapability
// for anything the active backend does not implement.
type Backend interface {
	Capabilities() map[Capability]bool

	ListTasks(ctx context.Context) ([]Task, error)
	WriteTask(ctx context.Context, t Task) error
	WriteTasks(ctx context.Context, tasks []Task) error

	GetTaskDoc(ctx context.Context, id string) (string, error)
	SetTaskDoc(ctx context.Context, id, by, text string) error
	TouchTaskDocMetadata(ctx context.Context, id, by string) error

	NormalizeTasks(ctx context.Context) error
	ExportTasksJSON(ctx context.Context, path string) error

	GenerateTaskID(ctx context.Context, length, attempts int) (string, error)
}

// requireCapability is the shared guard every backend method calls
// before doing work it does not support.
func requireCapability(caps map[Capability]bool, c Capability) error {
	if caps[c] {
		return nil
	}
	return unsupportedCapabilityError(c)
}

func unsupportedCapabilityError(c Capability) error {
	return errs.Wrap(errs.KindState, errs.ErrUnsupportedCapability, "%s", fmt.Sprintf("capability %q", c))
}
