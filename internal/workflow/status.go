package workflow

import (
	"context"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// allowedTransitions is the state machine from spec §4.5. Same-state
// transitions are always permitted as no-ops and are not listed here;
// callers check s == to separately.
var allowedTransitions = map[store.Status][]store.Status{
	store.StatusTODO:    {store.StatusDOING, store.StatusBlocked},
	store.StatusDOING:   {store.StatusDone, store.StatusBlocked},
	store.StatusBlocked: {store.StatusTODO, store.StatusDOING},
	store.StatusDone:    {},
}

// canTransition reports whether from->to is permitted by the state
// machine, including the same-state no-op case.
func canTransition(from, to store.Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// checkTransition validates a non-same-state transition, returning a
// state error naming the disallowed move.
func checkTransition(from, to store.Status) error {
	if !canTransition(from, to) {
		return errs.Wrap(errs.KindState, errs.ErrInvalidTransition, "cannot transition task from %s to %s", from, to)
	}
	return nil
}

// commentKind names which structured-comment rule (spec §4.5) applies.
type commentKind string

const (
	commentStart    commentKind = "start"
	commentBlocked  commentKind = "blocked"
	commentVerified commentKind = "verified"
)

// checkStructuredComment enforces the configured prefix and minimum
// character count for start/block/finish comment bodies (spec §4.5
// "Structured comments").
func checkStructuredComment(cfg *config.Config, kind commentKind, body string) error {
	rule, ok := cfg.Tasks.Comments[string(kind)]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(body)
	if rule.Prefix != "" && !strings.HasPrefix(trimmed, rule.Prefix) {
		return errs.New(errs.KindState, "%s comment must begin with %q", kind, rule.Prefix)
	}
	if len(trimmed) < rule.MinChars {
		return errs.New(errs.KindState, "%s comment must be at least %d characters (got %d)", kind, rule.MinChars, len(trimmed))
	}
	return nil
}

// readiness reports whether t is ready to transition into DOING/DONE:
// every declared dependency is present, DONE, and carries a valid
// commit (spec §4.5 "readiness").
func readiness(tasks []store.Task, taskID string) (store.TaskDepState, bool) {
	states, _ := store.DependencyState(tasks)
	state, ok := states[taskID]
	return state, ok && state.Ready
}

// Readiness exposes the readiness check (spec §4.5 "ready") for the
// CLI's standalone `ready` verb, independent of any transition.
func (e *Engine) Readiness(ctx context.Context, taskID string) (store.TaskDepState, bool, error) {
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return store.TaskDepState{}, false, err
	}
	state, ready := readiness(tasks, taskID)
	return state, ready, nil
}
