package workflow

import (
	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

// enforceStatusCommitPolicy gates a status/comment-driven commit
// (start/block/finish's commit-from-comment path) against
// status_commit_policy (spec §3/§9): allow lets it through silently,
// warn returns a message the caller should surface unless already
// confirmed, confirm blocks outright without confirmation. Matches
// original_source/.codex-swarm/agentctl.py:1129 ("enforce_status_commit_policy").
func enforceStatusCommitPolicy(policy config.CommentPolicy, action string, confirmed bool) (warning string, err error) {
	switch policy {
	case config.PolicyAllow, "":
		return "", nil
	case config.PolicyWarn:
		if confirmed {
			return "", nil
		}
		return action + ": status/comment-driven commit requested; policy=warn (pass --confirm-status-commit to acknowledge)", nil
	case config.PolicyConfirm:
		if confirmed {
			return "", nil
		}
		return "", errs.New(errs.KindState,
			"%s: status/comment-driven commit blocked by status_commit_policy=confirm (pass --confirm-status-commit to proceed)", action)
	default:
		return "", errs.New(errs.KindConfiguration, "unknown status_commit_policy %q", policy)
	}
}
