package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// VerifyEntry is one captured verify-log entry: a header and an output
// entry per command, plus the trailing verified_sha line on success.
type VerifyEntry struct {
	Line string
}

// VerifyResult is the outcome of a verify run.
type VerifyResult struct {
	Skipped bool
	Entries []VerifyEntry
	HeadSHA string
}

// RunVerify executes a task's declared verify commands in sequence
// (spec §4.5 "Verify execution"), in workDir (defaulting to the repo
// toplevel), timestamping each entry `[iso8601] sha=<head> $ <cmd>`.
// The first failing command terminates the run and its error
// propagates. When prDir is non-empty and its last recorded verified
// sha matches HEAD, the run is skipped and a single "skipped" entry is
// recorded instead of invoking any shell command.
func (e *Engine) RunVerify(ctx context.Context, t store.Task, workDir, prDir string) (VerifyResult, error) {
	head, err := e.Git.RevParse(ctx, "HEAD")
	if err != nil {
		return VerifyResult{}, errs.Wrap(errs.KindGit, err, "resolve HEAD")
	}

	if prDir != "" {
		if last, ok := docs.LastVerifiedSHA(prDir); ok && last == head {
			entry := VerifyEntry{Line: fmt.Sprintf("[%s] sha=%s skipped (already verified)", e.now().UTC().Format(time.RFC3339), head)}
			if err := docs.AppendVerifyLine(prDir, entry.Line); err != nil {
				return VerifyResult{}, err
			}
			return VerifyResult{Skipped: true, Entries: []VerifyEntry{entry}, HeadSHA: head}, nil
		}
	}

	dir := workDir
	if dir == "" {
		dir = e.Git.Dir
	}

	var entries []VerifyEntry
	for _, command := range t.Verify {
		stamp := e.now().UTC().Format(time.RFC3339)
		header := fmt.Sprintf("[%s] sha=%s $ %s", stamp, head, command)
		entries = append(entries, VerifyEntry{Line: header})
		if prDir != "" {
			if err := docs.AppendVerifyLine(prDir, header); err != nil {
				return VerifyResult{Entries: entries, HeadSHA: head}, err
			}
		}

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = dir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		runErr := cmd.Run()
		output := out.String()
		entries = append(entries, VerifyEntry{Line: output})
		if prDir != "" && output != "" {
			if err := docs.AppendVerifyLine(prDir, output); err != nil {
				return VerifyResult{Entries: entries, HeadSHA: head}, err
			}
		}
		if runErr != nil {
			return VerifyResult{Entries: entries, HeadSHA: head},
				errs.Wrap(errs.KindState, runErr, "verify command failed for task %s: %s", t.ID, command)
		}
	}

	doneLine := fmt.Sprintf("verified_sha=%s", head)
	entries = append(entries, VerifyEntry{Line: doneLine})
	if prDir != "" {
		if err := docs.AppendVerifyLine(prDir, doneLine); err != nil {
			return VerifyResult{Entries: entries, HeadSHA: head}, err
		}
		meta, err := docs.ReadMeta(prDir)
		if err == nil {
			meta.LastVerifiedSHA = head
			meta.LastVerifiedAt = e.now().UTC().Format(time.RFC3339)
			if werr := docs.WriteMeta(prDir, meta); werr != nil {
				return VerifyResult{Entries: entries, HeadSHA: head}, werr
			}
		}
	}

	return VerifyResult{Entries: entries, HeadSHA: head}, nil
}
