package store

import "fmt"

// LintIssue is a single finding from Lint.
type LintIssue struct {
	TaskID  string
	Message string
}

// LintReport is the result of Lint: issues plus any detected cycles.
type LintReport struct {
	Issues []LintIssue
	Cycles []Cycle
}

func (r LintReport) Clean() bool { return len(r.Issues) == 0 && len(r.Cycles) == 0 }

// Lint checks every rule in spec §4.3: schema types and status enum
// (already enforced by Task.Validate), required title/description,
// owner against knownAgents (plus the HUMAN/ORCHESTRATOR special case),
// verify-required tags, DONE commit validity, DOING/DONE readiness, and
// on-disk checksum drift.
func Lint(doc Document, requiredTags []string, knownAgents map[string]bool) LintReport {
	var issues []LintIssue
	add := func(id, format string, args ...any) {
		issues = append(issues, LintIssue{TaskID: id, Message: fmt.Sprintf(format, args...)})
	}

	if ok, err := VerifyChecksum(doc); err != nil {
		add("", "compute checksum: %v", err)
	} else if !ok {
		add("", "meta.checksum does not match recomputed checksum: store was edited outside agentctl")
	}

	depStates, cycles := DependencyState(doc.Tasks)

	for _, t := range doc.Tasks {
		if err := t.Validate(requiredTags); err != nil {
			add(t.ID, "%v", err)
		}

		if t.Owner != "" && !specialOwners[t.Owner] && knownAgents != nil && !knownAgents[t.Owner] {
			add(t.ID, "owner %q is not a known agent id", t.Owner)
		}

		if t.Status == StatusDone && !t.Commit.Valid() {
			add(t.ID, "status DONE requires a valid commit")
		}

		if t.Status == StatusDOING || t.Status == StatusDone {
			if state, ok := depStates[t.ID]; ok && !state.Ready {
				add(t.ID, "status %s requires all dependencies present and DONE (missing=%v incomplete=%v)",
					t.Status, state.Missing, state.Incomplete)
			}
		}
	}

	return LintReport{Issues: issues, Cycles: cycles}
}
