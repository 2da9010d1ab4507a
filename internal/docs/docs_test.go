package docs

import (
	"strings"
	"testing"
)

func TestMissingRequiredSections(t *testing.T) {
	body := `## Summary

Did the thing.

## Scope

...

## Risks

- none known

## Verify Steps

todo

## Rollback Plan

Revert the commit.
`
	required := []string{"Summary", "Scope", "Risks", "Verify Steps", "Rollback Plan"}
	missing := MissingRequiredSections(body, required)
	want := map[string]bool{"Scope": true, "Verify Steps": true}
	if len(missing) != len(want) {
		t.Fatalf("missing = %v, want keys of %v", missing, want)
	}
	for _, m := range missing {
		if !want[m] {
			t.Errorf("unexpected missing section %q", m)
		}
	}
}

func TestMergeDoc_PreservesPrefixAndAutoSummary(t *testing.T) {
	existing := "Some frontmatter-adjacent prefix.\n\n" + SummaryHeading + "\n\nold doc\n\n" +
		AutoSummaryHeading + "\n\n" + AutoSummaryBegin + "\n- `a.go`\n" + AutoSummaryEnd + "\n"

	merged := MergeDoc(existing, "new doc body")

	if !strings.HasPrefix(merged, "Some frontmatter-adjacent prefix.") {
		t.Error("prefix was not preserved")
	}
	if !strings.Contains(merged, "new doc body") {
		t.Error("new doc was not applied")
	}
	if strings.Contains(merged, "old doc") {
		t.Error("old doc should have been replaced")
	}
	if !strings.Contains(merged, "- `a.go`") {
		t.Error("auto-summary block should be preserved verbatim")
	}
}

func TestReplaceAutoSummary(t *testing.T) {
	body := SummaryHeading + "\n\nmy doc\n\n" + AutoSummaryHeading + "\n\n" +
		AutoSummaryBegin + "\n- (no file changes)\n" + AutoSummaryEnd + "\n"

	out := ReplaceAutoSummary(body, []string{"a.go", "b.go"})

	if !strings.Contains(out, "my doc") {
		t.Error("doc content should be preserved")
	}
	if !strings.Contains(out, "- `a.go`") || !strings.Contains(out, "- `b.go`") {
		t.Error("auto-summary should list the new changed paths")
	}
}

func TestRenderAutoSummary_CapsAtTwenty(t *testing.T) {
	paths := make([]string, 25)
	for i := range paths {
		paths[i] = "file.go"
	}
	out := RenderAutoSummary(paths)
	if strings.Count(out, "- `file.go`") != MaxAutoSummaryPaths {
		t.Errorf("expected %d entries, got %d", MaxAutoSummaryPaths, strings.Count(out, "- `file.go`"))
	}
}

func TestParseHandoffNotes(t *testing.T) {
	body := `# Review

## Handoff Notes

- REVIEWER: (pending)
- INTEGRATOR: looks good, verified locally
- QA: ...
`
	notes := ParseHandoffNotes(body)
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1: %+v", len(notes), notes)
	}
	if notes[0].Author != "INTEGRATOR" || notes[0].Body != "looks good, verified locally" {
		t.Errorf("unexpected note: %+v", notes[0])
	}
}

func TestHandoffDigest_StableAndDistinct(t *testing.T) {
	a := []HandoffNote{{Author: "INTEGRATOR", Body: "ok"}}
	b := []HandoffNote{{Author: "INTEGRATOR", Body: "ok"}}
	c := []HandoffNote{{Author: "INTEGRATOR", Body: "not ok"}}

	if HandoffDigest(a) != HandoffDigest(b) {
		t.Error("identical notes should produce identical digests")
	}
	if HandoffDigest(a) == HandoffDigest(c) {
		t.Error("different notes should produce different digests")
	}
}
