package docs

import (
	"fmt"
	"strings"
)

// SummaryHeading and AutoSummaryHeading delimit the three regions of a
// task README body: prefix, doc/summary, auto-managed changes summary.
const (
	SummaryHeading     = "## Summary"
	AutoSummaryBegin   = "<!-- BEGIN AUTO SUMMARY -->"
	AutoSummaryEnd     = "<!-- END AUTO SUMMARY -->"
	AutoSummaryHeading = "## Changes Summary (auto)"
)

// MaxAutoSummaryPaths bounds the auto-summary changed-path listing.
const MaxAutoSummaryPaths = 20

// MergeDoc merges a new doc ("## Summary" body) into an existing README
// body, per spec §4.4:
//   - any prefix text before "## Summary" is preserved verbatim
//   - the doc block up to the next "## Changes Summary (auto)" header is replaced
//   - the auto-summary block is preserved verbatim unless replaced explicitly
func MergeDoc(existing, newDoc string) string {
	prefix, _, autoBlock := splitBody(existing)
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(SummaryHeading)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(newDoc))
	b.WriteString("\n\n")
	b.WriteString(autoBlock)
	return b.String()
}

// splitBody divides a README body into (prefix-before-Summary,
// doc-between-Summary-and-AutoSummary, auto-summary-section-onward).
func splitBody(body string) (prefix, doc, autoSection string) {
	sIdx := strings.Index(body, SummaryHeading)
	if sIdx < 0 {
		// No Summary header yet: everything is prefix, no doc or auto block.
		return body, "", ""
	}
	prefix = body[:sIdx]

	rest := body[sIdx+len(SummaryHeading):]
	aIdx := strings.Index(rest, AutoSummaryHeading)
	if aIdx < 0 {
		return prefix, strings.TrimSpace(rest), ""
	}
	doc = strings.TrimSpace(rest[:aIdx])
	autoSection = rest[aIdx:]
	return prefix, doc, autoSection
}

// RenderAutoSummary builds the "## Changes Summary (auto)" section body
// for the given changed paths, capped at MaxAutoSummaryPaths.
func RenderAutoSummary(changedPaths []string) string {
	var b strings.Builder
	b.WriteString(AutoSummaryHeading)
	b.WriteString("\n\n")
	b.WriteString(AutoSummaryBegin)
	b.WriteString("\n")
	if len(changedPaths) == 0 {
		b.WriteString("- (no file changes)\n")
	} else {
		n := len(changedPaths)
		if n > MaxAutoSummaryPaths {
			n = MaxAutoSummaryPaths
		}
		for _, p := range changedPaths[:n] {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
	}
	b.WriteString(AutoSummaryEnd)
	b.WriteString("\n")
	return b.String()
}

// ReplaceAutoSummary rewrites the body's auto-summary section with a
// fresh render over changedPaths, leaving the prefix and doc untouched.
func ReplaceAutoSummary(body string, changedPaths []string) string {
	prefix, doc, _ := splitBody(body)
	var b strings.Builder
	b.WriteString(prefix)
	if doc != "" || strings.Contains(body, SummaryHeading) {
		b.WriteString(SummaryHeading)
		b.WriteString("\n\n")
		b.WriteString(doc)
		b.WriteString("\n\n")
	}
	b.WriteString(RenderAutoSummary(changedPaths))
	return b.String()
}

// Doc extracts the current "## Summary" content (the task's doc field).
func Doc(body string) string {
	_, doc, _ := splitBody(body)
	return doc
}
