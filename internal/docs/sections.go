// Package docs implements the Doc & Artifact Manager (spec §4.4):
// README frontmatter/body merging, required-section validation shared
// between doc writes and PR checks, PR artifact skeleton management,
// and the handoff-notes parser. It never depends on the store package
// so that store can depend on it for README persistence without a
// cycle.
package docs

import (
	"regexp"
	"strings"
)

var headingPattern = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)

// placeholders are body lines that do not count toward "has
// content" when validating required sections (spec §4.4).
var placeholders = map[string]bool{
	"":     true,
	"...":  true,
	"tbd":  true,
	"todo": true,
}

func isPlaceholder(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	trimmed = strings.TrimPrefix(trimmed, "-")
	trimmed = strings.TrimSpace(trimmed)
	if placeholders[trimmed] {
		return true
	}
	if trimmed == "" {
		return true
	}
	allDots := true
	for _, r := range trimmed {
		if r != '.' {
			allDots = false
			break
		}
	}
	return allDots
}

// Sections splits body into an ordered map of "## Heading" -> content,
// keyed by heading text, preserving first-seen order via the returned
// order slice.
func Sections(body string) (order []string, content map[string]string) {
	content = map[string]string{}
	matches := headingPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return nil, content
	}
	for i, m := range matches {
		name := body[m[2]:m[3]]
		start := m[1]
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		order = append(order, name)
		content[name] = strings.TrimSpace(body[start:end])
	}
	return order, content
}

// MissingRequiredSections reports which of required are absent or
// contain only placeholder lines (spec §4.4, shared by doc writes and
// PR checks).
func MissingRequiredSections(body string, required []string) []string {
	_, content := Sections(body)
	var missing []string
	for _, name := range required {
		section, ok := content[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !hasRealContent(section) {
			missing = append(missing, name)
		}
	}
	return missing
}

func hasRealContent(section string) bool {
	for _, line := range strings.Split(section, "\n") {
		if !isPlaceholder(line) {
			return true
		}
	}
	return false
}
