// Package policy implements Commit Policy & Hooks (spec §4.6): commit
// subject rules, emoji inference, allow/denylist enforcement with
// glob-aware prefixes, commit-from-comment normalization, and managed
// git hook installation.
package policy

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// DefaultGenericTokens is the built-in "too generic to be meaningful"
// token set (spec §4.6). SubjectCheck always applies it;
// config.Commit.GenericTokens adds to it and cannot remove any of these.
var DefaultGenericTokens = []string{
	"start", "status", "mark", "done", "wip", "update", "tasks", "task",
	"fix", "changes", "stuff",
}

// emojiRules maps keyword groups to their commit emoji (spec §4.6). The
// first matching rule, in declaration order, wins.
var emojiRules = []struct {
	emoji    string
	keywords []string
}{
	{"🚑", []string{"hotfix", "urgent"}},
	{"🐛", []string{"fix", "bug"}},
	{"⚡", []string{"perf", "performance", "speed"}},
	{"🧪", []string{"test", "tests"}},
	{"📝", []string{"docs", "doc", "documentation"}},
	{"♻️", []string{"refactor", "cleanup"}},
	{"⛔", []string{"blocked", "block"}},
	{"📦", []string{"deps", "dependency", "dependencies"}},
}

// InferEmoji picks an emoji for a commit from the task status and
// comment body (spec §4.6): DOING defaults to 🚧, DONE to ✅, everything
// else derived from keywords in body, falling back to 🔧.
func InferEmoji(status, body string) string {
	switch status {
	case "DOING":
		return "🚧"
	case "DONE":
		return "✅"
	}
	lower := strings.ToLower(body)
	for _, rule := range emojiRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.emoji
			}
		}
	}
	return "🔧"
}

// SubjectCheck validates a commit subject against spec §4.6's rules:
// every listed task suffix must appear, and the subject must contain a
// meaningful token beyond the ids/suffixes and the generic-token set.
func SubjectCheck(subject string, taskIDs []string, genericTokens []string) error {
	lower := strings.ToLower(subject)

	for _, id := range taskIDs {
		suffix := strings.ToLower(taskid.Suffix(id))
		if !strings.Contains(lower, suffix) {
			return errs.New(errs.KindInput, "commit subject must mention task suffix %q", taskid.Suffix(id))
		}
	}

	generic := map[string]bool{}
	for _, tok := range genericTokens {
		generic[strings.ToLower(tok)] = true
	}
	for _, tok := range DefaultGenericTokens {
		generic[tok] = true
	}
	for _, id := range taskIDs {
		generic[strings.ToLower(taskid.Suffix(id))] = true
	}

	meaningful := false
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,:;!?()[]{}`'\"")
		if word == "" || generic[word] || isEmojiToken(word) {
			continue
		}
		meaningful = true
		break
	}
	if !meaningful {
		return errs.New(errs.KindInput, "commit subject %q has no meaningful token beyond ids and generic words", subject)
	}
	return nil
}

func isEmojiToken(word string) bool {
	for _, r := range word {
		if r > 0x2000 {
			return true
		}
	}
	return false
}

// NormalizeCommentCommit builds the one-line "summary | details: …"
// commit message from a raw comment (spec §4.6 "Commit-from-comment").
// subject is the inferred emoji, the task suffix and the comment's first
// line; full appends " | details: " and the remaining lines joined into
// one line, or equals subject when the comment has a single line.
func NormalizeCommentCommit(status, taskID, body string) (subject, full string) {
	emoji := InferEmoji(status, body)
	suffix := taskid.Suffix(taskID)

	lines := strings.SplitN(strings.TrimSpace(body), "\n", 2)
	summary := strings.TrimSpace(lines[0])
	var details string
	if len(lines) > 1 {
		details = strings.TrimSpace(lines[1])
	}

	subject = fmt.Sprintf("%s %s %s", emoji, suffix, summary)
	if details == "" {
		full = subject
	} else {
		full = fmt.Sprintf("%s | details: %s", subject, strings.Join(strings.Fields(details), " "))
	}
	return subject, full
}

// MatchesAnyPrefix reports whether path is a descendant of (or equal
// to) any allow prefix, supporting doublestar glob patterns in
// prefixes (spec §4.6 allowlist).
func MatchesAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
		if ok, _ := doublestar.Match(prefix, path); ok {
			return true
		}
	}
	return false
}

// AutoAllowPrefixes derives allow-prefixes from staged files: each
// file's directory, or the file itself when at repo root, deduplicated
// (spec §4.6 "auto-allow").
func AutoAllowPrefixes(stagedFiles []string) []string {
	seen := map[string]bool{}
	var prefixes []string
	for _, f := range stagedFiles {
		dir := dirOf(f)
		if !seen[dir] {
			seen[dir] = true
			prefixes = append(prefixes, dir)
		}
	}
	return prefixes
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[:idx]
}
