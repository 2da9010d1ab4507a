// Package taskid implements the task-id and branch-name grammar from
// spec §3/§8: a 12-digit timestamp plus a random suffix drawn from a
// Crockford-like alphabet, and the derived task-branch naming scheme.
package taskid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Alphabet excludes visually ambiguous characters (I, L, O, U), matching
// the regex in spec §3/§6.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// DefaultSuffixLength is used when a config does not override it.
const DefaultSuffixLength = 6

// MinSuffixLength and MaxSuffixLength bound the configurable suffix length.
const (
	MinSuffixLength = 4
	MaxSuffixLength = 12
)

var idPattern = regexp.MustCompile(`^\d{12}-[0-9A-HJKMNPQRSTVWXYZ]{4,}$`)

// Valid reports whether id matches the task-id grammar.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}

// Suffix returns the segment after the last "-" in a task id: the
// human-facing short id used in commit subjects.
func Suffix(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

// Generate draws a new id: the current UTC timestamp (YYYYMMDDhhmm) plus
// a cryptographically random suffix of the given length.
func Generate(length int) (string, error) {
	if length < MinSuffixLength {
		length = DefaultSuffixLength
	}
	if length > MaxSuffixLength {
		length = MaxSuffixLength
	}
	stamp := time.Now().UTC().Format("200601021504")
	suffix, err := randomSuffix(length)
	if err != nil {
		return "", err
	}
	return stamp + "-" + suffix, nil
}

// GenerateUnique draws ids until one is absent from exists, bounded by
// attempts (§4.3 GenerateTaskId).
func GenerateUnique(length, attempts int, exists func(id string) bool) (string, error) {
	if attempts <= 0 {
		attempts = 20
	}
	for i := 0; i < attempts; i++ {
		id, err := Generate(length)
		if err != nil {
			return "", err
		}
		if !exists(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate task id: exhausted %d attempts without a unique id", attempts)
}

func randomSuffix(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(Alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw random suffix char: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Slug normalizes free text into the kebab-cased branch-name slug
// segment: lowercased, non-alphanumerics collapsed to single dashes, no
// leading/trailing dashes, falling back to "work" when empty.
//
// Uses gosimple/slug (domain stack) instead of the teacher's hand-rolled
// slugify in internal/storage/file.go — same idea, shared library.
func Slug(text string) string {
	s := slug.Make(strings.TrimSpace(text))
	s = strings.Trim(s, "-")
	if s == "" {
		return "work"
	}
	return s
}

// BranchPattern compiles the task-branch regex for a given prefix:
// ^<prefix>/\d{12}-[0-9A-HJKMNPQRSTVWXYZ]{4,}/[^/]+$
func BranchPattern(prefix string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(prefix)
	return regexp.MustCompile(`^` + escaped + `/\d{12}-[0-9A-HJKMNPQRSTVWXYZ]{4,}/[^/]+$`)
}

// BranchName builds "${prefix}/<task-id>/<slug>".
func BranchName(prefix, id, freeText string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, id, Slug(freeText))
}

// WorktreeDirName builds "<task-id>-<slug>" for the worktrees directory.
func WorktreeDirName(id, freeText string) string {
	return fmt.Sprintf("%s-%s", id, Slug(freeText))
}
