// Package frontmatter implements the self-contained, minimalist
// YAML-like block described in spec §6 and §9: scalars, inline lists
// and maps, and block lists, delimited by "---" lines. It is
// deliberately not a general YAML parser — keeping task-document
// round-trips stable is more important than accepting arbitrary YAML,
// and a hand-rolled subset avoids a runtime dependency for a format the
// core fully controls (the one case in this repo where the corpus's
// "always prefer a library" rule does not apply: spec §9 explicitly
// calls for a bespoke parser here, not gopkg.in/yaml.v3, because round
// trip stability of a close, tool-owned subset matters more than
// accepting arbitrary YAML authored by a human).
package frontmatter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Delimiter is the frontmatter fence.
const Delimiter = "---"

// Value is the dynamic value type produced by Parse: nil, bool, int64,
// float64, string, []Value, or map[string]Value (a Go map, so unordered;
// Render takes the key order as an argument).
type Value = any

// Split separates a leading frontmatter block from the remaining body.
// If the document does not open with a "---" fence, the whole input is
// returned as body with an empty frontmatter map.
func Split(doc string) (fm map[string]Value, body string, err error) {
	lines := strings.Split(doc, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != Delimiter {
		return map[string]Value{}, doc, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == Delimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, "", fmt.Errorf("frontmatter: unterminated %q block", Delimiter)
	}

	fm, err = Parse(strings.Join(lines[1:end], "\n"))
	if err != nil {
		return nil, "", err
	}
	body = strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")
	return fm, body, nil
}

// Parse parses the body of a frontmatter block (without the "---"
// fences) into a map, supporting:
//   - scalars: bool, null, int, float, bare string, JSON-escaped string
//   - inline lists: key: [a, b, c]
//   - inline maps: key: { a: 1, b: 2 }
//   - block lists: key:\n  - item\n  - item
func Parse(block string) (map[string]Value, error) {
	lines := strings.Split(block, "\n")
	result := map[string]Value{}

	i := 0
	for i < len(lines) {
		raw := lines[i]
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			i++
			continue
		}

		key, rest, ok := splitKeyValue(trimmed)
		if !ok {
			return nil, fmt.Errorf("frontmatter: malformed line %q", raw)
		}

		if rest == "" {
			// Possibly a block list on following indented "- " lines.
			items, consumed := parseBlockList(lines, i+1)
			if consumed > 0 {
				result[key] = items
				i += 1 + consumed
				continue
			}
			result[key] = nil
			i++
			continue
		}

		val, err := parseScalarOrInline(rest)
		if err != nil {
			return nil, fmt.Errorf("frontmatter: key %q: %w", key, err)
		}
		result[key] = val
		i++
	}

	return result, nil
}

func splitKeyValue(trimmed string) (key, rest string, ok bool) {
	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	if key == "" {
		return "", "", false
	}
	rest = strings.TrimSpace(trimmed[idx+1:])
	return key, rest, true
}

func parseBlockList(lines []string, start int) ([]Value, int) {
	var items []Value
	consumed := 0
	for i := start; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			consumed++
			continue
		}
		if !strings.HasPrefix(lines[i], "  ") || !strings.HasPrefix(trimmed, "- ") && trimmed != "-" {
			break
		}
		item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		val, err := parseScalarOrInline(item)
		if err != nil {
			val = item
		}
		items = append(items, val)
		consumed++
	}
	return items, consumed
}

func parseScalarOrInline(s string) (Value, error) {
	switch {
	case s == "null" || s == "~" || s == "":
		return nil, nil
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		return parseInlineList(s)
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		return parseInlineMap(s)
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return nil, fmt.Errorf("invalid quoted string %q: %w", s, err)
		}
		return str, nil
	default:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
		return strings.Trim(s, "'"), nil
	}
}

func parseInlineList(s string) ([]Value, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []Value{}, nil
	}
	parts := splitTopLevel(inner, ',')
	items := make([]Value, 0, len(parts))
	for _, p := range parts {
		val, err := parseScalarOrInline(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}
	return items, nil
}

func parseInlineMap(s string) (map[string]Value, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	result := map[string]Value{}
	if inner == "" {
		return result, nil
	}
	parts := splitTopLevel(inner, ',')
	for _, p := range parts {
		key, rest, ok := splitKeyValue(strings.TrimSpace(p))
		if !ok {
			return nil, fmt.Errorf("malformed inline map entry %q", p)
		}
		val, err := parseScalarOrInline(rest)
		if err != nil {
			return nil, err
		}
		result[key] = val
	}
	return result, nil
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// [...]/{...}/"...".
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '[', '{':
			if !inQuote {
				depth++
			}
		case ']', '}':
			if !inQuote {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 && !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Render serializes a map back into a frontmatter block (without the
// fences), writing keys in the order given by keys, falling back to a
// sorted key order for any key present in m but absent from keys.
func Render(m map[string]Value, keys []string) string {
	seen := map[string]bool{}
	var b strings.Builder
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		seen[k] = true
		renderEntry(&b, k, v)
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		renderEntry(&b, k, m[k])
	}
	return b.String()
}

func renderEntry(b *strings.Builder, key string, v Value) {
	switch val := v.(type) {
	case []Value:
		if len(val) == 0 {
			fmt.Fprintf(b, "%s: []\n", key)
			return
		}
		fmt.Fprintf(b, "%s:\n", key)
		for _, item := range val {
			fmt.Fprintf(b, "  - %s\n", renderScalar(item))
		}
	case map[string]Value:
		fmt.Fprintf(b, "%s: %s\n", key, renderInlineMap(val))
	default:
		fmt.Fprintf(b, "%s: %s\n", key, renderScalar(val))
	}
}

func renderInlineMap(m map[string]Value) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, renderScalar(m[k])))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func renderScalar(v Value) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		if needsQuoting(val) {
			data, _ := json.Marshal(val)
			return string(data)
		}
		return val
	default:
		data, _ := json.Marshal(val)
		return string(data)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if s == "true" || s == "false" || s == "null" || s == "~" {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	for _, r := range []string{":", "#", "[", "]", "{", "}", "\n"} {
		if strings.Contains(s, r) {
			return true
		}
	}
	return strings.TrimSpace(s) != s
}
