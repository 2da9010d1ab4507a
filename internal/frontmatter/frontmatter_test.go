package frontmatter

import (
	"strings"
	"testing"
)

func TestSplit_NoFrontmatter(t *testing.T) {
	fm, body, err := Split("just a body\nno fences here\n")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter, got %v", fm)
	}
	if !strings.Contains(body, "just a body") {
		t.Errorf("body mismatch: %q", body)
	}
}

func TestSplit_Unterminated(t *testing.T) {
	_, _, err := Split("---\nkey: value\n")
	if err == nil {
		t.Fatal("expected an error for an unterminated frontmatter block")
	}
}

func TestParse_ScalarsListsMaps(t *testing.T) {
	block := `id: 202501010000-ABCD
title: Fix the thing
status: DOING
priority: null
done: true
tags: [backend, urgent]
commit: { hash: abc1234, message: "fix it" }
depends_on:
  - 202501010000-AAAA
  - 202501010000-BBBB
`
	m, err := Parse(block)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if m["id"] != "202501010000-ABCD" {
		t.Errorf("id = %v", m["id"])
	}
	if m["status"] != "DOING" {
		t.Errorf("status = %v", m["status"])
	}
	if m["priority"] != nil {
		t.Errorf("priority = %v, want nil", m["priority"])
	}
	if m["done"] != true {
		t.Errorf("done = %v, want true", m["done"])
	}

	tags, ok := m["tags"].([]Value)
	if !ok || len(tags) != 2 || tags[0] != "backend" || tags[1] != "urgent" {
		t.Errorf("tags = %v", m["tags"])
	}

	commit, ok := m["commit"].(map[string]Value)
	if !ok || commit["hash"] != "abc1234" || commit["message"] != "fix it" {
		t.Errorf("commit = %v", m["commit"])
	}

	deps, ok := m["depends_on"].([]Value)
	if !ok || len(deps) != 2 || deps[0] != "202501010000-AAAA" {
		t.Errorf("depends_on = %v", m["depends_on"])
	}
}

func TestRoundTrip(t *testing.T) {
	original := map[string]Value{
		"id":     "202501010000-ABCD",
		"title":  "Fix the thing",
		"tags":   []Value{"backend", "urgent"},
		"commit": map[string]Value{"hash": "abc1234", "message": "fix it"},
	}
	keys := []string{"id", "title", "tags", "commit"}

	rendered := Render(original, keys)
	parsed, err := Parse(rendered)
	if err != nil {
		t.Fatalf("Parse(Render(...)): %v\n%s", err, rendered)
	}

	if parsed["id"] != original["id"] {
		t.Errorf("id round-trip: got %v, want %v", parsed["id"], original["id"])
	}
	if parsed["title"] != original["title"] {
		t.Errorf("title round-trip: got %v, want %v", parsed["title"], original["title"])
	}
}

func TestSplit_RoundTripsBody(t *testing.T) {
	doc := "---\nid: 202501010000-ABCD\n---\n\n## Summary\n\nHello\n"
	fm, body, err := Split(doc)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if fm["id"] != "202501010000-ABCD" {
		t.Errorf("id = %v", fm["id"])
	}
	if !strings.HasPrefix(body, "## Summary") {
		t.Errorf("body = %q", body)
	}
}
