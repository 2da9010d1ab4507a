package taskid

import "testing"

func TestGenerate_MatchesGrammar(t *testing.T) {
	id, err := Generate(DefaultSuffixLength)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !Valid(id) {
		t.Errorf("Generate produced %q, which fails Valid()", id)
	}
}

func TestValid_RejectsAmbiguousLetters(t *testing.T) {
	for _, bad := range []string{"202501010000-ILOU", "202501010000-abcd", "bad-id", "202501010000-AB"} {
		if Valid(bad) {
			t.Errorf("Valid(%q) = true, want false", bad)
		}
	}
}

func TestGenerateUnique_RetriesOnCollision(t *testing.T) {
	calls := 0
	id, err := GenerateUnique(DefaultSuffixLength, 20, func(id string) bool {
		calls++
		return calls < 3
	})
	if err != nil {
		t.Fatalf("GenerateUnique: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 exists() calls before success, got %d", calls)
	}
	if !Valid(id) {
		t.Errorf("GenerateUnique produced invalid id %q", id)
	}
}

func TestGenerateUnique_ExhaustsAttempts(t *testing.T) {
	_, err := GenerateUnique(DefaultSuffixLength, 3, func(string) bool { return true })
	if err == nil {
		t.Fatal("expected an error when every draw collides")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Fix Login Bug!!":    "fix-login-bug",
		"   ":                "work",
		"already-kebab-case": "already-kebab-case",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBranchName(t *testing.T) {
	got := BranchName("task", "202501010000-ABCD", "Fix Login Bug")
	want := "task/202501010000-ABCD/fix-login-bug"
	if got != want {
		t.Errorf("BranchName = %q, want %q", got, want)
	}
}

func TestBranchPattern(t *testing.T) {
	pattern := BranchPattern("task")
	if !pattern.MatchString("task/202501010000-ABCD/fix-login-bug") {
		t.Error("expected branch name to match pattern")
	}
	if pattern.MatchString("other/202501010000-ABCD/fix-login-bug") {
		t.Error("expected a different prefix to not match")
	}
}

func TestSuffix(t *testing.T) {
	if got := Suffix("202501010000-ABCDEF"); got != "ABCDEF" {
		t.Errorf("Suffix = %q, want %q", got, "ABCDEF")
	}
}
