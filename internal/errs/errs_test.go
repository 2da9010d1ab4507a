package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestExitCode_DefaultsByKind(t *testing.T) {
	cases := map[Kind]int{
		KindInput:         2,
		KindState:         2,
		KindConfiguration: 2,
		KindGit:           1,
		KindRemote:        1,
	}
	for kind, want := range cases {
		e := New(kind, "boom")
		if got := e.ExitCode(); got != want {
			t.Errorf("Kind %s ExitCode() = %d, want %d", kind, got, want)
		}
	}
}

func TestWithExitCode_Overrides(t *testing.T) {
	e := New(KindGit, "subprocess failed").WithExitCode(17)
	if got := e.ExitCode(); got != 17 {
		t.Errorf("ExitCode() = %d, want 17", got)
	}
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("underlying failure")
	e := Wrap(KindGit, cause, "git command failed")
	if !errors.Is(e, cause) {
		t.Error("Wrap should preserve the cause for errors.Is")
	}
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	if Wrap(KindGit, nil, "no failure") != nil {
		t.Error("Wrap(kind, nil, ...) should return nil")
	}
}

func TestAs(t *testing.T) {
	var target *Error
	original := New(KindHook, "hook failed")
	var wrapped error = original
	if !As(wrapped, &target) {
		t.Fatal("As should find the *Error")
	}
	if target.Kind != KindHook {
		t.Errorf("target.Kind = %s, want %s", target.Kind, KindHook)
	}
}

func TestError_IncludesContextFooter(t *testing.T) {
	e := New(KindState, "refusing write").WithContext(Footer{RepoRoot: "/repo", Branch: "main", Mode: "branch_pr"})
	msg := e.Error()
	if !strings.Contains(msg, "/repo") || !strings.Contains(msg, "main") {
		t.Errorf("Error() = %q, missing context fields", msg)
	}
}
