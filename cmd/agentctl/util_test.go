package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single", "backend", []string{"backend"}},
		{"multiple", "backend, frontend,  db", []string{"backend", "frontend", "db"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("splitCSV(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFirstNonCommentLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain subject", "fix: widget rendering\n\nbody text\n", "fix: widget rendering"},
		{"leading comment", "# Please enter the commit message\nfix: widget rendering\n", "fix: widget rendering"},
		{"blank lines skipped", "\n\n  \nfix: widget rendering\n", "fix: widget rendering"},
		{"all comments", "# one\n# two\n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := firstNonCommentLine(tc.in)
			if got != tc.want {
				t.Fatalf("firstNonCommentLine(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestReadRemoteBackendConfig(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, v interface{}) string {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal fixture: %v", err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return path
	}

	t.Run("defaults cache path when unset", func(t *testing.T) {
		path := write("full.json", map[string]string{
			"base_url": "https://tracker.internal/api",
			"env_file": ".env.tracker",
		})
		rc, err := readRemoteBackendConfig(path)
		if err != nil {
			t.Fatalf("readRemoteBackendConfig: %v", err)
		}
		if rc.BaseURL != "https://tracker.internal/api" {
			t.Errorf("BaseURL = %q", rc.BaseURL)
		}
		if rc.CachePath != ".agentctl/remote-cache.json" {
			t.Errorf("CachePath = %q, want default", rc.CachePath)
		}
		if rc.EnvFile != ".env.tracker" {
			t.Errorf("EnvFile = %q", rc.EnvFile)
		}
	})

	t.Run("respects explicit cache path", func(t *testing.T) {
		path := write("explicit.json", map[string]string{
			"base_url":   "https://tracker.internal/api",
			"cache_path": "custom/cache.json",
		})
		rc, err := readRemoteBackendConfig(path)
		if err != nil {
			t.Fatalf("readRemoteBackendConfig: %v", err)
		}
		if rc.CachePath != "custom/cache.json" {
			t.Errorf("CachePath = %q, want custom/cache.json", rc.CachePath)
		}
	})

	t.Run("missing base_url rejected", func(t *testing.T) {
		path := write("no-base.json", map[string]string{
			"cache_path": "custom/cache.json",
		})
		if _, err := readRemoteBackendConfig(path); err == nil {
			t.Fatal("expected error for missing base_url")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := readRemoteBackendConfig(filepath.Join(dir, "nope.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := readRemoteBackendConfig(path); err == nil {
			t.Fatal("expected error for invalid json")
		}
	})
}

func TestExitCodeForFallsBackToOne(t *testing.T) {
	if got := exitCodeFor(errNonAgentctl{}); got != 1 {
		t.Fatalf("exitCodeFor(plain error) = %d, want 1", got)
	}
}

type errNonAgentctl struct{}

func (errNonAgentctl) Error() string { return "boom" }
