package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/basilisk-labs/codex-swarm/internal/store"
)

func newTestServer(t *testing.T, tasks []store.Task) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(tasks)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestController_PullOverwritesCleanCache(t *testing.T) {
	remoteTasks := []store.Task{
		{ID: "a-000001", Title: "From remote", Status: store.StatusTODO},
	}
	srv := newTestServer(t, remoteTasks)

	r := store.NewRemote(srv.URL, filepath.Join(t.TempDir(), "cache.json"), "", nil)
	c := New(r)

	result, err := c.Pull(context.Background(), ConflictDiff, false)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(result.Overwritten) != 1 || result.Overwritten[0].ID != "a-000001" {
		t.Errorf("Pull overwrote = %+v, want the one remote task", result.Overwritten)
	}
	if result.Aborted {
		t.Error("clean pull should not abort")
	}
}

func TestController_PullDiffConflictAborts(t *testing.T) {
	remoteTasks := []store.Task{
		{ID: "a-000001", Title: "Old", Status: store.StatusTODO},
	}
	srv := newTestServer(t, remoteTasks)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	r := store.NewRemote(srv.URL, cachePath, "", nil)
	c := New(r)

	// Seed the cache with a dirty local copy that disagrees with remote.
	if err := r.SetCachedTask(context.Background(), store.Task{ID: "a-000001", Title: "New", Status: store.StatusTODO}, true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := c.Pull(context.Background(), ConflictDiff, false)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if !result.Aborted {
		t.Fatal("expected diff-mode conflict to abort the pull")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].TaskID != "a-000001" {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
	if result.Conflicts[0].Diff == "" {
		t.Error("expected a non-empty unified diff")
	}
}

func TestController_PullPreferLocalRePushes(t *testing.T) {
	remoteTasks := []store.Task{
		{ID: "202501010000-AAAA", Title: "Old", Status: store.StatusTODO, Tags: []string{"backend"}},
	}
	srv := newTestServer(t, remoteTasks)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	r := store.NewRemote(srv.URL, cachePath, "", nil)
	c := New(r)
	if err := r.SetCachedTask(context.Background(), store.Task{ID: "202501010000-AAAA", Title: "New", Status: store.StatusTODO, Tags: []string{"backend"}}, true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := c.Pull(context.Background(), ConflictPreferLocal, true)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if len(result.RePushed) != 1 || result.RePushed[0].Title != "New" {
		t.Errorf("expected the local copy to be re-pushed, got %+v", result.RePushed)
	}
}

func TestController_PullRequiresConfirmForResolvingStrategies(t *testing.T) {
	remoteTasks := []store.Task{{ID: "a-000001", Title: "Old", Status: store.StatusTODO}}
	srv := newTestServer(t, remoteTasks)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	r := store.NewRemote(srv.URL, cachePath, "", nil)
	c := New(r)
	if err := r.SetCachedTask(context.Background(), store.Task{ID: "a-000001", Title: "New", Status: store.StatusTODO}, true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := c.Pull(context.Background(), ConflictPreferRemote, false); err == nil {
		t.Error("expected prefer-remote without confirm to fail")
	}
}

func TestController_PushRequiresConfirm(t *testing.T) {
	srv := newTestServer(t, nil)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	r := store.NewRemote(srv.URL, cachePath, "", nil)
	c := New(r)

	if err := r.SetCachedTask(context.Background(), store.Task{ID: "202501010000-AAAA", Title: "Dirty", Status: store.StatusTODO}, true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	preview, err := c.PreviewPush(context.Background())
	if err != nil {
		t.Fatalf("PreviewPush: %v", err)
	}
	if len(preview.Tasks) != 1 {
		t.Fatalf("preview = %+v, want one dirty task", preview.Tasks)
	}

	if _, err := c.Push(context.Background(), false); err == nil {
		t.Error("expected Push without confirm to fail")
	}

	result, err := c.Push(context.Background(), true)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(result.Written) != 1 {
		t.Errorf("Push wrote %d tasks, want 1", len(result.Written))
	}
}

func TestController_RequiresSyncCapability(t *testing.T) {
	srv := newTestServer(t, nil)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	r := store.NewRemote(srv.URL, cachePath, "", nil)
	// store.Remote always advertises CapSync; this asserts the guard
	// itself is wired rather than faking a non-sync backend, since
	// Controller only ever takes a *store.Remote.
	c := New(r)
	if _, err := c.PreviewPush(context.Background()); err != nil {
		t.Errorf("expected sync to be supported on Remote: %v", err)
	}
}
