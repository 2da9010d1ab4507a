package store

import (
	"context"
	"path/filepath"
	"testing"
)

func sampleTask(id string, status Status, deps ...string) Task {
	return Task{
		ID:          id,
		Title:       "Task " + id,
		Description: "desc",
		Status:      status,
		Owner:       "HUMAN",
		DependsOn:   deps,
	}
}

func TestChecksum_StableAcrossOrder(t *testing.T) {
	a := []Task{sampleTask("202501010000-AAAA", StatusTODO), sampleTask("202501010000-BBBB", StatusTODO)}
	b := []Task{a[1], a[0]}

	sumA, err := Checksum(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := Checksum(b)
	if err != nil {
		t.Fatal(err)
	}
	if sumA != sumB {
		t.Error("checksum should be stable across input order")
	}
}

func TestDependencyState_MissingAndIncomplete(t *testing.T) {
	tasks := []Task{
		sampleTask("202501010000-AAAA", StatusTODO, "202501010000-ZZZZ"),
		sampleTask("202501010000-BBBB", StatusDOING, "202501010000-AAAA"),
	}
	states, cycles := DependencyState(tasks)
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
	a := states["202501010000-AAAA"]
	if len(a.Missing) != 1 || a.Missing[0] != "202501010000-ZZZZ" {
		t.Errorf("expected missing dep, got %+v", a)
	}
	b := states["202501010000-BBBB"]
	if len(b.Incomplete) != 1 {
		t.Errorf("expected incomplete dep (AAAA not DONE), got %+v", b)
	}
}

func TestDependencyState_DetectsCycle(t *testing.T) {
	tasks := []Task{
		sampleTask("202501010000-AAAA", StatusTODO, "202501010000-BBBB"),
		sampleTask("202501010000-BBBB", StatusTODO, "202501010000-AAAA"),
	}
	_, cycles := DependencyState(tasks)
	if len(cycles) == 0 {
		t.Fatal("expected a cycle to be detected")
	}
}

func TestLint_ChecksumDriftDetected(t *testing.T) {
	tasks := []Task{sampleTask("202501010000-AAAA", StatusTODO)}
	doc := Document{Tasks: tasks, Meta: Meta{SchemaVersion: 1, ManagedBy: ManagedBy, ChecksumAlgo: ChecksumAlgo, Checksum: "deadbeef"}}

	report := Lint(doc, nil, nil)
	if report.Clean() {
		t.Fatal("expected a checksum-mismatch finding")
	}
}

func TestLint_VerifyRequiredTagsWithoutVerifyList(t *testing.T) {
	task := sampleTask("202501010000-AAAA", StatusTODO)
	task.Tags = []string{"backend"}
	doc := Document{Tasks: []Task{task}}
	doc.Meta, _ = BuildMeta(doc.Tasks)

	report := Lint(doc, []string{"backend"}, nil)
	if report.Clean() {
		t.Fatal("expected a lint issue for missing verify list on a verify-required task")
	}
}

func TestLocal_WriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "tasks"), []string{"backend"})

	task := sampleTask("202501010000-AAAA", StatusTODO)
	task.Doc = "Initial summary."

	ctx := context.Background()
	if err := l.WriteTask(ctx, task); err != nil {
		t.Fatalf("WriteTask: %v", err)
	}

	got, err := l.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("ListTasks = %+v", got)
	}

	doc, err := l.GetTaskDoc(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskDoc: %v", err)
	}
	if doc != "Initial summary." {
		t.Errorf("GetTaskDoc = %q, want %q", doc, "Initial summary.")
	}

	if err := l.SetTaskDoc(ctx, task.ID, "HUMAN", "Updated summary."); err != nil {
		t.Fatalf("SetTaskDoc: %v", err)
	}
	tasks, err := l.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if tasks[0].DocVersion != 1 {
		t.Errorf("DocVersion = %d, want 1 after one content change", tasks[0].DocVersion)
	}
}

func TestLocal_GenerateTaskID_Unique(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "tasks"), nil)

	ctx := context.Background()
	id, err := l.GenerateTaskID(ctx, 6, 20)
	if err != nil {
		t.Fatalf("GenerateTaskID: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}
}
