package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"simplecal/internal/model"
	"simplecal/internal/storage"
	"simplecal/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	kv, err := storage.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	s := store.New(kv)
	title := "backed up"
	if _, err := s.Create(model.EventPatch{Title: &title}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestRunOnceWritesCollection(t *testing.T) {
	dir := t.TempDir()
	r := New(testStore(t), dir, 5)

	path, err := r.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("backup written outside dir: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if len(events) != 1 || events[0].Title != "backed up" {
		t.Errorf("backup content: %+v", events)
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	old := []string{
		"events-20240101-000000.json",
		"events-20240102-000000.json",
		"events-20240103-000000.json",
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o600); err != nil {
			t.Fatalf("seed backup: %v", err)
		}
	}
	// Unrelated files are never touched.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	r := New(testStore(t), dir, 2)
	if _, err := r.RunOnce(); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var backups, other int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			backups++
		} else {
			other++
		}
	}
	if backups != 2 {
		t.Errorf("retained %d backups, want 2", backups)
	}
	if other != 1 {
		t.Error("prune removed an unrelated file")
	}
	// The oldest seeds must be the ones gone.
	if _, err := os.Stat(filepath.Join(dir, old[0])); !os.IsNotExist(err) {
		t.Error("oldest backup survived prune")
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	r := New(testStore(t), t.TempDir(), 2)
	if err := r.Start("not a cron spec"); err == nil {
		t.Error("invalid cron spec should fail")
	}
	// Empty spec disables scheduling without error.
	if err := r.Start(""); err != nil {
		t.Errorf("empty spec: %v", err)
	}
}
