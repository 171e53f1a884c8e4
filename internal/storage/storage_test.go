package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testBackends(t *testing.T) map[string]KV {
	t.Helper()
	fileKV, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	sqliteKV, err := NewSQLiteKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() {
		fileKV.Close()
		sqliteKV.Close()
	})
	return map[string]KV{"file": fileKV, "sqlite": sqliteKV}
}

func TestGetSetRoundTrip(t *testing.T) {
	for name, kv := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get("calendar-events"); err != nil || ok {
				t.Fatalf("missing key: got ok=%v err=%v", ok, err)
			}

			if err := kv.Set("calendar-events", `[{"id":"1"}]`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok, err := kv.Get("calendar-events")
			if err != nil || !ok || got != `[{"id":"1"}]` {
				t.Fatalf("Get = (%q, %v, %v)", got, ok, err)
			}

			// Overwrite wins.
			if err := kv.Set("calendar-events", `[]`); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			if got, _, _ := kv.Get("calendar-events"); got != `[]` {
				t.Errorf("after overwrite = %q", got)
			}

			// Keys are independent.
			if err := kv.Set("calendar-theme", "dark"); err != nil {
				t.Fatalf("Set theme: %v", err)
			}
			if got, _, _ := kv.Get("calendar-events"); got != `[]` {
				t.Errorf("theme write clobbered events: %q", got)
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	kv, err := Open(BackendFile, t.TempDir())
	if err != nil {
		t.Fatalf("Open(file): %v", err)
	}
	kv.Close()

	if _, err := Open("redis", t.TempDir()); err == nil {
		t.Error("Open with unknown backend should fail")
	}
}

func TestFileKVRejectsTraversal(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := kv.Set(key, "x"); err == nil {
			t.Errorf("Set(%q) should fail", key)
		}
	}
}

func TestFileKVPermissions(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	if err := kv.Set("calendar-theme", "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "calendar-theme.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}
