package store

import (
	"path/filepath"
	"testing"
)

func TestDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error = %v", err)
	}
	if want := filepath.Join(home, ".neurogrow"); dir != want {
		t.Errorf("DataDir() = %s, want %s", dir, want)
	}

	db, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath() error = %v", err)
	}
	if want := filepath.Join(home, ".neurogrow", "neurogrow.db"); db != want {
		t.Errorf("DefaultDBPath() = %s, want %s", db, want)
	}
}
