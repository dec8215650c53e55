package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStore_SaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ctx := context.Background()
	data := []byte("png bytes")

	path, err := store.Save(ctx, "sheet.png", data)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Expected file in %s, got %s", dir, path)
	}
	if !strings.HasSuffix(path, "_sheet.png") {
		t.Errorf("Expected uuid-prefixed name, got %s", filepath.Base(path))
	}

	got, err := store.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected %q, got %q", data, got)
	}

	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("File should be removed")
	}
	if err := store.Delete(ctx, path); err != nil {
		t.Errorf("Deleting a missing file should succeed, got %v", err)
	}
}

func TestDiskStore_UniqueNames(t *testing.T) {
	store, _ := NewDiskStore(t.TempDir())
	ctx := context.Background()

	a, _ := store.Save(ctx, "same.png", []byte("a"))
	b, _ := store.Save(ctx, "same.png", []byte("b"))
	if a == b {
		t.Error("Expected distinct paths for the same file name")
	}
}

func TestDiskStore_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewDiskStore(dir)

	path, err := store.Save(context.Background(), "../../etc/evil.png", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Expected file to stay in %s, got %s", dir, path)
	}
}

func TestDiskStore_RejectsOutsidePaths(t *testing.T) {
	store, _ := NewDiskStore(t.TempDir())

	if _, err := store.Load(context.Background(), "/etc/passwd"); err == nil {
		t.Error("Expected error for a path outside the upload directory")
	}
}
