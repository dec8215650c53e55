package sqlstore

import (
	"path/filepath"
	"testing"
)

func TestNew_ReportsDriver(t *testing.T) {
	db, err := New("sqlite3", filepath.Join(t.TempDir(), "driver.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if db.Driver() != "sqlite3" {
		t.Errorf("Expected sqlite3 driver, got %q", db.Driver())
	}
	if db.Conn() == nil {
		t.Error("Expected an open connection")
	}
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	if _, err := New("mysql", "user@/db"); err == nil {
		t.Error("Expected an error for an unsupported driver")
	}
}
