package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	gdb, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "coinforge.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	defer sqlDB.Close()

	var mode string
	if err := gdb.Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal mode=%q", mode)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), " "); err == nil {
		t.Fatalf("expected empty path to fail")
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "://nope"); err == nil {
		t.Fatalf("expected parse error")
	}
}
