package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/lora-nexus/pkg/logger"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "test.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB(t *testing.T) {
	db := newTestDB(t)

	if db.db == nil {
		t.Error("Expected non-nil database connection")
	}
	if !db.GetDB().Migrator().HasTable(&DecodeRecord{}) {
		t.Error("Expected decodes table to be migrated")
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	db, err := NewDB(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("Failed to create database in nested dir: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected database file to exist: %v", err)
	}
}

func TestDecodeRecord_BeforeCreate(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())

	rec := &DecodeRecord{
		Name:            "beacon",
		SpreadingFactor: 7,
		CodeRate:        4,
		Header:          true,
		SymbolCount:     16,
		Nibbles:         "40b0a1000c00",
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}

	if rec.ID == 0 {
		t.Error("Expected non-zero ID after creation")
	}
	if len(rec.UUID) != 36 {
		t.Errorf("Expected UUID to be set by hook, got %q", rec.UUID)
	}
	if rec.DecodedAt.IsZero() || rec.CreatedAt.IsZero() {
		t.Error("Expected timestamps to be set by hook")
	}
}

func TestDecodeRecord_UUIDUnique(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	ctx := context.Background()

	if err := repo.Create(ctx, &DecodeRecord{UUID: "fixed", SpreadingFactor: 7, CodeRate: 1}); err != nil {
		t.Fatalf("Failed to create first record: %v", err)
	}
	if err := repo.Create(ctx, &DecodeRecord{UUID: "fixed", SpreadingFactor: 7, CodeRate: 1}); err == nil {
		t.Error("Expected duplicate UUID to be rejected")
	}
}

func TestDecodeRecord_Clean(t *testing.T) {
	if !(&DecodeRecord{}).Clean() {
		t.Error("Expected zero record to be clean")
	}
	if (&DecodeRecord{Corrected: 1}).Clean() {
		t.Error("Expected corrected record to be unclean")
	}
}

func TestDecodeRepository_GetByUUID(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	ctx := context.Background()

	rec := &DecodeRecord{Name: "lookup", SpreadingFactor: 8, CodeRate: 2}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByUUID(ctx, rec.UUID)
	if err != nil {
		t.Fatalf("GetByUUID failed: %v", err)
	}
	if got.Name != "lookup" || got.SpreadingFactor != 8 {
		t.Errorf("Unexpected record: %+v", got)
	}

	_, err = repo.GetByUUID(ctx, "missing")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func seedRecords(t *testing.T, repo *DecodeRepository, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &DecodeRecord{
			SpreadingFactor: 7 + i%2,
			CodeRate:        4,
			SymbolCount:     10 + i,
			Corrected:       i,
			Uncorrectable:   i % 2,
			DecodedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("Failed to create record %d: %v", i, err)
		}
	}
}

func TestDecodeRepository_GetRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	seedRecords(t, repo, 5, time.Now().Add(-time.Hour))

	records, err := repo.GetRecent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Failed to get recent decodes: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].DecodedAt.Before(records[1].DecodedAt) {
		t.Error("Expected records to be ordered by decoded_at DESC")
	}
	if records[0].SymbolCount != 14 {
		t.Errorf("Expected newest record first, got symbol_count %d", records[0].SymbolCount)
	}
}

func TestDecodeRepository_GetRecentPaginated(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	seedRecords(t, repo, 10, time.Now().Add(-time.Hour))
	ctx := context.Background()

	page1, total, err := repo.GetRecentPaginated(ctx, 1, 4)
	if err != nil {
		t.Fatalf("Failed to get page 1: %v", err)
	}
	if total != 10 {
		t.Errorf("Expected total 10, got %d", total)
	}
	if len(page1) != 4 {
		t.Errorf("Expected 4 records on page 1, got %d", len(page1))
	}

	page3, _, err := repo.GetRecentPaginated(ctx, 3, 4)
	if err != nil {
		t.Fatalf("Failed to get page 3: %v", err)
	}
	if len(page3) != 2 {
		t.Errorf("Expected 2 records on page 3, got %d", len(page3))
	}
}

func TestDecodeRepository_GetBySpreadingFactor(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	seedRecords(t, repo, 6, time.Now().Add(-time.Hour))

	records, err := repo.GetBySpreadingFactor(context.Background(), 8, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 SF8 records, got %d", len(records))
	}
	for _, r := range records {
		if r.SpreadingFactor != 8 {
			t.Errorf("Unexpected SF%d record", r.SpreadingFactor)
		}
	}
}

func TestDecodeRepository_Summarize(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	ctx := context.Background()

	empty, err := repo.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize on empty table failed: %v", err)
	}
	if empty != (Summary{}) {
		t.Errorf("Expected zero summary, got %+v", empty)
	}

	seedRecords(t, repo, 4, time.Now())
	s, err := repo.Summarize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// symbols 10+11+12+13, corrected 0+1+2+3, uncorrectable 0+1+0+1
	want := Summary{Packets: 4, Symbols: 46, Corrected: 6, Uncorrectable: 2}
	if s != want {
		t.Errorf("Summary = %+v, want %+v", s, want)
	}
}

func TestDecodeRepository_DeleteOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewDecodeRepository(db.GetDB())
	ctx := context.Background()

	now := time.Now()
	seedRecords(t, repo, 3, now.Add(-48*time.Hour))
	seedRecords(t, repo, 2, now)

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	remaining, err := repo.GetRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Errorf("Expected 2 remaining, got %d", len(remaining))
	}
}
