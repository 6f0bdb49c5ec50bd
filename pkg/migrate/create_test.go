package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payout Holds!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_holds.sql") {
		t.Fatalf("unexpected filename %q", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to be rejected")
	}
}

func TestCreateSQLMigrationOrdersAfterNewestFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20300101000000_future.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	path, err := createSQLMigration(dir, "add payout holds", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if got := filepath.Base(path); got != "20300101000001_add_payout_holds.sql" {
		t.Fatalf("unexpected filename %q", got)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(body), "SET LOCAL lock_timeout") {
		t.Fatalf("expected lock timeout in template")
	}
}

func TestValidateDirRejectsAuditRewrites(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nUPDATE commission_audit_entries SET notes = NULL;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260301000000_scrub_notes.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	err := ValidateDir(dir)
	if err == nil || !strings.Contains(err.Error(), "audit trail") {
		t.Fatalf("expected audit rewrite to be rejected, got %v", err)
	}
}

func TestValidateDirAllowsDroppingAuditInDown(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nCREATE TABLE x (id int);\n-- +goose Down\nTRUNCATE TABLE commission_audit_entries;\n"
	if err := os.WriteFile(filepath.Join(dir, "20260301000000_x.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("down section should not be checked: %v", err)
	}
}

func TestLedgerRollbackGuard(t *testing.T) {
	tests := []struct {
		current, target int64
		crosses         bool
	}{
		{current: 20260105090500, target: 20260105090200, crosses: false},
		{current: 20260105090500, target: 20260105090000, crosses: true},
		{current: Baseline, target: Baseline - 1, crosses: true},
		{current: 20260105090000, target: 0, crosses: false},
	}
	for _, tt := range tests {
		if got := crossesBaseline(tt.current, tt.target); got != tt.crosses {
			t.Fatalf("crossesBaseline(%d, %d) = %v", tt.current, tt.target, got)
		}
	}

	if err := guardLedger(nil, 0, Options{AllowLedgerDrop: true}); err != nil {
		t.Fatalf("allowed rollback should skip the version check: %v", err)
	}
}

func TestRollbackTargetByCommand(t *testing.T) {
	if _, ok, _ := rollbackTarget("up", nil); ok {
		t.Fatalf("up is not a rollback")
	}
	if target, ok, _ := rollbackTarget("reset", nil); !ok || target != 0 {
		t.Fatalf("reset should roll back to 0")
	}
	if target, ok, err := rollbackTarget("down-to", []string{"20260105090200"}); err != nil || !ok || target != 20260105090200 {
		t.Fatalf("unexpected down-to target %d ok=%v err=%v", target, ok, err)
	}
	if _, _, err := rollbackTarget("down-to", nil); err == nil {
		t.Fatalf("down-to without a version should fail")
	}
}
