package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Baseline is the version that creates commission_payments and the audit
// trail. Rolling back below it drops the ledger.
const Baseline int64 = 20260105090100

// ErrLedgerRollback is returned when a rollback would cross Baseline without
// Options.AllowLedgerDrop.
var ErrLedgerRollback = errors.New("rollback would drop the commission ledger")

// Options tune a migration run.
type Options struct {
	AllowLedgerDrop bool
}

// Run executes a goose command against the commission schema. Rollbacks that
// would cross Baseline are refused unless opts allows them.
func Run(ctx context.Context, db *sql.DB, dir string, command string, opts Options, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if target, ok, err := rollbackTarget(command, args); err != nil {
		return err
	} else if ok {
		if err := guardLedger(db, target, opts); err != nil {
			return err
		}
	}

	// goose prints status output to stdout
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up or down to the requested version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string, opts Options) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil

	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil

	default:
		if crossesBaseline(current, target) && !opts.AllowLedgerDrop {
			return fmt.Errorf("%w: %d -> %d", ErrLedgerRollback, current, target)
		}
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// rollbackTarget reports the version a rollback command leaves behind. A
// single "down" is -1 and resolved against the current version later.
func rollbackTarget(command string, args []string) (int64, bool, error) {
	switch command {
	case "reset":
		return 0, true, nil
	case "down":
		return -1, true, nil
	case "down-to":
		if len(args) == 0 {
			return 0, false, fmt.Errorf("down-to requires a version")
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return target, true, nil
	default:
		return 0, false, nil
	}
}

func guardLedger(db *sql.DB, target int64, opts Options) error {
	if opts.AllowLedgerDrop {
		return nil
	}
	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	if target < 0 {
		target = current - 1
	}
	if crossesBaseline(current, target) {
		return fmt.Errorf("%w: %d -> %d", ErrLedgerRollback, current, target)
	}
	return nil
}

func crossesBaseline(current, target int64) bool {
	return current >= Baseline && target < Baseline
}
