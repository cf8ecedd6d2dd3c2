// Package migrate drives goose against the SQL files in migrations/<dialect>/,
// either from disk (cmd/migrate) or from the copy embedded in the binary.
// Every version exists once per dialect; only column types differ.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"
)

// dialectDirs names the subdirectory holding each dialect's migrations.
var dialectDirs = map[string]string{
	dialectPostgres: "postgres",
	dialectSQLite:   "sqlite",
}

// Dialect maps the configured driver onto a goose dialect name.
func Dialect(cfg config.DBConfig) string {
	if cfg.UsesSQLite() {
		return dialectSQLite
	}
	return dialectPostgres
}

// DialectDir returns the directory under base holding the migrations for
// dialect. sqlite keeps its own copy because go-sqlite3 only scans columns
// declared DATETIME, TIMESTAMP or DATE into time.Time.
func DialectDir(base, dialect string) (string, error) {
	if dialect == "" {
		dialect = dialectPostgres
	}
	sub, ok := dialectDirs[dialect]
	if !ok {
		return "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
	return path.Join(base, sub), nil
}

// withGoose serialises access to goose's package level dialect setting.
func withGoose(dialect string, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if dialect == "" {
		dialect = dialectPostgres
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %q: %w", dialect, err)
	}
	return fn()
}

// Run executes a goose command (up, down, status, reset, ...) against the
// dialect's directory under base.
func Run(ctx context.Context, db *sql.DB, dialect, base, command string, args ...string) error {
	if db == nil || base == "" {
		return errors.New("db and dir are required")
	}
	dir, err := DialectDir(base, dialect)
	if err != nil {
		return err
	}
	return withGoose(dialect, func() error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, base, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("version %q is not YYYYMMDDHHMMSS: %w", version, err)
	}
	dir, err := DialectDir(base, dialect)
	if err != nil {
		return err
	}
	return withGoose(dialect, func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("current version: %w", err)
		}
		switch {
		case target > current:
			err = goose.UpToContext(ctx, db, dir, target)
		case target < current:
			err = goose.DownToContext(ctx, db, dir, target)
		}
		if err != nil {
			return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
		}
		return nil
	})
}
