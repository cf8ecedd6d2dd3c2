package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedded embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// ApplyEmbedded runs every migration compiled into the binary. It is used by
// the dev auto-run and by repository tests, neither of which can rely on the
// working directory.
func ApplyEmbedded(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}

	dir, err := DialectDir("migrations", dialect)
	if err != nil {
		return err
	}
	return withGoose(dialect, func() error {
		goose.SetBaseFS(embedded)
		defer goose.SetBaseFS(nil)

		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("goose up (embedded): %w", err)
		}
		return nil
	})
}
