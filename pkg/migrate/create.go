package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <YYYYMMDDHHMMSS>_<slug>.sql into every dialect directory under base, all
// with the same version, and returns the paths.
func CreateSQLMigration(base, name string) ([]string, error) {
	if base == "" {
		return nil, errors.New("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}

	file := time.Now().UTC().Format(versionLayout) + "_" + slug + ".sql"
	paths := make([]string, 0, len(dialectDirs))
	for _, sub := range dialectSubdirs() {
		path, err := writeTemplate(filepath.Join(base, sub), file, slug)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTemplate(dir, file, slug string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("migration already exists: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	_, werr := fmt.Fprintf(f, sqlTemplate, slug)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", fmt.Errorf("write %q: %w", path, werr)
	}
	return path, nil
}

// dialectSubdirs lists the dialect directories in a stable order.
func dialectSubdirs() []string {
	subs := slices.Collect(maps.Values(dialectDirs))
	slices.Sort(subs)
	return subs
}

// migrationSlug lower-cases name and collapses everything that is not a
// letter or digit into single underscores.
func migrationSlug(name string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
