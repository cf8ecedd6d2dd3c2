package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

var migrationFile = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir lints the migrations under base. In each dialect directory the
// name must be <14 digit version>_<slug>.sql, versions must be unique and
// both goose sections must be present. Every version must exist for every
// dialect. All problems are returned together.
func ValidateDir(base string) error {
	if base == "" {
		return errors.New("dir is required")
	}

	var errs error
	seen := make(map[string][]string)
	subs := dialectSubdirs()
	for _, sub := range subs {
		versions, err := validateDialectDir(filepath.Join(base, sub))
		errs = multierr.Append(errs, err)
		for version := range versions {
			seen[version] = append(seen[version], sub)
		}
	}
	for _, version := range slices.Sorted(maps.Keys(seen)) {
		if have := seen[version]; len(have) != len(subs) {
			errs = multierr.Append(errs, fmt.Errorf("version %s only present in %s", version, strings.Join(have, ", ")))
		}
	}
	return errs
}

func validateDialectDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	versions := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}

		m := migrationFile.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
			continue
		}
		versions[m[1]] = name

		errs = multierr.Append(errs, checkSections(filepath.Join(dir, name)))
	}
	return versions, errs
}

func checkSections(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var up, down bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			up = true
		case "-- +goose Down":
			down = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var errs error
	if !up {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing -- +goose Up", filepath.Base(path)))
	}
	if !down {
		errs = multierr.Append(errs, fmt.Errorf("%s: missing -- +goose Down", filepath.Base(path)))
	}
	return errs
}
