package postgres

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"testing/fstest"
	"text/template"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the given table prefix.
func Migrate(databaseURL, prefix string, logger *slog.Logger) error {
	m, err := newMigrator(databaseURL, prefix)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied",
		"version", version,
		"dirty", dirty,
		"table_prefix", prefix,
	)
	return nil
}

// MigrateDown drops every table created by the migrations.
func MigrateDown(databaseURL, prefix string, logger *slog.Logger) error {
	m, err := newMigrator(databaseURL, prefix)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert migrations: %w", err)
	}

	logger.Info("migrations reverted", "table_prefix", prefix)
	return nil
}

func newMigrator(databaseURL, prefix string) (*migrate.Migrate, error) {
	rendered, err := renderMigrations(prefix)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(rendered, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	dbURL, err := migrateURL(databaseURL, prefix)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

// renderMigrations substitutes the table prefix into every migration file.
func renderMigrations(prefix string) (fs.FS, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	out := fstest.MapFS{}
	data := struct{ Prefix string }{Prefix: prefix}
	for _, e := range entries {
		name := path.Join("migrations", e.Name())
		raw, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		tmpl, err := template.New(e.Name()).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out[name] = &fstest.MapFile{Data: buf.Bytes(), Mode: 0o444}
	}
	return out, nil
}

// migrateURL switches the DSN to the pgx5 driver and gives each prefix its
// own migrations table.
func migrateURL(databaseURL, prefix string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("x-migrations-table", prefix+"schema_migrations")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
