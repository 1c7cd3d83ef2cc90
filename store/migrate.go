package store

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending migrations in lexical filename order. Each
// migration records itself in schema_migrations inside the same
// transaction it runs in, so a crash mid-migration never leaves a gap
// between "applied" and "recorded".
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.SplitN(filename, "_", 2)[0]

		var exists bool
		err := db.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists)
		if err != nil {
			if version != "0001" {
				return errors.Newf("schema_migrations table missing, but migration is not 0001: %s", filename)
			}
		} else if exists {
			if log != nil {
				log.With(logger.FieldSymbol, logger.SymbolStore).Debugw("skipping migration (already applied)",
					"migration", filename, "version", version)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile(filepath.Join("migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if log != nil {
			log.With(logger.FieldSymbol, logger.SymbolStore).Infow("applying migration",
				"migration", filename, "version", version)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}

		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", filename)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", filename)
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
	}

	if log != nil {
		log.With(logger.FieldSymbol, logger.SymbolStore).Infow("migrations complete", "total_migrations", len(files))
	}

	return nil
}
