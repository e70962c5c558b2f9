package database

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to golang-migrate's Logger interface.
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// resolveMigrationFolder accepts paths relative to the working directory.
func resolveMigrationFolder(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	workingDirectory, _ := os.Getwd()
	separator := ""
	if workingDirectory != "/" {
		separator = "/"
	}
	return workingDirectory + separator + path
}

// RunMigrations applies all pending migrations from sourcePath. A dirty
// migration is rolled back one step and retried once before giving up.
func RunMigrations(db *sqlx.DB, dbName, sourcePath string, logger ectologger.Logger) error {
	migrationFolder := resolveMigrationFolder(sourcePath)
	if _, err := os.Stat(migrationFolder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationFolder, dbName, driver)
	if err != nil {
		logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: logger}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		version, dirty, verr := m.Version()
		if verr != nil || !dirty {
			return errors.Wrap(err, "failed to run migrations")
		}

		logger.Warnf("Migration version %d is dirty, rolling back one step", version)
		if err := m.Force(int(version)); err != nil {
			return errors.Wrapf(err, "failed to force migration version %d", version)
		}
		if err := m.Steps(-1); err != nil {
			return errors.Wrapf(err, "failed to roll back dirty migration %d", version)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return errors.Wrap(err, "failed to rerun migrations after rollback")
		}
	}

	version, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, "failed to read migration version")
	}

	logger.Infof("Database migrations complete, version %d", version)
	return nil
}
