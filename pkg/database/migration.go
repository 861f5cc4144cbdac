package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to the migrate.Logger interface
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version migrates up or down to this version; zero means latest
	Version uint
	// Force marks the database clean at this version before migrating; zero disables it
	Force int
	// AutoRollback forces a dirty database back to the previous version after a failure
	AutoRollback bool
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	migrationFolder := ms.config.MigrationFolderPath
	if filepath.IsAbs(migrationFolder) {
		return migrationFolder
	}
	if _, err := os.Stat(migrationFolder); err == nil {
		if abs, err := filepath.Abs(migrationFolder); err == nil {
			return abs
		}
	}
	workingDirectory, _ := os.Getwd()
	return filepath.Join(workingDirectory, migrationFolder)
}

// MigratePostgres applies the migrations to the database behind db
func (ms *MigrationService) MigratePostgres(db DB, databaseName string) error {
	driver, err := postgres.WithInstance(db.SQL(), &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create postgres migration driver")
		return errors.Wrap(err, "failed to create postgres migration driver")
	}
	return ms.Migrate(databaseName, driver)
}

func (ms *MigrationService) Migrate(databaseName string, databaseInstance migratedb.Driver) error {
	migrationFolder := ms.resolveMigrationFolder()
	if _, err := os.Stat(migrationFolder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", migrationFolder))
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationFolder, databaseName, databaseInstance)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}

	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m)
}

func (ms *MigrationService) runMigration(m *migrate.Migrate) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Error("Failed to read schema version")
	}

	started := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}

	switch {
	case err == nil:
		ms.logger.Infof("Schema migrated in %v", time.Since(started))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("Schema is up to date")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		// the recorded version is newer than the files on disk, usually after a rollback
		return ms.forceLatest(m, before)
	default:
		return ms.recoverDirty(m, err, before)
	}
}

func (ms *MigrationService) forceLatest(m *migrate.Migrate, recorded uint) error {
	latest, err := getLatestVersion(ms.resolveMigrationFolder())
	if err != nil {
		ms.logger.WithError(err).Error("Failed to find the latest migration file")
		return errors.Wrap(err, "failed to resolve latest migration version")
	}
	ms.logger.Warnf("Schema version %d has no migration file, forcing %d", recorded, latest)
	return m.Force(latest)
}

// recoverDirty optionally rewinds a dirty schema, then reports the failure either way
func (ms *MigrationService) recoverDirty(m *migrate.Migrate, cause error, before uint) error {
	ms.logger.WithError(cause).Error("Schema migration failed")

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Error("Failed to read schema version")
		return cause
	}

	if dirty && ms.config.AutoRollback {
		target := before
		if target == 0 && version > 0 {
			target = version - 1
		}
		ms.logger.Warnf("Schema is dirty at version %d, forcing back to %d", version, target)
		if err := m.Force(int(target)); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", target)
			return err
		}
	}

	return errors.Wrapf(cause, "failed to apply migrations (dirty=%t, version=%d)", dirty, version)
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

func getLatestVersion(folderPath string) (int, error) {
	files, err := os.ReadDir(folderPath)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(file.Name())
		if len(matches) > 1 {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return 0, err
			}
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", folderPath)
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
