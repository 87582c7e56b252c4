package store

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql
	"gorm.io/gorm"

	"github.com/quernlabs/quern/internal/logger"
	"github.com/quernlabs/quern/pkg/store/migrations"
)

// runMigrations executes Postgres schema migrations using golang-migrate.
// golang-migrate takes a PostgreSQL advisory lock, so concurrent server
// instances cannot apply migrations at the same time.
func runMigrations(connString string) error {
	logger.Info("Running database migrations")

	// golang-migrate needs its own database/sql handle
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply (database is up to date)")
	} else {
		logger.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if err == nil {
		logger.Info("Current schema version", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("Database schema is in dirty state - manual intervention may be required")
		}
	}

	return nil
}

// checkVectorDimension verifies that the migrated vector column matches
// the configured embedding dimension. A mismatch here means the deployed
// schema was migrated for a different embedding model; failing fast beats
// rejecting every chunk write later.
func checkVectorDimension(db *gorm.DB, want int) error {
	var dims int
	err := db.Raw(
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'`,
	).Scan(&dims).Error
	if err != nil {
		return fmt.Errorf("failed to inspect vector column: %w", err)
	}
	if dims > 0 && dims != want {
		return fmt.Errorf("vector column has dimension %d but configuration expects %d", dims, want)
	}
	return nil
}
