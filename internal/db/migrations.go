package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// RunMigrations brings the scheduling database's schema up to date by
// applying every *.up.sql file under migrationsPath that isn't already
// recorded in aps_schema_migrations, in filename order.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations tracking table: %w", err)
	}

	applied, err := appliedMigrationVersions(db)
	if err != nil {
		return fmt.Errorf("failed to load applied migration versions: %w", err)
	}

	pending, err := pendingMigrationFiles(migrationsPath, applied)
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	for _, file := range pending {
		migrationPath := filepath.Join(migrationsPath, file)
		sqlContent, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		log.Printf("db: applying migration %s", file)
		if err := applyMigrationTx(db, file, string(sqlContent)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	log.Printf("db: schema up to date (%d migration(s) applied this run)", len(pending))
	return nil
}

// ensureMigrationsTable creates the version-tracking table on first use.
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS aps_schema_migrations (
			id SERIAL PRIMARY KEY,
			version VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// appliedMigrationVersions returns the set of migration filenames already
// recorded as applied.
func appliedMigrationVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM aps_schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// pendingMigrationFiles lists the *.up.sql files under migrationsPath, in
// filename order, that aren't present in applied.
func pendingMigrationFiles(migrationsPath string, applied map[string]bool) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(migrationsPath, "*.up.sql"))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)

	var pending []string
	for _, name := range names {
		if applied[name] {
			continue
		}
		pending = append(pending, name)
	}
	return pending, nil
}

// applyMigrationTx runs one migration's SQL and records its version in the
// same transaction, so a failed migration never leaves a partial version
// marker behind.
func applyMigrationTx(db *sql.DB, version string, sqlContent string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqlContent); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO aps_schema_migrations (version) VALUES ($1)", version); err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}

	return tx.Commit()
}
