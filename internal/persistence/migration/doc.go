// Package migration applies versioned SQL schema changes.
//
// Migration files are read from an fs.FS (usually an embed.FS owned by the
// store package) and must be named {version}_{description}.sql, e.g.
// "001_initial_schema.sql". Each file is executed inside its own transaction
// and recorded in a schema_migrations table so it is never applied twice.
//
// Example usage:
//
//	manager := migration.NewManager(db, migration.SQLite, migrationFS, "migrations", logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
