package migration

import "strconv"

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name            string
	VersionTableDDL string
	placeholder     func(n int) string
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

var (
	// SQLite uses positional question marks.
	SQLite = Dialect{
		Name: "sqlite",
		VersionTableDDL: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)`,
		placeholder: func(int) string { return "?" },
	}

	// Postgres uses numbered $n parameters.
	Postgres = Dialect{
		Name: "postgres",
		VersionTableDDL: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)`,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)
