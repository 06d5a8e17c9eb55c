package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/nichesite/directory/internal/infrastructure/config"
)

// Dialect identifies the SQL flavor of the connected database
type Dialect string

const (
	Postgres Dialect = config.DriverPostgres
	MySQL    Dialect = config.DriverMySQL
	SQLite   Dialect = config.DriverSQLite
)

// ParseDialect maps a configured driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch d := Dialect(driver); d {
	case Postgres, MySQL, SQLite:
		return d, nil
	case "":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DriverName returns the database/sql driver name
func (d Dialect) DriverName() string {
	return string(d)
}

// Flavor returns the sqlbuilder flavor used to render placeholders
func (d Dialect) Flavor() sqlbuilder.Flavor {
	switch d {
	case MySQL:
		return sqlbuilder.MySQL
	case SQLite:
		return sqlbuilder.SQLite
	default:
		return sqlbuilder.PostgreSQL
	}
}

// SupportsReturning reports whether INSERT ... RETURNING is available
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// UpsertClause renders the conflict clause appended to an INSERT so that a
// row colliding on conflictCols has updateCols overwritten with the new values.
func (d Dialect) UpsertClause(conflictCols, updateCols []string) string {
	sets := make([]string, 0, len(updateCols))
	if d == MySQL {
		for _, col := range updateCols {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", col, col))
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	for _, col := range updateCols {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(conflictCols, ", "),
		strings.Join(sets, ", "))
}
