// Package migrations embeds the journal schema and registers it with the
// database package.
package migrations

import (
	"embed"

	"github.com/casalprim/interfono/internal/infrastructure/database"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "sql"
}
