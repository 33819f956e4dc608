// Package migrations embeds SQL migration files into the binary.
//
// Each supported driver has its own directory (sqlite/, postgres/); the
// database package picks the one matching the open connection.
package migrations

import (
	"embed"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
