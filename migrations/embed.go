// Package migrations embeds the capture history schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/dccutils-server/internal/infrastructure/database"
)

//go:embed *.up.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
