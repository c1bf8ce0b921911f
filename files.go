package auth

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetDialectMigrationsFS returns the migrations for a bun dialect name,
// either "sqlite" or "pg".
func GetDialectMigrationsFS(dialectName string) (fs.FS, error) {
	dir := "sqlite"
	if dialectName == "pg" || dialectName == "postgres" {
		dir = "postgres"
	}
	return fs.Sub(migrationsFS, "data/sql/migrations/"+dir)
}
