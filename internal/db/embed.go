package db

import "embed"

// MigrationFS embeds the SQL migration files applied by `parleyd migrate`
// and by serve when database.auto_migrate is set.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
