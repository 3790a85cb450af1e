// internal/repository/postgres/migrations.go
package postgres

import "embed"

// Migrations holds the schema files applied by db.ApplyMigrations, in name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the .sql files.
const MigrationsDir = "migrations"
