package migrations

import "embed"

// MigrationsFS holds the goose SQL migrations for the postgres order-count backend.
//
//go:embed *.sql
var MigrationsFS embed.FS
