// Package migrations embeds the Postgres schema applied by the server on
// startup (DB_MIGRATE=true) and by integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
