// Package migrations embeds the SQL schema migrations applied by cmd/migrate
// and by the integration test helpers.
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
