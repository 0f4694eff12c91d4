// Package migrations embeds the SQL migrations of the terminal's local
// journal database.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
