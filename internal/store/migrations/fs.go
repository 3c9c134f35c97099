// Package migrations embeds the journal database schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
