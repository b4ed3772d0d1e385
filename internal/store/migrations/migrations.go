// Package migrations embeds the SQL schema for camlog.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
