// Package migrations embeds the tenant directory schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
