// Package migrations embeds the index schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
