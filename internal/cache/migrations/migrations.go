// Package migrations embeds the completion cache schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
