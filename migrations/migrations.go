// Package migrations embeds the SQL schema so the worker binary can apply it
// without a checkout of the repository.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
