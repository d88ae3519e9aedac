// Package migrations holds the inventory schema as golang-migrate SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
