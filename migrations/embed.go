// Package migrations embeds the schema migration SQL files so tests can
// drive a test database off the exact same statements cmd/migrate applies
// in production, instead of maintaining a second, drift-prone copy.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
