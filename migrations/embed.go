// Package migrations embeds the registry schema migrations into the binary.
package migrations

import "embed"

// FS holds every *.sql migration in this directory, at the root of the FS.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS that holds the migrations.
const Dir = "."
