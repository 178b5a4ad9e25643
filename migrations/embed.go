// Package migrations holds the versioned schema for the billing tables.
package migrations

import "embed"

// FS contains every up and down script in this directory.
//
//go:embed *.sql
var FS embed.FS
