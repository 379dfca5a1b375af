// Package migrations bundles the SQL schema migrations with the binary so
// deployments do not need the migration files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
