// Package migrations embeds the SQL migration files so they can be used
// by the goose programmatic API at server start and in tests.
//
// 00001 creates and seeds the reference tables, 00002 the eco-courses and
// 00003 the carbon session tables.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time.
// Pass this to goose.NewProvider instead of relying on
// a filesystem path at runtime.
//
//go:embed *.sql
var FS embed.FS
