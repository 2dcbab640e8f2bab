// Package migrations встраивает SQL-миграции для обоих поддерживаемых хранилищ.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS
