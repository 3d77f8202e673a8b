// Package schema embeds the PostgreSQL schema shared by the content store,
// API keys and activity snapshots.
package schema

import _ "embed"

//go:embed schema.sql
var SQL string
