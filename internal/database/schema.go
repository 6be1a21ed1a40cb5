package database

import _ "embed"

// Schema is the full schema produced by applying every migration. Tests apply
// it directly to in-memory databases; it is regenerated by go generate.
//
//go:embed sqlc/schema.sql
var Schema string
