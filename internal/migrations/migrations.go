package migrations

import (
	_ "embed"
)

//go:embed schema.sql
var initialSchema string

// GetInitialSchema returns the embedded database schema.
func GetInitialSchema() string {
	return initialSchema
}
