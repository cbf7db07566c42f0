package migrations

import _ "embed"

//go:embed 2026101503_create_guessed_names.up.sql
var guessedNamesUpSQL string

func init() {
	Migrations.MustRegister(execSQL(guessedNamesUpSQL), execSQL(`DROP TABLE IF EXISTS guessed_names`))
}
