package migrations

import _ "embed"

//go:embed 2026101502_create_category_progress.up.sql
var categoryProgressUpSQL string

func init() {
	Migrations.MustRegister(execSQL(categoryProgressUpSQL), execSQL(`DROP TABLE IF EXISTS category_progress`))
}
