package migrations

import _ "embed"

//go:embed 2026101501_create_users.up.sql
var usersUpSQL string

func init() {
	Migrations.MustRegister(execSQL(usersUpSQL), execSQL(`DROP TABLE IF EXISTS users`))
}
