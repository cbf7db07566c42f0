package migrations

import _ "embed"

//go:embed 2026101504_create_catalog_artifacts.up.sql
var catalogArtifactsUpSQL string

func init() {
	Migrations.MustRegister(execSQL(catalogArtifactsUpSQL), execSQL(`DROP TABLE IF EXISTS catalog_artifacts`))
}
