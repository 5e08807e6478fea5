// Package assets embeds the files the binaries need at runtime.
package assets

import "embed"

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed templates/email/*
var EmailTemplates embed.FS

//go:embed common-passwords.txt.gz
var CommonPasswords []byte
