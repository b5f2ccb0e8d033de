// Package migrations はgooseで適用するSQLマイグレーションを埋め込みます。
package migrations

import "embed"

// Migrations はマイグレーションファイル一式です。
//
//go:embed *.sql
var Migrations embed.FS
