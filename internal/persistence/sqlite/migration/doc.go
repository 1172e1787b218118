// Package migration applies numbered SQL migrations to a SQLite database.
//
// Migration files follow the {version}_{description}.sql naming convention and are read
// from an fs.FS, normally an embedded directory. Applied versions are tracked in the
// schema_migrations table so each file runs at most once, inside its own transaction.
package migration
