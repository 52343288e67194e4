// Package pkg provides shared constants for nibb.
package pkg

// On-disk layout names.
const (
	// DefaultDirName is the store directory created under the user's home.
	DefaultDirName = ".nibb"

	// SnippetsDirName holds one sub-directory per snippet for the fs backend.
	SnippetsDirName = "snippets"

	// BackupsDirName holds export files.
	BackupsDirName = "backups"

	// DefaultBackupName is the export file used when none is given.
	DefaultBackupName = "snippets.json"

	// SQLiteFileName is the database file for the sqlite backend.
	SQLiteFileName = "nibb.db"

	// BadgerDirName is the data directory for the badger backend.
	BadgerDirName = "badger"
)
