package membership

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/emails
var emailsFS embed.FS

//go:embed data/passwords/common.txt
var commonPasswords string

// MigrationsDir is the directory of the migration files inside GetMigrationsFS
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetEmailTemplatesFS returns the email templates rooted at their directory
func GetEmailTemplatesFS() fs.FS {
	sub, err := fs.Sub(emailsFS, "data/emails")
	if err != nil {
		// the directory is embedded at build time
		panic(err)
	}
	return sub
}
