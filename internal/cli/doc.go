// Package cli implements the vecmigrate command line. Every command loads the
// configuration, starts an fx application with the components the configuration
// enables, runs one operation of migration.Migrator and stops the application.
package cli
