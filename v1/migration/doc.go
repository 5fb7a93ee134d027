// Package migration drives the collection lifecycle of vecmigrate: it bootstraps the
// source and target collections, bulk loads records, migrates one collection into
// another and runs sample queries.
//
// # Migrating
//
// Migrate reads the source collection through vectordb.Service.Iterate, reduces every
// record to one vector slot with transfer.SelectVector and writes the records to the
// target with the transfer engine. The pair is guarded by a watermark.Store marker:
//
//	m, err := migration.NewMigrator(cfg, adapter, store,
//	    migration.WithArchiver(archive),
//	    migration.WithReporter(reporter),
//	)
//	if err != nil {
//	    return err
//	}
//	out, err := m.Migrate(ctx)
//	switch {
//	case err != nil:
//	    return err
//	case out.Skipped:
//	    log.Printf("already migrated by run %s", out.Mark.RunID)
//	}
//
// After every run the failed records are archived (when an Archiver is configured and
// Config.ArchiveFailures is set) and a rabbit.Report is published (when a
// ReportPublisher is configured). Failures of either step are logged and do not
// change the outcome.
package migration
