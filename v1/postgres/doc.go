// Package postgres wraps gorm with connection monitoring and automatic reconnection.
//
// NewPostgres opens the pool; MonitorConnection pings the server on an interval and
// RetryConnection swaps in a fresh pool when a ping fails. Both loops are started by
// FXModule. Callers obtain the current handle with DB or WithContext on every use.
//
//	pg, err := postgres.NewPostgres(cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer pg.GracefulShutdown()
//
//	err = pg.Transaction(ctx, func(tx *gorm.DB) error {
//	    return tx.Create(&row).Error
//	})
//	if postgres.IsUniqueViolation(err) {
//	    // row exists
//	}
package postgres
