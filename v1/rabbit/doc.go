// Package rabbit publishes transfer run reports to a RabbitMQ exchange.
//
// RabbitClient holds a confirm-mode channel and reconnects in the background when the
// connection drops; Publish waits for the broker's acknowledgement. Reporter turns a
// transfer.Result into a JSON Report and publishes it under "<routing key>.<status>",
// so consumers can bind to e.g. "vecmigrate.transfer.fatal" only. The OpenTelemetry
// trace context of the run travels in the message headers.
//
//	client, err := rabbit.NewClient(rabbit.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer client.GracefulShutdown()
//
//	reporter := rabbit.NewReporter(client, "vecmigrate.transfer")
//	report := rabbit.NewReport("migration", result)
//	report.Source, report.Target = "Movies", "MoviesCopy"
//	if err := reporter.Publish(ctx, report); err != nil {
//	    log.Warn("report not delivered", err)
//	}
package rabbit
