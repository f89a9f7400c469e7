// Package app is the composition root for the wave analytics server.
// NewApplication loads configuration, initializes logging and
// OpenTelemetry, builds the wave registry, color store, and services,
// and wires the chi router; Run starts the HTTP server and blocks
// until SIGINT or SIGTERM.
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Shutdown drains active requests, notifies websocket clients before
// closing the hub, cancels running pipeline work, and flushes the
// OpenTelemetry providers. Initialization errors are returned rather
// than calling os.Exit, so main controls the exit path.
package app
