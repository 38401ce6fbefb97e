// Package server provides the HTTP server that hosts the metrics route and
// the health endpoints of a worker process.
//
// # Routes
//
// Extensions register routes with Handle. A route marked ExcludeFromDocs is
// served like any other but left out of DocumentedRoutes, the list an API
// documentation generator reads:
//
//	srv := server.New(cfg.Server, server.Options{Version: version, Logger: logger})
//	err := srv.Handle(server.Route{
//	    Path:            "/metrics",
//	    Handler:         handler,
//	    ExcludeFromDocs: true,
//	})
//
// # Middleware
//
// Every request passes, outermost first, through panic recovery, tracing,
// request ID assignment (X-Request-ID, a UUID unless the client sent one) and
// request logging. Registered routes are also instrumented: once Instrument
// is called, requests_total, request_duration_seconds and requests_in_flight
// are recorded in the multiprocess registry with the route path as label.
//
// # TLS
//
// With server.tls.enabled the listener serves HTTPS. The certificate pair is
// watched with fsnotify and reloaded when either file is rewritten; a pair
// that fails to load or is outside its validity window is rejected and the
// previous one stays in use.
//
// # Lifecycle
//
// Start serves until its context is cancelled. Shutdown stops accepting
// requests, waits for in-flight requests up to server.shutdown_timeout and
// then runs the hooks registered with OnShutdown in order. The multiprocess
// extension uses such a hook to close its process files and retire them.
package server
