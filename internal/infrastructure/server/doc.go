// Package server wires the registry together and owns the HTTP lifecycle.
//
// New builds, from a config.Config:
//   - the registry index and file blob store under STORAGE_DIR
//   - the registry service with logging and metrics
//   - the gin router with recovery, tracing, metrics, optional CORS and
//     rate limiting, the API routes and /metrics
//   - gzip response compression around the router
//
// Run listens and serves until its context is cancelled, then shuts down
// within SHUTDOWN_TIMEOUT.
//
//	srv, err := server.New(config.LoadOrDefault(), logger)
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.Run(ctx)
package server
