/*
Package monitoring provides Prometheus metrics for the registry.

# Overview

Each Metrics value owns its own prometheus.Registry, so several servers (or
tests) can coexist in one process.

# Features

- HTTP request metrics (latency, throughput, size) labelled by route template
- Publish outcomes, duration and tarball size
- Query outcomes per operation
- Index size, snapshot write latency and corrupt-snapshot count
- Go runtime, process and uptime metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	svc := registry.NewService(blobs, index).WithMetrics(metrics)
*/
package monitoring
