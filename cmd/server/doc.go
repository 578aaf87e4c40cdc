// Package main is the entry point for the CPM registry server.
//
// The server stores cpm package tarballs and their metadata under a storage
// directory and serves them over HTTP.
//
// Configuration:
//   - Environment variables (PORT, HOST, STORAGE_DIR, LOG_LEVEL, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve
//	./server -port 8000 -storage /var/lib/cpm
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
//	# Write the OpenAPI document and exit
//	./server -openapi openapi.yaml
//
//	# Report tarballs missing from storage; exits 1 if any
//	./server -verify
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
