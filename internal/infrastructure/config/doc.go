// Package config provides 12-factor configuration management for the registry.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/server override individual values.
//
// Configuration Sections:
//   - Server: listen address, public URL, shutdown timeout
//   - Storage: storage root and upload size limit
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - CORS: cross-origin access (disabled by default)
//   - Docs: OpenAPI document output path
//
// Example Usage:
//
//	cfg, err := config.Load()
//	fmt.Printf("Serving %s on %s\n", cfg.Storage.Dir, cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST, PUBLIC_URL, SHUTDOWN_TIMEOUT
//   - STORAGE_DIR, MAX_UPLOAD_BYTES
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ENABLED, API_SPEC_PATH
package config
