// Package middleware provides the gin middleware the registry mounts in front
// of its handlers.
//
//   - CORS: gin-contrib/cors, mounted only when CORS_ENABLED is set
//   - RateLimit: per-IP token bucket, idle clients are dropped after a few minutes
//   - GlobalRateLimit: one token bucket shared by every caller
//   - Recovery: panics become a JSend error envelope and a zap log entry
//
// Rejections use the same JSend envelopes as the API handlers.
//
//	router.Use(middleware.Recovery(logger))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
