/*
Package tracing provides lightweight request tracing for the registry.

Each HTTP request gets a span. The trace ID is taken from the X-Trace-ID
request header when present, otherwise a new UUID is minted; X-Span-ID
becomes the parent span. Both IDs are returned on the response so a client
can correlate its call with the server logs.

Finished spans are queued on a buffered channel and logged through zap by a
single collector goroutine. Close drains the queue.

	tracer := tracing.New("cpm-registry", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
