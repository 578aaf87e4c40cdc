package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanNewTrace(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")

	assert.NotEmpty(t, span.TraceID)
	assert.NotEmpty(t, span.SpanID)
	assert.Empty(t, span.ParentID)
	assert.Equal(t, "test", span.Service)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.Equal(t, span.SpanID, GetSpanID(ctx))
}

func TestStartSpanChild(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestSpanErrorKeepsStatus(t *testing.T) {
	span := &Span{Tags: map[string]string{}}
	span.SetError(errors.New("boom"))
	assert.Equal(t, 500, span.StatusCode)

	span = &Span{Tags: map[string]string{}}
	span.SetStatus(404)
	span.SetError(errors.New("missing"))
	assert.Equal(t, 404, span.StatusCode)
}

func TestInjectTraceContext(t *testing.T) {
	ctx := WithTrace(context.Background(), "trace-1", "span-1")
	headers := map[string]string{}
	InjectTraceContext(ctx, headers)

	assert.Equal(t, "trace-1", headers[TraceHeader])
	assert.Equal(t, "span-1", headers[SpanHeader])

	empty := map[string]string{}
	InjectTraceContext(context.Background(), empty)
	assert.Empty(t, empty)
}

func TestCloseDrainsSpans(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))

	for i := 0; i < 5; i++ {
		span, _ := tracer.StartSpan(context.Background(), "op")
		span.Finish()
		tracer.Submit(span)
	}
	tracer.Close()

	assert.Equal(t, 5, logs.FilterMessage("span completed").Len())

	// Submitting after close must not panic.
	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.Submit(span)
	tracer.Close()
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/packages/:name", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/packages/left-pad", nil)
	req.Header.Set(TraceHeader, "incoming-trace")
	req.Header.Set(SpanHeader, "incoming-span")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	tracer.Close()

	assert.Equal(t, TraceID("incoming-trace"), seen)
	assert.Equal(t, "incoming-trace", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))
	assert.NotEqual(t, "incoming-span", w.Header().Get(SpanHeader))

	entries := logs.FilterMessage("span completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET /packages/:name", fields["operation"])
	assert.Equal(t, "incoming-span", fields["parent_id"])
	assert.Equal(t, "404", fields["http.status"])
}
