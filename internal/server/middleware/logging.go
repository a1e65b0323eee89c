package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/polittech/stratagem/internal/tracing"
)

const (
	// TraceHeader carries a caller-supplied trace id into the ops server.
	TraceHeader = "ST-Trace-Id"
	// RequestHeader returns the id assigned to each request.
	RequestHeader = "ST-Request-Id"
)

// WithLoggingTracing saves the trace ID and request ID to the request context.
// So the logger can log the trace ID and request ID in the next logs.
func WithLoggingTracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Use the trace header from the request first.
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = tracing.GenerateTraceID()
		}

		requestID := tracing.GenerateRequestID()
		c.Header(RequestHeader, requestID)

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, requestID)
		ctx = tracing.WithOperationName(ctx, fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
