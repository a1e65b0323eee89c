package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/polittech/stratagem/internal/tracing"
)

func TestWithLoggingTracing(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	engine := gin.New()
	engine.Use(WithLoggingTracing())

	engine.GET("/", func(c *gin.Context) {
		traceID, ok := tracing.GetTraceID(c.Request.Context())
		assert.True(t, ok)
		assert.NotEmpty(t, traceID)
		assert.Contains(t, traceID, "st-")

		requestID, ok := tracing.GetRequestID(c.Request.Context())
		assert.True(t, ok)
		assert.Contains(t, requestID, "sr-")

		op, ok := tracing.GetOperationName(c.Request.Context())
		assert.True(t, ok)
		assert.Equal(t, "GET /", op)

		c.Status(http.StatusOK)
	})

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestHeader))
}

func TestWithLoggingTracingExistingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "st-existing-trace-id")

	w := httptest.NewRecorder()

	engine := gin.New()
	engine.Use(WithLoggingTracing())

	engine.GET("/", func(c *gin.Context) {
		traceID, ok := tracing.GetTraceID(c.Request.Context())
		assert.True(t, ok)
		assert.Equal(t, "st-existing-trace-id", traceID)
		c.Status(http.StatusOK)
	})

	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
