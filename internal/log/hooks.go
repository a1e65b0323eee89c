package log

import (
	"context"

	"github.com/polittech/stratagem/internal/contexts"
)

// Hook derives additional fields from the context before an entry is written.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (fn HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return fn(ctx, msg, fields...)
}

// traceFields propagates correlation identifiers from the context into log entries.
func traceFields(ctx context.Context, msg string, fields ...Field) []Field {
	if ctx == nil {
		return fields
	}

	if traceID, ok := contexts.GetTraceID(ctx); ok {
		fields = append(fields, String("trace_id", traceID))
	}

	if requestID, ok := contexts.GetRequestID(ctx); ok {
		fields = append(fields, String("request_id", requestID))
	}

	if operationName, ok := contexts.GetOperationName(ctx); ok {
		fields = append(fields, String("operation_name", operationName))
	}

	if chatID, ok := contexts.GetChatID(ctx); ok {
		fields = append(fields, Int64("chat_id", chatID))
	}

	return fields
}
