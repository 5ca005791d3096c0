package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

type traceKey struct{}

// WithTraceID stores id on ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the request trace id or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// Tracing reuses an incoming X-Trace-ID or assigns a new one, and echoes it
// on the response.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}
