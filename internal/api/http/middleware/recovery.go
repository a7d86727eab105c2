package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const panicBody = `{"status":"error","message":"internal server error"}`

// Recovery turns a handler panic into a 500 response. When the handler
// already started its response the connection is left to net/http, which
// aborts it.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newStatusRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				err := fmt.Errorf("panic: %v", v)
				span := trace.SpanFromContext(r.Context())
				span.RecordError(err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, "panic")

				log.Error().
					Err(err).
					Str("method", r.Method).
					Str("route", route(r)).
					Str("user_id", r.Header.Get(HeaderUserID)).
					Bool("response_started", rw.written).
					Str("stack", string(debug.Stack())).
					Msg("HTTP handler panic recovered")

				if rw.written {
					panic(http.ErrAbortHandler)
				}
				rw.Header().Set("Content-Type", "application/json")
				rw.WriteHeader(http.StatusInternalServerError)
				_, _ = rw.Write([]byte(panicBody))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
