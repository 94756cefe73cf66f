package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// principalInfo is filled by Authenticate deeper in the chain so the access
// log can name the caller and tenant.
type principalInfo struct {
	userID    string
	accountID string
}

type principalInfoKey struct{}

func withPrincipalInfo(ctx context.Context) (context.Context, *principalInfo) {
	info := &principalInfo{}
	return context.WithValue(ctx, principalInfoKey{}, info), info
}

// notePrincipal records the authenticated caller for the access log. It is
// a no-op when the Logger middleware is not installed.
func notePrincipal(ctx context.Context, userID, accountID string) {
	if info, ok := ctx.Value(principalInfoKey{}).(*principalInfo); ok {
		info.userID = userID
		info.accountID = accountID
	}
}

// Logger returns a middleware that logs HTTP requests.
// Request headers are never logged; the caller is identified by ids only.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx, info := withPrincipalInfo(r.Context())
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}

			if traceID := GetTraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			if info.userID != "" {
				attrs = append(attrs, slog.String("user_id", info.userID))
			}
			if info.accountID != "" {
				attrs = append(attrs, slog.String("account_id", info.accountID))
			}

			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(ctx, level, "http request", attrs...)
		})
	}
}
