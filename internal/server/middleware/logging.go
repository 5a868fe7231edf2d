package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging writes one structured access log line per request: method, path,
// status, duration, response size, and the request id when present.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			}
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				attrs = append(attrs, slog.String("request_id", rid))
			}
			l.LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		})
	}
}
