package middleware

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

const requestInfoKey contextKey = "requestInfo"

// requestInfo lets inner middleware report the caller back to the logger.
type requestInfo struct {
	username string
}

func recordUser(ctx context.Context, username string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.username = username
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func LoggerMiddleware(logger hclog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			info := &requestInfo{username: "anonymous"}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			args := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", rw.statusCode,
				"duration", time.Since(start),
				"user", info.username,
			}
			switch {
			case rw.statusCode >= 500:
				logger.Error("request", args...)
			case rw.statusCode >= 400:
				logger.Warn("request", args...)
			default:
				logger.Info("request", args...)
			}
		})
	}
}
