package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"detectserver/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// RequestLogger logs method, path, status, and duration of every request.
// Server errors are logged at error level, client errors at warning level.
func RequestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			switch {
			case rec.status >= http.StatusInternalServerError:
				logger.Error("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
			case rec.status >= http.StatusBadRequest:
				logger.Warning("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
			default:
				logger.Info("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
			}
		})
	}
}
