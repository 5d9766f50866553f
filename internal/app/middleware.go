package app

import (
	"net/http"
	"time"

	"github.com/newrey/llm-gateway/internal/util"
)

// clientIP resolves the caller's IP, honouring X-Forwarded-For/X-Real-IP
// only when the server is configured to trust the immediate peer.
func (a *Application) clientIP(r *http.Request) string {
	return util.GetClientIP(r, a.trustProxyHeaders, a.trustedProxyCIDRs)
}

// withRequestID stamps every inbound request with a correlation ID,
// echoed back on the response so a caller can match logs to a request.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = util.GenerateRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		next(w, r)
	}
}

// withLogging logs one line per request with method, path, status and
// latency, in the styled logger's terse key=value idiom.
func (a *Application) withLogging(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		a.logger.Info("request",
			"route", name,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started).String(),
			"client_ip", a.clientIP(r),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
