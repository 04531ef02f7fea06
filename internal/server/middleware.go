package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/handlers"
)

const requestIDHeader = "X-Request-ID"

// withMiddleware applies logging, then CORS, then panic recovery around the router
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.recoveryMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

// loggingMiddleware tags each request with an id and logs its outcome.
// Server errors are logged at warn, everything else at debug.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = common.NewRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logEvent := s.app.Logger.Debug()
		if rw.statusCode >= http.StatusInternalServerError {
			logEvent = s.app.Logger.Warn()
		}
		logEvent = logEvent.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path)
		if r.URL.RawQuery != "" {
			logEvent = logEvent.Str("query", r.URL.RawQuery)
		}
		logEvent.
			Int("status", rw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// corsMiddleware allows read access from any origin and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		h.Set("Access-Control-Expose-Headers", requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns a handler panic into a 500 JSON error
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.app.Logger.Error().
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("path", r.URL.Path).
					Msg("Recovered from handler panic")
				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter records the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the /ws upgrade take over the connection through the wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
