// Package middleware holds the HTTP middleware shared by every route:
// request ids, request-scoped loggers, access logs, Prometheus metrics,
// body limits and security headers.
package middleware

import (
	"encoding/json"
	"net/http"
)

type contextKey string

// statusRecorder captures the status code and body size written by the
// wrapped handler. Unwrap lets http.ResponseController reach the underlying
// writer so streaming handlers can still flush.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	wroteHeader  bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeError writes the API error shape. It mirrors handler.ErrorResponse
// without importing it (handler imports middleware for GetLogger).
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
