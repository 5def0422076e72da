package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromCtx returns the id RequestLog assigned, or "".
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLog assigns each request an id, echoes it as X-Request-ID, and
// logs method, path, status, bytes, and duration on completion.
func RequestLog(log *logrus.Logger) HTTPMiddleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDKey, reqID)
			w.Header().Set("X-Request-ID", reqID)
			mw := &metaWriter{ResponseWriter: w}
			next.ServeHTTP(mw, r.WithContext(ctx))
			log.WithFields(logrus.Fields{
				"request_id": reqID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     mw.Status(),
				"bytes":      mw.size,
				"duration":   time.Since(start),
			}).Info("request complete")
		})
	}
}

// metaWriter records the status and byte count of a response. Flush
// passes through so chunked responses keep streaming behind it.
type metaWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (m *metaWriter) WriteHeader(status int) {
	if m.status == 0 {
		m.status = status
	}
	m.ResponseWriter.WriteHeader(status)
}

func (m *metaWriter) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.size += n
	return n, err
}

func (m *metaWriter) Flush() {
	if f, ok := m.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (m *metaWriter) Status() int {
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}
