// Package httpapi is the HTTP boundary: routes, status mapping, and the
// uniform error envelope.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mediafs/mediad/pkg/media"
	"github.com/mediafs/mediad/pkg/server/middleware"
	"github.com/mediafs/mediad/pkg/xerrors"
)

const (
	fetchPrefix    = "/system/media/get/"
	uploadPath     = "/internal/media/upload"
	healthzPath    = "/healthz"
	internalPrefix = "/internal/"

	defaultMaxUploadBytes = 32 << 20
)

// Server exposes the media service over HTTP.
type Server struct {
	Service *media.Service
	Log     *logrus.Logger
	Opts    Options
}

// Options configure auth, rate limiting, and the upload size cap.
type Options struct {
	APIKey         string
	RateLimit      middleware.RateLimitOptions
	AuthHeader     string
	MaxUploadBytes int64
}

// Start begins listening on addr until ctx is canceled, then shuts down
// gracefully with a 5 second drain.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	return srv.ListenAndServe()
}

func (s *Server) router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(healthzPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	mux.HandleFunc(fetchPrefix, s.handleFetch)
	mux.HandleFunc(uploadPath, s.handleUpload)
	mux.HandleFunc(uploadPath+"/", s.handleUpload)
	mux.HandleFunc("/", s.handleNotFound)
	return s.applyMiddleware(mux)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.reject(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, fetchPrefix), "/")
	id, err := parseMediaID(raw)
	if err != nil {
		s.writeError(w, r, xerrors.Wrap(xerrors.KindBadRequest, "fetch", "invalid media id", err))
		return
	}
	m, err := s.Service.Fetch(r.Context(), id, r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveMedia(w, r, m)
}

func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request, m *media.Media) {
	w.Header().Set("Content-Type", m.Blob.Mimetype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", m.Filename))
	if m.Credential != "" {
		w.Header().Set(s.authHeader(), m.Credential)
	}
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	stream := m.Chunks()
	for chunk := stream.Next(); chunk != nil; chunk = stream.Next() {
		if _, err := w.Write(chunk); err != nil {
			s.logger().Warnf("request to %s aborted mid-stream: %v", r.URL.Path, err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSuffix(r.URL.Path, "/") != uploadPath {
		s.writeError(w, r, xerrors.E(xerrors.KindNotFound, "upload", "not found"))
		return
	}
	if r.Method != http.MethodPost {
		s.reject(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes()))
	if err != nil {
		s.writeError(w, r, xerrors.Wrap(xerrors.KindBadRequest, "upload", "request body too large", err))
		return
	}
	if _, err := s.Service.Upload(r.Context(), payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadAck{Success: true})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, xerrors.E(xerrors.KindNotFound, "http", "not found"))
}

func parseMediaID(raw string) (media.ID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("media id must not be negative")
	}
	return media.ID(n), nil
}

// envelope is the uniform error body; uploadAck is the success body.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type uploadAck struct {
	Success bool `json:"success"`
}

// writeError renders err through the kind table. Unclassified failures
// log the full chain and surface only a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(xerrors.KindOf(err))
	message := xerrors.Message(err)
	if status >= http.StatusInternalServerError {
		message = "internal server error"
		s.logger().Errorf("request to %s resulted in %d: %v", r.URL.Path, status, err)
	} else {
		s.logger().Warnf("request to %s resulted in %d: %s", r.URL.Path, status, message)
	}
	writeJSON(w, status, envelope{Message: message})
}

// reject renders a boundary failure that has a status but no kind.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.logger().Warnf("request to %s resulted in %d: %s", r.URL.Path, status, message)
	writeJSON(w, status, envelope{Message: message})
}

func statusOf(kind xerrors.Kind) int {
	switch kind {
	case xerrors.KindNotFound:
		return http.StatusNotFound
	case xerrors.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return middleware.Wrap(handler,
		middleware.RequestLog(s.Log),
		middleware.RateLimit(s.Opts.RateLimit),
		middleware.APIKeyAuth(s.Opts.APIKey, internalPrefix),
	)
}

func (s *Server) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func (s *Server) authHeader() string {
	if s.Opts.AuthHeader != "" {
		return s.Opts.AuthHeader
	}
	return media.DefaultAuthHeader
}

func (s *Server) maxUploadBytes() int64 {
	if s.Opts.MaxUploadBytes > 0 {
		return s.Opts.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}
