// Package playback hands stored clips to browsers and players over HTTP:
// byte-range streaming, download-as-file, and a JSON matchup listing.
package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"matchup-go/internal/matchup"
)

// ClipService is the part of the matchup service the server reads from.
type ClipService interface {
	GetClip(ctx context.Context, key string) (*matchup.StoredClip, error)
	ListMatchups(ctx context.Context) ([]*matchup.MatchupRecord, error)
}

// Server serves clips from a ClipService.
type Server struct {
	httpServer *http.Server
	logger     matchup.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, svc ClipService, logger matchup.Logger) *Server {
	if logger == nil {
		logger = matchup.NewNopLogger()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(svc, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting playback server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down playback server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// NewRouter builds the playback routes.
func NewRouter(svc ClipService, logger matchup.Logger) *chi.Mux {
	if logger == nil {
		logger = matchup.NewNopLogger()
	}
	r := chi.NewRouter()

	r.Use(requestIDMiddleware())
	r.Use(recoveryMiddleware(logger))
	r.Use(loggingMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/matchups", listMatchupsHandler(svc, logger))
	r.Get("/clips/{key}", clipHandler(svc, logger))

	return r
}

// MatchupResponse is one entry of GET /matchups.
type MatchupResponse struct {
	ID          string    `json:"id"`
	HitterName  string    `json:"hitter_name"`
	SwingIndex  int       `json:"swing_index"`
	PitcherName string    `json:"pitcher_name"`
	PitchIndex  int       `json:"pitch_index"`
	Variant     string    `json:"variant"`
	Offset      int       `json:"offset"`
	Clamped     bool      `json:"clamped"`
	TotalFrames int       `json:"total_frames"`
	ClipURL     string    `json:"clip_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func listMatchupsHandler(svc ClipService, logger matchup.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.ListMatchups(r.Context())
		if err != nil {
			logger.Error("listing matchups failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list matchups", "INTERNAL_ERROR")
			return
		}
		resp := make([]MatchupResponse, len(recs))
		for i, m := range recs {
			resp[i] = MatchupResponse{
				ID:          m.ID,
				HitterName:  m.HitterName,
				SwingIndex:  m.SwingIndex,
				PitcherName: m.PitcherName,
				PitchIndex:  m.PitchIndex,
				Variant:     string(m.Variant),
				Offset:      int(m.Offset),
				Clamped:     m.Clamped,
				TotalFrames: m.TotalFrames,
				ClipURL:     "/clips/" + m.ClipKey,
				CreatedAt:   m.CreatedAt,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// clipHandler streams a stored clip with Range support. ?download=1 asks the
// browser to save it as a file.
func clipHandler(svc ClipService, logger matchup.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		clip, err := svc.GetClip(r.Context(), key)
		if err != nil {
			if matchup.IsCode(err, matchup.ErrNotFound) {
				writeError(w, http.StatusNotFound, "clip not found", string(matchup.ErrNotFound))
				return
			}
			logger.Error("reading clip failed", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read clip", "INTERNAL_ERROR")
			return
		}

		name := key + matchup.ClipExtension(clip.MimeType)
		w.Header().Set("Content-Type", clip.MimeType)
		if r.URL.Query().Get("download") != "" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		}
		http.ServeContent(w, r, name, clip.CreatedAt, bytes.NewReader(clip.Data))
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ulid.Make().String()
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		})
	}
}

func loggingMiddleware(logger matchup.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			id, _ := r.Context().Value(requestIDKey).(string)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", id,
			)
		})
	}
}

func recoveryMiddleware(logger matchup.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					id, _ := r.Context().Value(requestIDKey).(string)
					logger.Error("panic recovered", "error", err, "request_id", id)
					writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
