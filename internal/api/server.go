package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"youtube-rag/internal/memory"
	"youtube-rag/internal/models"
	"youtube-rag/internal/rag"
	"youtube-rag/internal/session"
	"youtube-rag/internal/youtube"
)

const maxBodyBytes = 1 << 20

type CreateSessionRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

type CreateSessionResponse struct {
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	YouTubeURL string `json:"youtube_url"`
	VideoID    string `json:"video_id"`
}

type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type AskResponse struct {
	SessionID  string           `json:"session_id"`
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	AnswerHTML string           `json:"answer_html,omitempty"`
	Sources    []models.Passage `json:"sources,omitempty"`
}

type SessionSummary struct {
	SessionID  string `json:"session_id"`
	YouTubeURL string `json:"youtube_url"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
}

type HistoryResponse struct {
	SessionID    string        `json:"session_id"`
	Conversation []memory.Turn `json:"conversation"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server exposes a session registry over HTTP.
type Server struct {
	registry    *session.Registry
	markdown    goldmark.Markdown
	withSources bool
}

type Option func(*Server)

// WithSources includes the retrieved passages in ask responses.
func WithSources(enabled bool) Option {
	return func(s *Server) { s.withSources = enabled }
}

func NewServer(registry *session.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped with CORS and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /create-session", s.handleCreateSession)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /session/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /session/{id}/history", s.handleHistory)
	mux.HandleFunc("DELETE /session/{id}/history", s.handleClearHistory)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = enableCORS(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "YouTube RAG API is running",
		"active_sessions": s.registry.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.YouTubeURL = strings.TrimSpace(req.YouTubeURL)
	if req.YouTubeURL == "" {
		writeError(w, http.StatusBadRequest, "youtube_url is required")
		return
	}

	sess, err := s.registry.Create(r.Context(), req.YouTubeURL)
	if err != nil {
		// every creation failure is reported as a bad request, naming the cause
		writeError(w, http.StatusBadRequest, creationDetail(err))
		return
	}
	writeJSON(w, http.StatusOK, CreateSessionResponse{
		SessionID:  sess.ID,
		Message:    "Session created successfully",
		YouTubeURL: sess.URL,
		VideoID:    sess.VideoID,
	})
}

func creationDetail(err error) string {
	switch {
	case errors.Is(err, youtube.ErrInvalidURL):
		return "Invalid YouTube URL"
	case errors.Is(err, youtube.ErrTranscriptUnavailable):
		return "Transcript unavailable for this video"
	default:
		return err.Error()
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := s.registry.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		var genErr *rag.GenerationError
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "Session not found")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			hlog.FromRequest(r).Info().Err(err).Msg("Ask abandoned by caller")
			writeError(w, http.StatusRequestTimeout, "Request cancelled before the question was answered")
		case errors.As(err, &genErr):
			hlog.FromRequest(r).Error().Err(err).Str("stage", string(genErr.Stage)).Msg("Answer generation failed")
			writeError(w, http.StatusInternalServerError, "Error processing question: "+genErr.Err.Error())
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("Ask failed")
			writeError(w, http.StatusInternalServerError, "Error processing question: "+err.Error())
		}
		return
	}

	out := AskResponse{
		SessionID:  req.SessionID,
		Question:   req.Question,
		Answer:     resp.Answer,
		AnswerHTML: s.renderMarkdown(r, resp.Answer),
	}
	if s.withSources {
		out.Sources = resp.Sources
	}
	writeJSON(w, http.StatusOK, out)
}

// renderMarkdown returns the answer as HTML, or "" when it cannot be rendered.
func (s *Server) renderMarkdown(r *http.Request, text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to render answer markdown")
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	out := ListSessionsResponse{Sessions: make([]SessionSummary, 0, len(infos)), Total: len(infos)}
	for _, info := range infos {
		out.Sessions = append(out.Sessions, SessionSummary{SessionID: info.ID, YouTubeURL: info.URL})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session " + id + " deleted successfully"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := s.registry.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Conversation: turns})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.ClearHistory(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "History of session " + id + " cleared"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.registry.Metrics().Format(map[string]int64{
		"active_sessions": int64(s.registry.Len()),
	})))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
