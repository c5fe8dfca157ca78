package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"youtube-rag/internal/chromemdb"
	"youtube-rag/internal/helper"
	"youtube-rag/internal/memory"
	"youtube-rag/internal/metrics"
	"youtube-rag/internal/models"
	"youtube-rag/internal/parser"
	"youtube-rag/internal/rag"
	"youtube-rag/internal/youtube"
)

// TranscriptSource fetches the full transcript text of a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID, lang string) (string, error)
}

// Archiver stores finished exchanges outside the process.
type Archiver interface {
	StoreExchange(ctx context.Context, sessionID, videoID, question, answer string) error
}

// Dependencies are the shared services every session is built from.
type Dependencies struct {
	Transcripts TranscriptSource
	Splitter    parser.Splitter
	Embedder    embeddings.Embedder
	Model       llms.Model
	Language    string
	TopK        int
	MaxTurns    int
	// Template overrides the answer prompt when set.
	Template string
}

// Info is the listing view of a session.
type Info struct {
	ID        string    `json:"session_id"`
	URL       string    `json:"youtube_url"`
	VideoID   string    `json:"video_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     int       `json:"turns"`
}

// Registry maps session ids to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	deps    Dependencies
	archive Archiver
	metrics *metrics.Metrics
	newID   func() (string, error)
}

type Option func(*Registry)

func WithArchive(a Archiver) Option {
	return func(r *Registry) { r.archive = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(r *Registry) { r.newID = fn }
}

func NewRegistry(deps Dependencies, opts ...Option) *Registry {
	if deps.Splitter == nil {
		deps.Splitter = &parser.ParserConfig{
			ChunkSize:    parser.DefaultChunkSize,
			ChunkOverlap: parser.DefaultChunkOverlap,
			Kind:         parser.SplitterWindow,
		}
	}
	if deps.Language == "" {
		deps.Language = youtube.DefaultLanguage
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		metrics:  metrics.New(),
		newID:    helper.GenerateUUID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Metrics() *metrics.Metrics {
	return r.metrics
}

// Create builds a session for the video at url and registers it. On any failure nothing is
// registered and the error is a *CreationError.
func (r *Registry) Create(ctx context.Context, url string) (*Session, error) {
	s, err := r.build(ctx, url)
	if err != nil {
		r.metrics.SessionCreateErrors.Add(1)
		log.Warn().Str("url", url).Err(err).Msg("Session creation failed")
		return nil, &CreationError{URL: url, Err: err}
	}

	if err := r.register(s); err != nil {
		s.close()
		r.metrics.SessionCreateErrors.Add(1)
		return nil, &CreationError{URL: url, Err: err}
	}

	r.metrics.SessionsCreated.Add(1)
	log.Info().Str("session_id", s.ID).Str("video_id", s.VideoID).Int("passages", s.index.Count()).Msg("Session created")
	return s, nil
}

func (r *Registry) build(ctx context.Context, url string) (*Session, error) {
	videoID, err := youtube.ExtractVideoID(url)
	if err != nil {
		return nil, err
	}

	r.metrics.TranscriptRequests.Add(1)
	text, err := r.deps.Transcripts.Fetch(ctx, videoID, r.deps.Language)
	if err != nil {
		r.metrics.TranscriptErrors.Add(1)
		return nil, err
	}

	passages, err := r.deps.Splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split transcript: %w", err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: transcript of %s is empty", youtube.ErrTranscriptUnavailable, videoID)
	}

	index, err := chromemdb.NewVectorIndex(ctx, videoID, r.deps.Embedder, passages)
	if err != nil {
		return nil, fmt.Errorf("failed to index transcript: %w", err)
	}

	opts := []rag.Option{rag.WithTopK(r.deps.TopK)}
	if r.deps.Template != "" {
		opts = append(opts, rag.WithTemplate(r.deps.Template))
	}
	chain := rag.NewChain(index, r.deps.Model, memory.NewConversation(r.deps.MaxTurns), opts...)
	return newSession(url, videoID, index, chain), nil
}

// register assigns a fresh id, drawing again on the unlikely collision.
func (r *Registry) register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id, err := r.newID()
		if err != nil {
			return err
		}
		if _, taken := r.sessions[id]; taken {
			continue
		}
		s.ID = id
		r.sessions[id] = s
		return nil
	}
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns every live session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Info{
			ID:        s.ID,
			URL:       s.URL,
			VideoID:   s.VideoID,
			CreatedAt: s.CreatedAt,
			Turns:     s.Memory().Len(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Delete removes the session and stops its worker. Questions still queued for it fail with
// ErrSessionNotFound.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.close()
	r.metrics.SessionsDeleted.Add(1)
	log.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

// Ask answers question in session id. Questions to the same session are answered in arrival
// order, each seeing all earlier exchanges.
func (r *Registry) Ask(ctx context.Context, id, question string) (*models.AskResponse, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	r.metrics.Questions.Add(1)
	resp, err := s.ask(ctx, question)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		r.metrics.GenerationErrors.Add(1)
		return nil, err
	}

	r.archiveExchange(ctx, s, resp)
	return resp, nil
}

func (r *Registry) archiveExchange(ctx context.Context, s *Session, resp *models.AskResponse) {
	if r.archive == nil {
		return
	}
	if err := r.archive.StoreExchange(ctx, s.ID, s.VideoID, resp.Question, resp.Answer); err != nil {
		r.metrics.ArchiveErrors.Add(1)
		log.Warn().Str("session_id", s.ID).Err(err).Msg("Failed to archive exchange")
	}
}

func (r *Registry) History(ctx context.Context, id string) ([]memory.Turn, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Memory().Turns(ctx)
}

func (r *Registry) ClearHistory(ctx context.Context, id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.Memory().Clear(ctx)
}

// Close deletes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func logSessionError(id string, err error) {
	log.Warn().Str("session_id", id).Err(err).Msg("Failed to release session index")
}
