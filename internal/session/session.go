package session

import (
	"context"
	"sync"
	"time"

	"youtube-rag/internal/chromemdb"
	"youtube-rag/internal/memory"
	"youtube-rag/internal/models"
	"youtube-rag/internal/rag"
)

// Session is one conversation over one video's transcript. It owns its index, memory and chain
// and shares none of them.
type Session struct {
	ID        string    `json:"session_id"`
	URL       string    `json:"youtube_url"`
	VideoID   string    `json:"video_id"`
	CreatedAt time.Time `json:"created_at"`

	index *chromemdb.VectorIndex
	chain *rag.Chain

	jobs      chan askJob
	done      chan struct{}
	closeOnce sync.Once
}

type askJob struct {
	ctx      context.Context
	question string
	reply    chan askResult
}

type askResult struct {
	resp *models.AskResponse
	err  error
}

func newSession(url, videoID string, index *chromemdb.VectorIndex, chain *rag.Chain) *Session {
	s := &Session{
		URL:       url,
		VideoID:   videoID,
		CreatedAt: time.Now(),
		index:     index,
		chain:     chain,
		jobs:      make(chan askJob),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// run answers questions one at a time so each answer sees every earlier exchange.
func (s *Session) run() {
	for {
		select {
		case job := <-s.jobs:
			resp, err := s.chain.Ask(job.ctx, job.question)
			job.reply <- askResult{resp: resp, err: err}
		case <-s.done:
			return
		}
	}
}

func (s *Session) ask(ctx context.Context, question string) (*models.AskResponse, error) {
	job := askJob{ctx: ctx, question: question, reply: make(chan askResult, 1)}
	select {
	case s.jobs <- job:
	case <-s.done:
		return nil, ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-job.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) Memory() *memory.Conversation {
	return s.chain.Memory()
}

// close stops the worker and drops the index. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.index.Close(); err != nil {
			logSessionError(s.ID, err)
		}
	})
}
