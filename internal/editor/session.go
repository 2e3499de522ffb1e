// Package editor keeps one form per open editor and serves it over HTTP.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/quill/internal/form"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/submit"
)

var editorLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

var ErrSessionNotFound = errors.New("editor session not found")

type SessionID string

// Session is one open editor: a mounted form and the coordinator that submits
// it. It is the coordinator's Router and remembers where it was sent.
type Session struct {
	ID          SessionID
	Owner       model.UserID
	CreatedAt   time.Time
	Form        *form.Form
	Coordinator *submit.Coordinator

	mu          sync.Mutex
	destination string
}

func (s *Session) NavigateTo(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destination = path
}

// Destination is the path the last successful submission navigated to.
func (s *Session) Destination() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destination
}

// Deps are shared by every session's coordinator.
type Deps struct {
	Files   submit.FileStore
	Posts   submit.PostRepository
	Session submit.SessionProvider
}

type Registry struct {
	sessions sync.Map // SessionID -> *Session
	deps     Deps
	now      func() time.Time
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps: deps,
		now:  time.Now,
	}
}

// Open mounts a form in mode and registers it under a fresh id.
func (r *Registry) Open(mode form.Mode, owner model.UserID) (*Session, error) {
	f := form.New(mode)
	if err := f.Mount(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:        SessionID(uuid.New().String()),
		Owner:     owner,
		CreatedAt: r.now(),
		Form:      f,
	}

	l := editorLogger.With().Str("session_id", string(s.ID)).Logger()
	s.Coordinator = submit.New(f, submit.Deps{
		Files:   r.deps.Files,
		Posts:   r.deps.Posts,
		Session: r.deps.Session,
		Router:  s,
		OnTransition: func(from, to submit.State) {
			l.Debug().Stringer("from", from).Stringer("to", to).Msg("Submission transition")
		},
	})

	r.sessions.Store(s.ID, s)
	l.Info().Str("mode", mode.String()).Str("owner", string(owner)).Msg("Editor opened")
	return s, nil
}

func (r *Registry) Get(id SessionID) (*Session, error) {
	s, ok := r.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.(*Session), nil
}

// Close disposes the session's form. Closing an unknown id is a no-op.
func (r *Registry) Close(id SessionID) {
	s, ok := r.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	s.(*Session).Form.Dispose()
	editorLogger.Debug().Str("session_id", string(id)).Msg("Editor closed")
}

func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep closes sessions older than maxAge that are not submitting and
// returns how many it closed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	closed := 0
	r.sessions.Range(func(key, value any) bool {
		s := value.(*Session)
		if s.CreatedAt.Before(cutoff) && !s.Coordinator.State().InFlight() {
			r.Close(key.(SessionID))
			closed++
		}
		return true
	})
	return closed
}

// StartSweeper sweeps every interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(maxAge); n > 0 {
					editorLogger.Info().Int("closed", n).Msg("Closed abandoned editors")
				}
			}
		}
	}()
}
