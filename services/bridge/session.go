package bridge

import (
	"sync"

	"chatbridge/lib/scrapers/chat"

	"github.com/google/uuid"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateRunning
	StateStopping
	StateDone
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Session is one bounded run of the scrape engine. It owns its
// collected set and progress counters; only the engine mutates it
// while running. Sessions are cheap, make a fresh one per run.
type Session struct {
	ID   string
	opts ScrapeOptions

	mu            sync.Mutex
	state         SessionState
	stopRequested bool
	store         *store
	steps         int
	noProgress    int
	err           error
}

func NewSession(opts ScrapeOptions) *Session {
	opts = opts.normalized()
	return &Session{
		ID:    uuid.NewString(),
		opts:  opts,
		state: StateIdle,
		store: newStore(opts),
	}
}

func (s *Session) Options() ScrapeOptions {
	return s.opts
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop requests a graceful stop. It is honored at the engine's next
// loop check, not immediately: an in-flight wait is never interrupted.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns a copy of the collected records. Meaningful once the
// session is Done.
func (s *Session) Result() []chat.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.snapshot()
}

func (s *Session) Progress() (steps, noProgress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps, s.noProgress
}

func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.size()
}

func (s *Session) stopWanted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) merge(candidates []chat.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.merge(candidates)
}

func (s *Session) recordStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++
	return s.steps
}

func (s *Session) recordNoProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noProgress++
	return s.noProgress
}

func (s *Session) resetNoProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noProgress = 0
}

// finish sorts the collected set and moves the session to its terminal
// state. Runs exactly once, after the loop, never mid-loop.
func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.sortByTime()
	if err != nil {
		s.err = err
		s.state = StateError
		return
	}
	s.state = StateDone
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.state = StateError
}
