// Package session keeps the LINE Notify login state of browser sessions in
// memory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// State is either Unauthenticated or Authenticated.
type State interface {
	isState()
}

// Unauthenticated is a session without a notify token. Error holds the
// message of the last failed authorization, if any.
type Unauthenticated struct {
	Error string
}

// Authenticated is a session holding a notify access token.
// Scheduled is the label of the pending reminder, empty when none.
type Authenticated struct {
	Target      string
	TargetType  string
	AccessToken string
	Scheduled   string
}

func (Unauthenticated) isState() {}
func (Authenticated) isState()   {}

// Session is a snapshot of one browser session.
type Session struct {
	ID         string
	State      State
	OAuthState string
	CreatedAt  time.Time
	LastSeen   time.Time
}

// Authenticated returns the state if the session is logged in.
func (s Session) Authenticated() (Authenticated, bool) {
	a, ok := s.State.(Authenticated)
	return a, ok
}

// Config configures a Store.
type Config struct {
	TTL     time.Duration
	Logger  *logger.Logger
	Metrics *metrics.Metrics // optional

	// OnExpire runs for every session removed by Sweep, outside the lock.
	OnExpire func(id string)

	Now func() time.Time
}

// Store is a mutex-guarded in-memory session map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	onExpire func(id string)
	now      func() time.Time
	cron     *cron.Cron
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      cfg.TTL,
		logger:   cfg.Logger.WithModule("session"),
		metrics:  cfg.Metrics,
		onExpire: cfg.OnExpire,
		now:      cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create starts a new unauthenticated session.
func (s *Store) Create() Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     Unauthenticated{},
		CreatedAt: now,
		LastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.setGauge(count)
	return *sess
}

// Get returns the session and marks it as seen.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.LastSeen = s.now()
	return *sess, true
}

// Update applies fn to the stored session under the store lock.
// It reports whether the session exists.
func (s *Store) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	sess.LastSeen = s.now()
	return true
}

// SetScheduled records the label of the pending reminder of a logged-in
// session.
func (s *Store) SetScheduled(id, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if a, ok := sess.State.(Authenticated); ok {
		a.Scheduled = label
		sess.State = a
	}
}

// ClearScheduled empties the pending reminder label if it still equals label.
func (s *Store) ClearScheduled(id, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if a, ok := sess.State.(Authenticated); ok && a.Scheduled == label {
		a.Scheduled = ""
		sess.State = a
	}
}

// Delete removes a session. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	s.setGauge(count)
	return ok
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	var expired []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.setGauge(count)
	if s.onExpire != nil {
		for _, id := range expired {
			s.onExpire(id)
		}
	}
	if len(expired) > 0 {
		s.logger.WithField("expired", len(expired)).WithField("remaining", count).Info("Swept idle sessions")
	}
	return len(expired)
}

// StartSweeper runs Sweep on the cron spec until Stop is called.
func (s *Store) StartSweeper(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Sweep() }); err != nil {
		return err
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	return nil
}

// Stop halts the sweeper and waits for a running sweep.
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) setGauge(n int) {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(n)
	}
}
