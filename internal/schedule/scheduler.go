// Package schedule runs the deferred LINE Notify reminder: one pending
// one-shot message per session.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/ctxutil"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
)

// labelOffset shifts UTC to the fixed UTC+8 display zone.
const labelOffset = 8 * time.Hour

// labelLayout renders like "3:04:05 PM".
const labelLayout = "3:04:05 PM"

// MessageSuffix follows the label in the sent message.
const MessageSuffix = " 通知訊息"

// Sender delivers a notify message with a user access token.
type Sender interface {
	Send(ctx context.Context, accessToken, message string) error
}

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Notification is a pending reminder.
type Notification struct {
	SessionID string
	Label     string
	FireAt    time.Time
}

// Message is the text sent when the reminder fires.
func (n Notification) Message() string {
	return n.Label + MessageSuffix
}

type slot struct {
	n           Notification
	accessToken string
	timer       Timer
}

// Config configures a Scheduler.
type Config struct {
	Sender      Sender
	Logger      *logger.Logger
	Metrics     *metrics.Metrics // optional
	SendTimeout time.Duration

	// OnScheduled runs before the timer is armed, under the scheduler lock,
	// so the label is recorded before any fire can clear it.
	OnScheduled func(sessionID, label string)

	// OnFired runs after the message was attempted. It receives the fired
	// label so callers can clear it only if it is still current.
	OnFired func(sessionID, label string)

	// Now and AfterFunc default to the real clock.
	Now       func() time.Time
	AfterFunc AfterFunc
}

// Scheduler keeps at most one armed reminder per session.
type Scheduler struct {
	mu    sync.Mutex
	slots map[string]*slot

	sender      Sender
	logger      *logger.Logger
	metrics     *metrics.Metrics
	sendTimeout time.Duration
	onScheduled func(sessionID, label string)
	onFired     func(sessionID, label string)
	now         func() time.Time
	afterFunc   AfterFunc
	wg          sync.WaitGroup
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		slots:       make(map[string]*slot),
		sender:      cfg.Sender,
		logger:      cfg.Logger.WithModule("schedule"),
		metrics:     cfg.Metrics,
		sendTimeout: cfg.SendTimeout,
		onScheduled: cfg.OnScheduled,
		onFired:     cfg.OnFired,
		now:         cfg.Now,
		afterFunc:   cfg.AfterFunc,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = 10 * time.Second
	}
	return s
}

// FormatLabel returns the wall-clock label of a reminder fired delay after now.
func FormatLabel(now time.Time, delay time.Duration) string {
	return now.UTC().Add(labelOffset + delay).Format(labelLayout)
}

// Schedule arms a reminder for the session, replacing any pending one.
// The access token is captured now and used when the timer fires.
func (s *Scheduler) Schedule(sessionID, accessToken string, delay time.Duration) Notification {
	now := s.now()
	n := Notification{
		SessionID: sessionID,
		Label:     FormatLabel(now, delay),
		FireAt:    now.Add(delay),
	}
	sl := &slot{n: n, accessToken: accessToken}

	s.mu.Lock()
	if prev, ok := s.slots[sessionID]; ok {
		prev.timer.Stop()
		s.logger.WithField("session_id", sessionID).
			WithField("label", prev.n.Label).
			Debug("Replacing pending notification")
	}
	s.slots[sessionID] = sl
	if s.onScheduled != nil {
		s.onScheduled(sessionID, n.Label)
	}
	// Armed under the lock so fire always sees the timer field set.
	sl.timer = s.afterFunc(delay, func() { s.fire(sessionID, sl) })
	count := len(s.slots)
	s.mu.Unlock()

	s.setGauge(count)
	s.logger.WithField("session_id", sessionID).
		WithField("label", n.Label).
		WithField("delay_seconds", delay.Seconds()).
		Info("Notification scheduled")
	return n
}

// Cancel stops the pending reminder of a session.
// It reports whether one was pending.
func (s *Scheduler) Cancel(sessionID string) bool {
	s.mu.Lock()
	sl, ok := s.slots[sessionID]
	if ok {
		sl.timer.Stop()
		delete(s.slots, sessionID)
	}
	count := len(s.slots)
	s.mu.Unlock()

	if ok {
		s.setGauge(count)
	}
	return ok
}

// Pending returns the armed reminder of a session.
func (s *Scheduler) Pending(sessionID string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[sessionID]
	if !ok {
		return Notification{}, false
	}
	return sl.n, true
}

// Len returns the number of armed reminders.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Stop cancels every pending reminder and waits for running sends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, sl := range s.slots {
		sl.timer.Stop()
		delete(s.slots, id)
	}
	s.mu.Unlock()
	s.setGauge(0)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(sessionID string, sl *slot) {
	s.mu.Lock()
	if s.slots[sessionID] != sl {
		// Replaced or cancelled after the timer had already started.
		s.mu.Unlock()
		return
	}
	delete(s.slots, sessionID)
	count := len(s.slots)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.setGauge(count)

	ctx, cancel := context.WithTimeout(ctxutil.WithSessionID(context.Background(), sessionID), s.sendTimeout)
	defer cancel()

	status := "success"
	if err := s.sender.Send(ctx, sl.accessToken, sl.n.Message()); err != nil {
		status = "error"
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to send scheduled notification")
	} else {
		s.logger.WithField("session_id", sessionID).WithField("label", sl.n.Label).Info("Scheduled notification sent")
	}
	if s.metrics != nil {
		s.metrics.RecordNotifySent(status)
	}

	if s.onFired != nil {
		s.onFired(sessionID, sl.n.Label)
	}
}

func (s *Scheduler) setGauge(n int) {
	if s.metrics != nil {
		s.metrics.SetScheduledNotifications(n)
	}
}
