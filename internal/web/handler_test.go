package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/garyellow/eyecare-linebot-go/internal/notify"
	"github.com/garyellow/eyecare-linebot-go/internal/schedule"
	"github.com/garyellow/eyecare-linebot-go/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotify struct {
	exchangeErr error
	statusErr   error
	gotCode     string
}

func (f *fakeNotify) AuthCodeURL(state string) string {
	return "https://notify-bot.line.me/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeNotify) Exchange(_ context.Context, code string) (string, error) {
	f.gotCode = code
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-" + code, nil
}

func (f *fakeNotify) Status(_ context.Context, token string) (*notify.Status, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &notify.Status{TargetType: "USER", Target: "Alice"}, nil
}

type call struct {
	sessionID, token string
	delay            time.Duration
}

type fakeScheduler struct {
	store     *session.Store
	scheduled []call
	cancelled []string
}

func (f *fakeScheduler) Schedule(sessionID, token string, delay time.Duration) schedule.Notification {
	f.scheduled = append(f.scheduled, call{sessionID, token, delay})
	n := schedule.Notification{
		SessionID: sessionID,
		Label:     schedule.FormatLabel(time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC), delay),
	}
	f.store.SetScheduled(sessionID, n.Label)
	return n
}

func (f *fakeScheduler) Cancel(sessionID string) bool {
	f.cancelled = append(f.cancelled, sessionID)
	return true
}

type env struct {
	router    *gin.Engine
	store     *session.Store
	notify    *fakeNotify
	scheduler *fakeScheduler
	metrics   *metrics.Metrics
	cookie    *http.Cookie
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	e := &env{
		store:   session.NewStore(session.Config{TTL: time.Hour, Logger: log}),
		notify:  &fakeNotify{},
		metrics: m,
	}
	e.scheduler = &fakeScheduler{store: e.store}
	h := NewHandler(Config{
		Store:          e.store,
		Scheduler:      e.scheduler,
		Notify:         e.notify,
		Logger:         log,
		Metrics:        m,
		SessionTTL:     time.Hour,
		DefaultSeconds: 5,
		MaxSeconds:     3600,
	})

	tmpl, err := Templates()
	require.NoError(t, err)
	e.router = gin.New()
	e.router.SetHTMLTemplate(tmpl)
	h.RegisterRoutes(e.router)
	return e
}

// get performs a request carrying the session cookie and keeps any new one.
func (e *env) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			if c.MaxAge < 0 {
				e.cookie = nil
			} else {
				e.cookie = c
			}
		}
	}
	return w
}

func (e *env) current(t *testing.T) session.Session {
	t.Helper()
	require.NotNil(t, e.cookie)
	sess, ok := e.store.Get(e.cookie.Value)
	require.True(t, ok)
	return sess
}

// login runs the OAuth round trip with a fake consent page.
func (e *env) login(t *testing.T) {
	t.Helper()
	w := e.get(t, "/auth/notify")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	w = e.get(t, "/auth/notify/cb?code=abc&state="+url.QueryEscape(loc.Query().Get("state")))
	require.Equal(t, http.StatusFound, w.Code)
}

func TestIndexUnauthenticated(t *testing.T) {
	e := newEnv(t)

	w := e.get(t, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "使用 LINE Notify 登入")
	require.NotNil(t, e.cookie)
	assert.True(t, e.cookie.HttpOnly)
	assert.Equal(t, 1, e.store.Len())

	// Same cookie, same session.
	e.get(t, "/")
	assert.Equal(t, 1, e.store.Len())
}

func TestAuthorizeSetsState(t *testing.T) {
	e := newEnv(t)

	w := e.get(t, "/auth/notify")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	assert.NotEmpty(t, state)
	assert.Equal(t, state, e.current(t).OAuthState)
}

func TestCallbackSuccess(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	sess := e.current(t)
	a, ok := sess.Authenticated()
	require.True(t, ok)
	assert.Equal(t, "Alice", a.Target)
	assert.Equal(t, "access-abc", a.AccessToken)
	assert.Empty(t, sess.OAuthState)
	assert.InDelta(t, 1, testutil.ToFloat64(e.metrics.OAuthTotal.WithLabelValues("success")), 0)

	w := e.get(t, "/")
	assert.Contains(t, w.Body.String(), "Alice")
	assert.Contains(t, w.Body.String(), "/auth/notify/logout")
}

func TestCallbackFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeNotify)
		query   func(state string) string
		status  string
		message string
	}{
		{
			name:    "state mismatch",
			query:   func(string) string { return "code=abc&state=forged" },
			status:  "state_mismatch",
			message: MsgStateMismatch,
		},
		{
			name:    "denied",
			query:   func(s string) string { return "error=access_denied&state=" + s },
			status:  "denied",
			message: MsgAccessDenied,
		},
		{
			name:    "missing code",
			query:   func(s string) string { return "state=" + s },
			status:  "error",
			message: MsgAuthFailed,
		},
		{
			name:    "exchange failure",
			setup:   func(f *fakeNotify) { f.exchangeErr = domerrors.ErrAuthorization },
			query:   func(s string) string { return "code=abc&state=" + s },
			status:  "error",
			message: MsgAuthFailed,
		},
		{
			name:    "status failure",
			setup:   func(f *fakeNotify) { f.statusErr = errors.New("status 401") },
			query:   func(s string) string { return "code=abc&state=" + s },
			status:  "error",
			message: MsgAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(e.notify)
			}
			w := e.get(t, "/auth/notify")
			loc, _ := url.Parse(w.Header().Get("Location"))

			w = e.get(t, "/auth/notify/cb?"+tt.query(loc.Query().Get("state")))
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))

			sess := e.current(t)
			assert.Equal(t, session.Unauthenticated{Error: tt.message}, sess.State)
			assert.InDelta(t, 1, testutil.ToFloat64(e.metrics.OAuthTotal.WithLabelValues(tt.status)), 0)

			page := e.get(t, "/")
			assert.Contains(t, page.Body.String(), tt.message)
		})
	}
}

func TestScheduleNotify(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	w := e.get(t, "/auth/notify/me?n_s=10")
	assert.Equal(t, http.StatusFound, w.Code)
	require.Len(t, e.scheduler.scheduled, 1)
	got := e.scheduler.scheduled[0]
	assert.Equal(t, e.cookie.Value, got.sessionID)
	assert.Equal(t, "access-abc", got.token)
	assert.Equal(t, 10*time.Second, got.delay)

	a, _ := e.current(t).Authenticated()
	assert.Equal(t, "12:00:10 PM", a.Scheduled)

	page := e.get(t, "/")
	assert.Contains(t, page.Body.String(), "12:00:10 PM")
}

func TestScheduleNotifyDefaultDelay(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	e.get(t, "/auth/notify/me")
	require.Len(t, e.scheduler.scheduled, 1)
	assert.Equal(t, 5*time.Second, e.scheduler.scheduled[0].delay)
}

func TestScheduleNotifyInvalidDelay(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	for _, v := range []string{"abc", "-1", "3601", "1.5"} {
		w := e.get(t, "/auth/notify/me?n_s="+v)
		assert.Equal(t, http.StatusBadRequest, w.Code, "n_s=%s", v)
	}
	assert.Empty(t, e.scheduler.scheduled)
}

func TestScheduleNotifyUnauthenticated(t *testing.T) {
	e := newEnv(t)

	w := e.get(t, "/auth/notify/me?n_s=5")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Empty(t, e.scheduler.scheduled)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	id := e.cookie.Value

	w := e.get(t, "/auth/notify/logout")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, []string{id}, e.scheduler.cancelled)
	_, ok := e.store.Get(id)
	assert.False(t, ok)
	assert.Nil(t, e.cookie)

	page := e.get(t, "/")
	assert.Contains(t, page.Body.String(), "使用 LINE Notify 登入")
}
