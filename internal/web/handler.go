// Package web serves the LINE Notify login pages and the deferred reminder
// endpoints.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/ctxutil"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/garyellow/eyecare-linebot-go/internal/notify"
	"github.com/garyellow/eyecare-linebot-go/internal/schedule"
	"github.com/garyellow/eyecare-linebot-go/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

//go:embed templates/*.html
var templateFS embed.FS

// CookieName holds the session id.
const CookieName = "eyecare_sid"

// Messages shown on the login page after a failed authorization.
const (
	MsgStateMismatch = "授權狀態不符，請重新登入"
	MsgAuthFailed    = "LINE Notify 授權失敗，請稍後再試"
	MsgAccessDenied  = "已取消 LINE Notify 授權"
)

// NotifyClient is the LINE Notify API used by the login flow.
type NotifyClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	Status(ctx context.Context, accessToken string) (*notify.Status, error)
}

// Scheduler arms and cancels deferred reminders. Schedule records the
// reminder label in the session store before the timer can fire.
type Scheduler interface {
	Schedule(sessionID, accessToken string, delay time.Duration) schedule.Notification
	Cancel(sessionID string) bool
}

// Config holds the dependencies of a Handler.
type Config struct {
	Store          *session.Store
	Scheduler      Scheduler
	Notify         NotifyClient
	Logger         *logger.Logger
	Metrics        *metrics.Metrics // optional
	CookieSecure   bool
	SessionTTL     time.Duration
	DefaultSeconds int
	MaxSeconds     int
}

// Handler serves the login pages.
type Handler struct {
	store          *session.Store
	scheduler      Scheduler
	notify         NotifyClient
	logger         *logger.Logger
	metrics        *metrics.Metrics
	cookieSecure   bool
	cookieMaxAge   int
	defaultSeconds int
	maxSeconds     int
}

// pageData is rendered by index.html.
type pageData struct {
	Authenticated  bool
	Name           string
	Scheduled      string
	Error          string
	DefaultSeconds int
	MaxSeconds     int
}

// NewHandler creates the web handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:          cfg.Store,
		scheduler:      cfg.Scheduler,
		notify:         cfg.Notify,
		logger:         cfg.Logger.WithModule("web"),
		metrics:        cfg.Metrics,
		cookieSecure:   cfg.CookieSecure,
		cookieMaxAge:   int(cfg.SessionTTL.Seconds()),
		defaultSeconds: cfg.DefaultSeconds,
		maxSeconds:     cfg.MaxSeconds,
	}
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// RegisterRoutes mounts the pages on r.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.GET("/auth/notify", h.Authorize)
	r.GET("/auth/notify/cb", h.Callback)
	r.GET("/auth/notify/me", h.ScheduleNotify)
	r.GET("/auth/notify/logout", h.Logout)
}

// Index renders the page for the current session state.
func (h *Handler) Index(c *gin.Context) {
	sess := h.session(c)
	data := pageData{DefaultSeconds: h.defaultSeconds, MaxSeconds: h.maxSeconds}

	switch st := sess.State.(type) {
	case session.Authenticated:
		data.Authenticated = true
		data.Name = st.Target
		data.Scheduled = st.Scheduled
	case session.Unauthenticated:
		data.Error = st.Error
	}
	c.HTML(http.StatusOK, "index.html", data)
}

// Authorize redirects to the LINE Notify consent page with a fresh state.
func (h *Handler) Authorize(c *gin.Context) {
	sess := h.session(c)
	state := uuid.NewString()
	h.store.Update(sess.ID, func(s *session.Session) { s.OAuthState = state })
	c.Redirect(http.StatusFound, h.notify.AuthCodeURL(state))
}

// Callback completes the authorization and records the outcome in the session.
func (h *Handler) Callback(c *gin.Context) {
	sess := h.session(c)
	ctx := c.Request.Context()
	log := h.logger.WithField("session_id", sess.ID)

	fail := func(status, msg string, err error) {
		if err != nil {
			log.WithError(err).WithField("status", status).Warn("LINE Notify authorization failed")
		}
		h.recordOAuth(status)
		h.store.Update(sess.ID, func(s *session.Session) {
			s.OAuthState = ""
			s.State = session.Unauthenticated{Error: msg}
		})
		c.Redirect(http.StatusFound, "/")
	}

	state := c.Query("state")
	if sess.OAuthState == "" || state != sess.OAuthState {
		fail("state_mismatch", MsgStateMismatch, errors.New("oauth state mismatch"))
		return
	}
	if e := c.Query("error"); e != "" {
		msg := MsgAccessDenied
		if desc := c.Query("error_description"); desc != "" && e != "access_denied" {
			msg = desc
		}
		fail("denied", msg, errors.New(e))
		return
	}

	code := c.Query("code")
	if code == "" {
		fail("error", MsgAuthFailed, domerrors.NewValidationError("code", "missing authorization code"))
		return
	}

	token, err := h.notify.Exchange(ctx, code)
	if err != nil {
		fail("error", MsgAuthFailed, err)
		return
	}
	status, err := h.notify.Status(ctx, token)
	if err != nil {
		fail("error", MsgAuthFailed, err)
		return
	}

	h.store.Update(sess.ID, func(s *session.Session) {
		s.OAuthState = ""
		s.State = session.Authenticated{
			Target:      status.Target,
			TargetType:  status.TargetType,
			AccessToken: token,
		}
	})
	h.recordOAuth("success")
	log.WithField("target_type", status.TargetType).Info("LINE Notify authorized")
	c.Redirect(http.StatusFound, "/")
}

// ScheduleNotify arms the deferred reminder from the n_s query parameter.
func (h *Handler) ScheduleNotify(c *gin.Context) {
	seconds, err := h.parseDelay(c.Query("n_s"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	sess := h.session(c)
	auth, ok := sess.Authenticated()
	if !ok {
		c.Redirect(http.StatusFound, "/")
		return
	}

	// The scheduler records the label in the session before arming.
	n := h.scheduler.Schedule(sess.ID, auth.AccessToken, time.Duration(seconds)*time.Second)
	h.logger.WithField("session_id", sess.ID).WithField("label", n.Label).Debug("Reminder requested")
	c.Redirect(http.StatusFound, "/")
}

// Logout cancels the pending reminder and forgets the session.
func (h *Handler) Logout(c *gin.Context) {
	if id, err := c.Cookie(CookieName); err == nil && id != "" {
		h.scheduler.Cancel(id)
		h.store.Delete(id)
	}
	h.setCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/")
}

// parseDelay validates n_s. An empty value selects the default.
func (h *Handler) parseDelay(raw string) (int, error) {
	if raw == "" {
		return h.defaultSeconds, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domerrors.NewValidationError("n_s", "must be an integer number of seconds")
	}
	if n < 0 || n > h.maxSeconds {
		return 0, domerrors.NewValidationError("n_s", "must be between 0 and "+strconv.Itoa(h.maxSeconds))
	}
	return n, nil
}

// session loads the session of the cookie, creating one when the cookie is
// missing or unknown.
func (h *Handler) session(c *gin.Context) session.Session {
	if id, err := c.Cookie(CookieName); err == nil && id != "" {
		if sess, ok := h.store.Get(id); ok {
			c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), sess.ID))
			return sess
		}
	}

	sess := h.store.Create()
	h.setCookie(c, sess.ID, h.cookieMaxAge)
	c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), sess.ID))
	return sess
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", h.cookieSecure, true)
}

func (h *Handler) recordOAuth(status string) {
	if h.metrics != nil {
		h.metrics.RecordOAuth(status)
	}
}
