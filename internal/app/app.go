// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/garyellow/eyecare-linebot-go/internal/album"
	"github.com/garyellow/eyecare-linebot-go/internal/bot"
	"github.com/garyellow/eyecare-linebot-go/internal/buildinfo"
	"github.com/garyellow/eyecare-linebot-go/internal/config"
	"github.com/garyellow/eyecare-linebot-go/internal/ctxutil"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/metrics"
	"github.com/garyellow/eyecare-linebot-go/internal/modules/caring"
	"github.com/garyellow/eyecare-linebot-go/internal/modules/disease"
	"github.com/garyellow/eyecare-linebot-go/internal/notify"
	"github.com/garyellow/eyecare-linebot-go/internal/r2client"
	"github.com/garyellow/eyecare-linebot-go/internal/ratelimit"
	"github.com/garyellow/eyecare-linebot-go/internal/schedule"
	"github.com/garyellow/eyecare-linebot-go/internal/sentry"
	"github.com/garyellow/eyecare-linebot-go/internal/session"
	"github.com/garyellow/eyecare-linebot-go/internal/snapshot"
	"github.com/garyellow/eyecare-linebot-go/internal/storage"
	"github.com/garyellow/eyecare-linebot-go/internal/web"
	"github.com/garyellow/eyecare-linebot-go/internal/webhook"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sentryFlushTimeout bounds the final Sentry flush on shutdown.
const sentryFlushTimeout = 2 * time.Second

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	sessions       *session.Store
	scheduler      *schedule.Scheduler
	webhookHandler *webhook.Handler
	webHandler     *web.Handler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "eyecare-linebot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog calls go through ContextHandler too.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	release := cfg.SentryRelease
	if release == "" {
		release = buildinfo.Release()
	}
	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     release,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).WithField("release", release).Info("Sentry enabled")
	}

	if cfg.R2Enabled {
		seedFromSnapshot(ctx, cfg, log)
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	albumClient := album.NewClient(album.Config{
		ClientID:     cfg.ImgurClientID,
		AccessToken:  cfg.ImgurAccessToken,
		ImageBaseURL: cfg.ImgurImageBaseURL,
		Timeout:      config.ImgurRequest,
		Metrics:      m,
	})
	notifyClient := notify.NewClient(notify.Config{
		ClientID:     cfg.NotifyClientID,
		ClientSecret: cfg.NotifyClientSecret,
		RedirectURL:  cfg.NotifyCallbackURL,
		Timeout:      config.NotifyRequest,
		Metrics:      m,
	})

	// The store and the scheduler reference each other: expiry cancels the
	// pending reminder, arming records the session label, and a fired
	// reminder clears it.
	var scheduler *schedule.Scheduler
	sessions := session.NewStore(session.Config{
		TTL:     cfg.SessionTTL,
		Logger:  log,
		Metrics: m,
		OnExpire: func(id string) {
			scheduler.Cancel(id)
		},
	})
	scheduler = schedule.New(schedule.Config{
		Sender:      notifyClient,
		Logger:      log,
		Metrics:     m,
		SendTimeout: config.NotifyRequest,
		OnScheduled: sessions.SetScheduled,
		OnFired:     sessions.ClearScheduled,
	})

	diseaseHandler := disease.NewHandler(db, log, cfg.Bot.DiseaseTrigger, nil)
	caringHandler := caring.NewHandler(albumClient, cfg.ImgurAlbumID, cfg.Bot.CaringTrigger, log)

	botRegistry := bot.NewRegistry()
	botRegistry.Register(diseaseHandler)
	botRegistry.Register(caringHandler)
	botRegistry.SetPostbackHandler(diseaseHandler)

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:            botRegistry,
		Logger:              log,
		Metrics:             m,
		WebhookTimeout:      cfg.Bot.WebhookTimeout,
		MaxPostbackDataSize: cfg.Bot.MaxPostbackDataSize,
	})

	replier, err := webhook.NewLineReplier(cfg.LineChannelToken)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("line replier: %w", err)
	}

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		Replier:       replier,
		Processor:     processor,
		Limiter:       ratelimit.New(cfg.Bot.ReplyRateRPS, cfg.Bot.ReplyRateRPS),
		BotConfig:     &cfg.Bot,
		Metrics:       m,
		Logger:        log,
	})

	webHandler := web.NewHandler(web.Config{
		Store:          sessions,
		Scheduler:      scheduler,
		Notify:         notifyClient,
		Logger:         log,
		Metrics:        m,
		CookieSecure:   cfg.CookieSecure,
		SessionTTL:     cfg.SessionTTL,
		DefaultSeconds: cfg.Bot.NotifyDefaultSeconds,
		MaxSeconds:     cfg.Bot.NotifyMaxSeconds,
	})

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		sessions:       sessions,
		scheduler:      scheduler,
		webhookHandler: webhookHandler,
		webHandler:     webHandler,
	}

	router, err := app.newRouter()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// seedFromSnapshot downloads the disease database from R2 when no local
// file exists. Failures are logged; the server then starts with an empty table.
func seedFromSnapshot(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(ctx, config.SnapshotDownload)
	defer cancel()

	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint(),
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		log.WithError(err).Warn("R2 client initialization failed")
		return
	}

	mgr := snapshot.New(client, snapshot.Config{
		SnapshotKey: cfg.R2SnapshotKey,
		TempDir:     cfg.DataDir,
	})
	start := time.Now()
	seeded, err := mgr.SeedIfMissing(ctx, cfg.SQLitePath())
	if err != nil {
		log.WithError(err).WithField("key", cfg.R2SnapshotKey).Warn("Snapshot seed failed")
		return
	}
	if seeded {
		log.WithField("key", cfg.R2SnapshotKey).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("Database seeded from snapshot")
	}
}

// newRouter mounts every route on a fresh gin engine.
func (a *Application) newRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	a.webHandler.RegisterRoutes(router)
	router.POST("/linewebhook", a.webhookHandler.Handle)

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsPassword != "", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router, nil
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"r2_snapshot":  a.cfg.R2Enabled,
		"sentry":       sentry.IsEnabled(),
		"betterstack":  a.cfg.BetterStackToken != "",
		"metrics_auth": a.cfg.MetricsPassword != "",
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	diseases, err := a.db.CountDiseases(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count diseases in readiness check")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"diseases": diseases,
		"features": a.getFeatures(),
	})
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT/SIGTERM. Background jobs are joined before resources are closed.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.sessions.StartSweeper(config.SessionSweepSpec); err != nil {
		return fmt.Errorf("session sweeper: %w", err)
	}
	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.updateStorageMetrics(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops accepting requests, waits for in-flight webhooks, cancels
// pending reminders and then closes resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Cancelling pending notifications...")
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Scheduler shutdown timeout")
	}
	if err := a.sessions.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Session sweeper shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() && !sentry.Flush(sentryFlushTimeout) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Logger shutdown timed out", "error", err)
	}
	return nil
}

// updateStorageMetrics periodically records the disease table size.
func (a *Application) updateStorageMetrics(ctx context.Context) {
	a.logger.Debug("Storage metrics job started")
	defer a.logger.Debug("Storage metrics job stopped")

	a.recordStorageMetrics(ctx)

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Storage metrics received shutdown signal")
			return
		case <-ticker.C:
			a.recordStorageMetrics(ctx)
		}
	}
}

func (a *Application) recordStorageMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	count, err := a.db.CountDiseases(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("Failed to count diseases")
		return
	}
	a.metrics.SetDiseaseRows(count)
}

// securityHeadersMiddleware adds security headers to responses.
// The login page carries its own inline stylesheet and a same-origin form.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID != "" {
			ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request")
		}
	}
}
